package parser

import (
	"strings"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/source"
	"idlc/internal/token"
)

const (
	protoFieldMax = 1<<29 - 1
	protoEnumMax  = 1<<31 - 1
)

var protoTopLevel = []token.Kind{
	token.KwSyntax, token.KwPackage, token.KwImport, token.KwOption,
	token.KwMessage, token.KwEnum, token.KwService, token.KwExtend,
}

// ParseProto parses one Protobuf file (proto2 or proto3).
func ParseProto(file *source.File, opts Options) Result {
	p := newParser(file, token.DialectProto, opts)
	f := p.newFile()
	seen := false // был ли уже не-syntax оператор
	for !p.at(token.EOF) && !p.enough() {
		before := p.peek().Span
		if p.at(token.KwSyntax) {
			p.parseSyntax(f, seen)
		} else if !p.at(token.Semicolon) {
			seen = true
			p.parseProtoTopLevel(f)
		} else {
			p.advance()
		}
		if p.peek().Span == before && !p.at(token.EOF) {
			p.advance()
			p.resyncUntil(protoTopLevel...)
		}
	}
	return p.result(f)
}

func (p *Parser) parseSyntax(f *ast.File, misplaced bool) {
	kw := p.advance()
	if _, ok := p.expect(token.Assign, diag.SynExpectEquals, "'=' after syntax"); !ok {
		p.resyncUntil(protoTopLevel...)
		return
	}
	str, ok := p.expect(token.StringLit, diag.SynExpectString, "syntax version string")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return
	}
	sp := joinSpan(kw.Span, str.Span)
	p.expectSemi()
	switch {
	case misplaced:
		p.report(diag.SynMisplacedSyntax, diag.SevError, sp, "syntax statement must be the first statement in the file")
	case f.Syntax != "":
		p.report(diag.SynMisplacedSyntax, diag.SevError, sp, "duplicate syntax statement")
	}
	v := p.unquote(str)
	if v != "proto2" && v != "proto3" {
		p.report(diag.SynBadSyntaxVersion, diag.SevError, str.Span, "unknown syntax \""+v+"\", expected \"proto2\" or \"proto3\"")
		return
	}
	if f.Syntax == "" {
		f.Syntax, f.SyntaxSpan = v, sp
	}
}

func (p *Parser) expectSemi() bool {
	_, ok := p.expect(token.Semicolon, diag.SynExpectSemicolon, "';'")
	return ok
}

func (p *Parser) parseProtoTopLevel(f *ast.File) {
	tok := p.peek()
	doc := tok.Doc()
	switch tok.Kind {
	case token.KwPackage:
		p.advance()
		name := p.qualName()
		if name.Text == "" {
			p.resyncUntil(protoTopLevel...)
			return
		}
		p.expectSemi()
		if f.Package != nil {
			p.report(diag.SynDuplicatePackage, diag.SevError, joinSpan(tok.Span, name.Span), "multiple package declarations")
			return
		}
		f.Package = &name
	case token.KwImport:
		p.advance()
		kind := ast.ImportPlain
		if p.eat(token.KwPublic) {
			kind = ast.ImportPublic
		} else if p.eat(token.KwWeak) {
			kind = ast.ImportWeak
		}
		path, ok := p.expect(token.StringLit, diag.SynExpectString, "import path")
		if !ok {
			p.resyncUntil(protoTopLevel...)
			return
		}
		f.Imports = append(f.Imports, ast.Import{Path: p.unquote(path), Kind: kind, Span: joinSpan(tok.Span, path.Span)})
		p.expectSemi()
	case token.KwOption:
		if opt, ok := p.parseOptionStmt(); ok {
			f.Options = append(f.Options, opt)
		}
	case token.KwMessage:
		if d := p.parseMessage(doc); d != nil {
			f.Decls = append(f.Decls, d)
		}
	case token.KwEnum:
		if d := p.parseProtoEnum(doc); d != nil {
			f.Decls = append(f.Decls, d)
		}
	case token.KwService:
		if d := p.parseProtoService(doc); d != nil {
			f.Decls = append(f.Decls, d)
		}
	case token.KwExtend:
		p.skipUnsupported("extend blocks")
	default:
		p.errf(diag.SynUnexpectedTopLevel, "expected declaration, got %s", describe(tok))
		p.advance()
		p.resyncUntil(protoTopLevel...)
	}
}

// skipUnsupported пропускает конструкцию до ';' или сбалансированного блока.
func (p *Parser) skipUnsupported(what string) {
	start := p.peek().Span
	for !p.atAny(token.EOF, token.RBrace) {
		if p.at(token.Semicolon) {
			p.advance()
			break
		}
		if p.at(token.LBrace) {
			p.skipBalanced()
			break
		}
		p.advance()
	}
	p.report(diag.SynUnsupported, diag.SevWarning, joinSpan(start, p.lastSpan), what+" are not supported and were skipped")
}

// optionName: ident ('.' ident)* | '(' qualname ')' ('.' ident)*.
// Скобки сохраняются в имени.
func (p *Parser) optionName() (string, source.Span, bool) {
	var b strings.Builder
	start := p.peek().Span
	for {
		if p.at(token.LParen) {
			p.advance()
			q := p.qualName()
			if _, ok := p.expect(token.RParen, diag.SynUnclosedDelimiter, "')' after extension name"); !ok || q.Text == "" {
				return "", start, false
			}
			b.WriteString("(" + q.Text + ")")
		} else {
			id, ok := p.ident("option name")
			if !ok {
				return "", start, false
			}
			b.WriteString(id.Name)
		}
		if !p.eat(token.Dot) {
			break
		}
		b.WriteByte('.')
	}
	return b.String(), joinSpan(start, p.lastSpan), true
}

// parseOptionStmt: option name = value ;
func (p *Parser) parseOptionStmt() (ast.Annotation, bool) {
	kw := p.advance()
	name, _, ok := p.optionName()
	if ok {
		_, ok = p.expect(token.Assign, diag.SynExpectEquals, "'=' after option name")
	}
	var v *ast.ConstExpr
	if ok {
		v, ok = p.parseConst()
	}
	if !ok {
		p.resyncUntil(token.Semicolon, token.RBrace)
		p.eat(token.Semicolon)
		return ast.Annotation{}, false
	}
	a := ast.Annotation{Name: name, Value: v, Span: joinSpan(kw.Span, p.lastSpan)}
	p.expectSemi()
	if v == nil {
		return a, false
	}
	return a, true
}

// parseFieldOptions: '[' name = value (',' name = value)* ']'.
func (p *Parser) parseFieldOptions() ([]ast.Annotation, bool) {
	if !p.at(token.LBracket) {
		return nil, true
	}
	open := p.advance()
	var out []ast.Annotation
	for !p.atAny(token.RBracket, token.EOF, token.Semicolon) {
		name, sp, ok := p.optionName()
		if ok {
			_, ok = p.expect(token.Assign, diag.SynExpectEquals, "'=' after option name")
		}
		var v *ast.ConstExpr
		if ok {
			v, ok = p.parseConst()
		}
		if !ok {
			p.resyncUntil(token.Comma, token.RBracket, token.Semicolon)
		} else if v != nil {
			out = append(out, ast.Annotation{Name: name, Value: v, Span: joinSpan(sp, p.lastSpan)})
		}
		if !p.eat(token.Comma) {
			break
		}
	}
	if _, ok := p.expect(token.RBracket, diag.SynUnclosedDelimiter, "']' to close options"); !ok {
		p.report(diag.SynUnclosedDelimiter, diag.SevInfo, open.Span, "options opened here")
		return out, false
	}
	return out, true
}

func (p *Parser) parseMessage(doc string) *ast.ProtoMessage {
	kw := p.advance()
	name, ok := p.ident("message name")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return nil
	}
	d := &ast.ProtoMessage{Name: name, Doc: doc}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open message body")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return nil
	}
	for !p.atAny(token.RBrace, token.EOF) && !p.enough() {
		before := p.peek().Span
		p.parseMessageElement(d)
		if p.peek().Span == before && !p.atAny(token.RBrace, token.EOF) {
			p.advance()
		}
	}
	d.Span = joinSpan(kw.Span, p.closeBody(open.Span, "message"))
	return d
}

func (p *Parser) parseMessageElement(d *ast.ProtoMessage) {
	tok := p.peek()
	switch tok.Kind {
	case token.Semicolon:
		p.advance()
	case token.KwOption:
		if opt, ok := p.parseOptionStmt(); ok {
			d.Options = append(d.Options, opt)
		}
	case token.KwMessage:
		if m := p.parseMessage(tok.Doc()); m != nil {
			d.Nested = append(d.Nested, m)
		}
	case token.KwEnum:
		if e := p.parseProtoEnum(tok.Doc()); e != nil {
			d.Nested = append(d.Nested, e)
		}
	case token.KwOneof:
		if o := p.parseOneof(); o != nil {
			d.Oneofs = append(d.Oneofs, o)
		}
	case token.KwReserved:
		if r, ok := p.parseReserved(protoFieldMax); ok {
			d.Reserved = append(d.Reserved, r)
		}
	case token.KwExtensions:
		p.skipUnsupported("extension ranges")
	case token.KwExtend:
		p.skipUnsupported("extend blocks")
	default:
		fld, ok := p.parseProtoField(true)
		if !ok {
			p.resyncProtoMember()
			return
		}
		if fld != nil {
			d.Fields = append(d.Fields, fld)
		}
	}
}

// resyncProtoMember восстанавливается до ';' (съедается) или '}'.
func (p *Parser) resyncProtoMember() {
	p.resyncUntil(token.Semicolon, token.RBrace)
	p.eat(token.Semicolon)
}

// parseProtoField: [label] type name '=' number [options] ';'.
// Для групп возвращает (nil, true) после предупреждения.
func (p *Parser) parseProtoField(allowLabel bool) (*ast.Field, bool) {
	first := p.peek()
	fld := &ast.Field{Doc: first.Doc()}
	if allowLabel {
		switch first.Kind {
		case token.KwRequired:
			fld.Label = ast.LabelRequired
		case token.KwOptional:
			fld.Label = ast.LabelOptional
		case token.KwRepeated:
			fld.Label = ast.LabelRepeated
		}
		if fld.Label != ast.LabelNone {
			fld.LabelSpan = p.advance().Span
		}
	}
	if tok := p.peek(); tok.Kind == token.Ident && tok.Text == "group" {
		p.skipUnsupported("groups")
		return nil, true
	}
	typ, ok := p.parseProtoType()
	if !ok {
		return nil, false
	}
	fld.Type = typ
	if fld.Name, ok = p.ident("field name"); !ok {
		return nil, false
	}
	if _, ok = p.expect(token.Assign, diag.SynExpectEquals, "'=' before field number"); !ok {
		return nil, false
	}
	id, sp, ok := p.signedInt("field number")
	if !ok {
		return nil, false
	}
	fld.ID, fld.HasID, fld.IDSpan = id, true, sp
	opts, ok := p.parseFieldOptions()
	if !ok {
		return nil, false
	}
	for _, o := range opts {
		if o.Name == "default" {
			fld.Default = o.Value
			continue
		}
		fld.Annotations = append(fld.Annotations, o)
	}
	fld.Span = joinSpan(first.Span, p.lastSpan)
	p.expectSemi()
	return fld, true
}

func (p *Parser) parseProtoType() (*ast.TypeExpr, bool) {
	tok := p.peek()
	if tok.Kind == token.KwMap {
		p.advance()
		if _, ok := p.expect(token.Lt, diag.SynExpectType, "'<' after map"); !ok {
			return nil, false
		}
		key, ok := p.parseProtoType()
		if !ok {
			return nil, false
		}
		if _, ok = p.expect(token.Comma, diag.SynUnexpectedToken, "',' between map key and value"); !ok {
			return nil, false
		}
		val, ok := p.parseProtoType()
		if !ok {
			return nil, false
		}
		closeTok, ok := p.expect(token.Gt, diag.SynUnclosedDelimiter, "'>'")
		if !ok {
			return nil, false
		}
		return &ast.TypeExpr{Kind: ast.TypeMap, Key: key, Value: val, Span: joinSpan(tok.Span, closeTok.Span)}, true
	}
	if !tok.IsIdentLike() && tok.Kind != token.Dot {
		p.errf(diag.SynExpectType, "expected type, got %s", describe(tok))
		return nil, false
	}
	name := p.qualName()
	if name.Text == "" || strings.HasSuffix(name.Text, ".") {
		return nil, false
	}
	return &ast.TypeExpr{Kind: ast.TypeNamed, Name: name, Span: name.Span}, true
}

func (p *Parser) parseOneof() *ast.Oneof {
	kw := p.advance()
	name, ok := p.ident("oneof name")
	if !ok {
		p.resyncProtoMember()
		return nil
	}
	o := &ast.Oneof{Name: name, Doc: kw.Doc()}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open oneof body")
	if !ok {
		p.resyncProtoMember()
		return nil
	}
	for !p.atAny(token.RBrace, token.EOF) && !p.enough() {
		switch tok := p.peek(); tok.Kind {
		case token.Semicolon:
			p.advance()
			continue
		case token.KwOption:
			if opt, ok := p.parseOptionStmt(); ok {
				o.Options = append(o.Options, opt)
			}
			continue
		case token.KwRequired, token.KwOptional, token.KwRepeated:
			p.report(diag.SynUnexpectedToken, diag.SevError, tok.Span, "oneof fields cannot have labels")
			p.advance()
		}
		before := p.peek().Span
		fld, ok := p.parseProtoField(false)
		if !ok {
			p.resyncProtoMember()
			if p.peek().Span == before && !p.atAny(token.RBrace, token.EOF) {
				p.advance()
			}
			continue
		}
		if fld != nil {
			o.Fields = append(o.Fields, fld)
		}
	}
	o.Span = joinSpan(kw.Span, p.closeBody(open.Span, "oneof"))
	return o
}

// parseReserved: reserved (ranges | names) ';'. max — верхняя граница для `max`.
func (p *Parser) parseReserved(limit int64) (ast.Reserved, bool) {
	kw := p.advance()
	r := ast.Reserved{}
	for {
		if p.at(token.StringLit) {
			tok := p.advance()
			r.Names = append(r.Names, p.unquote(tok))
		} else if tok := p.peek(); tok.Kind == token.Ident {
			// editions-стиль: reserved foo, bar;
			p.advance()
			r.Names = append(r.Names, tok.Text)
		} else {
			lo, _, ok := p.signedInt("reserved number")
			if !ok {
				p.resyncProtoMember()
				return r, false
			}
			hi := lo
			if p.eat(token.KwTo) {
				if p.eat(token.KwMax) {
					hi = limit
				} else if hi, _, ok = p.signedInt("range end"); !ok {
					p.resyncProtoMember()
					return r, false
				}
			}
			if hi < lo {
				p.report(diag.SynBadFieldNumber, diag.SevError, joinSpan(kw.Span, p.lastSpan), "reserved range end is smaller than its start")
			}
			r.Ranges = append(r.Ranges, ast.Range{Lo: lo, Hi: hi})
		}
		if !p.eat(token.Comma) {
			break
		}
	}
	r.Span = joinSpan(kw.Span, p.lastSpan)
	p.expectSemi()
	return r, true
}

func (p *Parser) parseProtoEnum(doc string) *ast.ProtoEnum {
	kw := p.advance()
	name, ok := p.ident("enum name")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return nil
	}
	d := &ast.ProtoEnum{Name: name, Doc: doc}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open enum body")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return nil
	}
	for !p.atAny(token.RBrace, token.EOF) && !p.enough() {
		before := p.peek().Span
		switch tok := p.peek(); tok.Kind {
		case token.Semicolon:
			p.advance()
		case token.KwOption:
			if opt, ok := p.parseOptionStmt(); ok {
				d.Options = append(d.Options, opt)
			}
		case token.KwReserved:
			if r, ok := p.parseReserved(protoEnumMax); ok {
				d.Reserved = append(d.Reserved, r)
			}
		default:
			if v, ok := p.parseProtoEnumValue(); ok {
				d.Values = append(d.Values, v)
			} else {
				p.resyncProtoMember()
			}
		}
		if p.peek().Span == before && !p.atAny(token.RBrace, token.EOF) {
			p.advance()
		}
	}
	d.Span = joinSpan(kw.Span, p.closeBody(open.Span, "enum"))
	return d
}

func (p *Parser) parseProtoEnumValue() (*ast.EnumValue, bool) {
	first := p.peek()
	name, ok := p.ident("enum value name")
	if !ok {
		return nil, false
	}
	if _, ok = p.expect(token.Assign, diag.SynExpectEquals, "'=' after enum value name"); !ok {
		return nil, false
	}
	n, _, ok := p.signedInt("enum value")
	if !ok {
		return nil, false
	}
	v := &ast.EnumValue{Name: name, Value: n, HasValue: true, Doc: first.Doc()}
	if v.Annotations, ok = p.parseFieldOptions(); !ok {
		return nil, false
	}
	v.Span = joinSpan(name.Span, p.lastSpan)
	p.expectSemi()
	return v, true
}

func (p *Parser) parseProtoService(doc string) *ast.ProtoService {
	kw := p.advance()
	name, ok := p.ident("service name")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return nil
	}
	d := &ast.ProtoService{Name: name, Doc: doc}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open service body")
	if !ok {
		p.resyncUntil(protoTopLevel...)
		return nil
	}
	for !p.atAny(token.RBrace, token.EOF) && !p.enough() {
		before := p.peek().Span
		switch tok := p.peek(); tok.Kind {
		case token.Semicolon:
			p.advance()
		case token.KwOption:
			if opt, ok := p.parseOptionStmt(); ok {
				d.Options = append(d.Options, opt)
			}
		case token.KwRPC:
			if m, ok := p.parseRPC(); ok {
				d.Methods = append(d.Methods, m)
			} else {
				p.resyncProtoMember()
			}
		default:
			p.errf(diag.SynUnexpectedToken, "expected rpc, got %s", describe(tok))
			p.resyncProtoMember()
		}
		if p.peek().Span == before && !p.atAny(token.RBrace, token.EOF) {
			p.advance()
		}
	}
	d.Span = joinSpan(kw.Span, p.closeBody(open.Span, "service"))
	return d
}

// parseRPC: rpc Name '(' [stream] Type ')' returns '(' [stream] Type ')' (';' | '{' options '}').
func (p *Parser) parseRPC() (*ast.Method, bool) {
	kw := p.advance()
	m := &ast.Method{Doc: kw.Doc()}
	var ok bool
	if m.Name, ok = p.ident("rpc name"); !ok {
		return nil, false
	}
	var arg *ast.TypeExpr
	if arg, m.ArgStream, ok = p.rpcType(); !ok {
		return nil, false
	}
	m.Args = []*ast.Field{{ID: 1, HasID: true, Name: ast.Ident{Name: "request", Span: arg.Span}, Type: arg, Span: arg.Span}}
	if _, ok = p.expect(token.KwReturns, diag.SynUnexpectedToken, "'returns'"); !ok {
		return nil, false
	}
	if m.Result, m.ResultStream, ok = p.rpcType(); !ok {
		return nil, false
	}
	m.Span = joinSpan(kw.Span, p.lastSpan)
	if p.at(token.LBrace) {
		open := p.advance()
		for !p.atAny(token.RBrace, token.EOF) {
			if p.eat(token.Semicolon) {
				continue
			}
			if !p.at(token.KwOption) {
				p.errf(diag.SynUnexpectedToken, "expected option, got %s", describe(p.peek()))
				p.resyncProtoMember()
				continue
			}
			if opt, ok := p.parseOptionStmt(); ok {
				m.Annotations = append(m.Annotations, opt)
			}
		}
		p.closeBody(open.Span, "rpc options")
		p.eat(token.Semicolon)
		return m, true
	}
	p.expectSemi()
	return m, true
}

func (p *Parser) rpcType() (*ast.TypeExpr, bool, bool) {
	if _, ok := p.expect(token.LParen, diag.SynUnexpectedToken, "'('"); !ok {
		return nil, false, false
	}
	stream := false
	// `stream` может быть и именем сообщения: rpc F(stream) returns (...)
	if p.at(token.KwStream) {
		kw := p.advance()
		if p.eat(token.RParen) {
			return &ast.TypeExpr{Kind: ast.TypeNamed, Name: ast.QualName{Text: kw.Text, Span: kw.Span}, Span: kw.Span}, false, true
		}
		stream = true
	}
	t, ok := p.parseProtoType()
	if !ok {
		return nil, false, false
	}
	if t.Kind == ast.TypeMap {
		p.report(diag.SynExpectType, diag.SevError, t.Span, "rpc types must be message names")
	}
	if _, ok := p.expect(token.RParen, diag.SynUnclosedDelimiter, "')'"); !ok {
		return nil, false, false
	}
	return t, stream, true
}

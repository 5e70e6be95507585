package parser

import (
	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/source"
	"idlc/internal/token"
)

var thriftTopLevel = []token.Kind{
	token.KwInclude, token.KwCppInclude, token.KwNamespace,
	token.KwTypedef, token.KwConst, token.KwEnum,
	token.KwStruct, token.KwUnion, token.KwException, token.KwService,
}

// ParseThrift parses one Thrift IDL file. The returned File is never nil:
// declarations that failed to parse are skipped and reported.
func ParseThrift(file *source.File, opts Options) Result {
	p := newParser(file, token.DialectThrift, opts)
	f := p.newFile()
	for !p.at(token.EOF) && !p.enough() {
		before := p.peek().Span
		p.parseThriftTopLevel(f)
		if p.peek().Span == before && !p.at(token.EOF) {
			// ничего не съели — гарантируем прогресс
			p.advance()
			p.resyncUntil(thriftTopLevel...)
		}
	}
	return p.result(f)
}

func (p *Parser) parseThriftTopLevel(f *ast.File) {
	tok := p.peek()
	doc := tok.Doc()
	switch tok.Kind {
	case token.KwInclude, token.KwCppInclude:
		p.advance()
		path, ok := p.expect(token.StringLit, diag.SynExpectString, "quoted path")
		if ok && tok.Kind == token.KwInclude {
			f.Imports = append(f.Imports, ast.Import{Path: p.unquote(path), Span: joinSpan(tok.Span, path.Span)})
		}
		p.listSep()
	case token.KwNamespace:
		p.parseNamespace(f)
	case token.KwTypedef:
		p.advance()
		d := &ast.ThriftTypedef{Doc: doc}
		var ok bool
		if d.Type, ok = p.parseThriftType(); !ok {
			p.resyncUntil(thriftTopLevel...)
			return
		}
		if d.Name, ok = p.ident("typedef name"); !ok {
			p.resyncUntil(thriftTopLevel...)
			return
		}
		d.Annotations = p.parseAnnotations()
		d.Span = joinSpan(tok.Span, p.lastSpan)
		p.listSep()
		f.Decls = append(f.Decls, d)
	case token.KwConst:
		p.advance()
		d := &ast.ThriftConst{Doc: doc}
		var ok bool
		if d.Type, ok = p.parseThriftType(); ok {
			d.Name, ok = p.ident("constant name")
		}
		if ok {
			_, ok = p.expect(token.Assign, diag.SynExpectEquals, "'=' after constant name")
		}
		if ok {
			d.Value, ok = p.parseConst()
		}
		if !ok {
			p.resyncUntil(thriftTopLevel...)
			return
		}
		d.Span = joinSpan(tok.Span, p.lastSpan)
		p.listSep()
		f.Decls = append(f.Decls, d)
	case token.KwEnum:
		if d := p.parseThriftEnum(doc); d != nil {
			f.Decls = append(f.Decls, d)
		}
	case token.KwStruct, token.KwUnion, token.KwException:
		if d := p.parseThriftStruct(doc); d != nil {
			f.Decls = append(f.Decls, d)
		}
	case token.KwService:
		if d := p.parseThriftService(doc); d != nil {
			f.Decls = append(f.Decls, d)
		}
	case token.Semicolon:
		p.advance()
	default:
		p.errf(diag.SynUnexpectedTopLevel, "expected declaration, got %s", describe(tok))
		p.advance()
		p.resyncUntil(thriftTopLevel...)
	}
}

func (p *Parser) parseNamespace(f *ast.File) {
	kw := p.advance()
	var scope string
	if p.at(token.Star) {
		p.advance()
		scope = "*"
	} else {
		id, ok := p.ident("namespace scope")
		if !ok {
			p.resyncUntil(thriftTopLevel...)
			return
		}
		scope = id.Name
	}
	var name string
	switch tok := p.peek(); {
	case tok.Kind == token.StringLit:
		// старый синтаксис: namespace java "a.b"
		p.advance()
		name = p.unquote(tok)
	case tok.IsIdentLike():
		name = p.qualName().Text
	default:
		p.errf(diag.SynExpectIdentifier, "expected namespace name, got %s", describe(tok))
		p.resyncUntil(thriftTopLevel...)
		return
	}
	f.Namespaces = append(f.Namespaces, ast.Namespace{Scope: scope, Name: name, Span: joinSpan(kw.Span, p.lastSpan)})
	p.parseAnnotations()
	p.listSep()
}

// parseThriftType: BaseType | Ident | list<T> | set<T> | map<K,V>, с
// необязательными аннотациями типа.
func (p *Parser) parseThriftType() (*ast.TypeExpr, bool) {
	tok := p.peek()
	var t *ast.TypeExpr
	switch tok.Kind {
	case token.KwList, token.KwSet:
		p.advance()
		p.skipCppType()
		if _, ok := p.expect(token.Lt, diag.SynExpectType, "'<'"); !ok {
			return nil, false
		}
		elem, ok := p.parseThriftType()
		if !ok {
			return nil, false
		}
		closeTok, ok := p.expect(token.Gt, diag.SynUnclosedDelimiter, "'>'")
		if !ok {
			return nil, false
		}
		kind := ast.TypeList
		if tok.Kind == token.KwSet {
			kind = ast.TypeSet
		}
		t = &ast.TypeExpr{Kind: kind, Elem: elem, Span: joinSpan(tok.Span, closeTok.Span)}
		p.skipCppType()
	case token.KwMap:
		p.advance()
		p.skipCppType()
		if _, ok := p.expect(token.Lt, diag.SynExpectType, "'<'"); !ok {
			return nil, false
		}
		key, ok := p.parseThriftType()
		if !ok {
			return nil, false
		}
		if _, ok = p.expect(token.Comma, diag.SynUnexpectedToken, "',' between map key and value"); !ok {
			return nil, false
		}
		val, ok := p.parseThriftType()
		if !ok {
			return nil, false
		}
		closeTok, ok := p.expect(token.Gt, diag.SynUnclosedDelimiter, "'>'")
		if !ok {
			return nil, false
		}
		t = &ast.TypeExpr{Kind: ast.TypeMap, Key: key, Value: val, Span: joinSpan(tok.Span, closeTok.Span)}
	default:
		if !tok.IsIdentLike() || tok.Kind == token.KwVoid {
			p.errf(diag.SynExpectType, "expected type, got %s", describe(tok))
			return nil, false
		}
		name := p.qualName()
		t = &ast.TypeExpr{Kind: ast.TypeNamed, Name: name, Span: name.Span}
	}
	if p.at(token.LParen) {
		t.Annotations = p.parseAnnotations()
	}
	return t, true
}

// skipCppType пропускает устаревшее `cpp_type "..."`.
func (p *Parser) skipCppType() {
	if tok := p.peek(); tok.Kind == token.Ident && tok.Text == "cpp_type" {
		p.advance()
		p.expect(token.StringLit, diag.SynExpectString, "quoted C++ type")
	}
}

// parseAnnotations: '(' name ['=' value] (','|';')? ... ')'. Возвращает nil,
// если следующий токен не '('.
func (p *Parser) parseAnnotations() []ast.Annotation {
	if !p.at(token.LParen) {
		return nil
	}
	open := p.advance()
	var out []ast.Annotation
	for !p.atAny(token.RParen, token.EOF, token.RBrace) {
		name, ok := p.ident("annotation name")
		if !ok {
			p.resyncUntil(token.Comma, token.RParen, token.RBrace)
			p.listSep()
			continue
		}
		a := ast.Annotation{Name: name.Name, Span: name.Span}
		if p.eat(token.Assign) {
			v, ok := p.parseConst()
			if !ok {
				p.resyncUntil(token.Comma, token.RParen, token.RBrace)
			}
			a.Value = v
		}
		a.Span = joinSpan(a.Span, p.lastSpan)
		out = append(out, a)
		p.listSep()
	}
	if _, ok := p.expect(token.RParen, diag.SynUnclosedDelimiter, "')' to close annotations"); !ok {
		p.report(diag.SynUnclosedDelimiter, diag.SevInfo, open.Span, "annotations opened here")
	}
	return out
}

func (p *Parser) parseThriftEnum(doc string) *ast.ThriftEnum {
	kw := p.advance()
	name, ok := p.ident("enum name")
	if !ok {
		p.resyncUntil(thriftTopLevel...)
		return nil
	}
	d := &ast.ThriftEnum{Name: name, Doc: doc}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open enum body")
	if !ok {
		p.resyncUntil(thriftTopLevel...)
		return nil
	}
	for !p.atAny(token.RBrace, token.EOF) && !p.enough() {
		start := p.peek()
		vname, ok := p.ident("enum value name")
		if !ok {
			p.resyncMember(start.Span)
			continue
		}
		v := &ast.EnumValue{Name: vname, Doc: start.Doc()}
		if p.eat(token.Assign) {
			n, _, ok := p.signedInt("enum value")
			if !ok {
				p.resyncMember(start.Span)
				continue
			}
			v.Value, v.HasValue = n, true
		}
		v.Annotations = p.parseAnnotations()
		v.Span = joinSpan(vname.Span, p.lastSpan)
		d.Values = append(d.Values, v)
		p.listSep()
	}
	closeSpan := p.closeBody(open.Span, "enum")
	d.Annotations = p.parseAnnotations()
	d.Span = joinSpan(kw.Span, closeSpan)
	p.listSep()
	return d
}

func (p *Parser) parseThriftStruct(doc string) *ast.ThriftStruct {
	kw := p.advance()
	kind := ast.KindStruct
	switch kw.Kind {
	case token.KwUnion:
		kind = ast.KindUnion
	case token.KwException:
		kind = ast.KindException
	}
	name, ok := p.ident(kind.String() + " name")
	if !ok {
		p.resyncUntil(thriftTopLevel...)
		return nil
	}
	d := &ast.ThriftStruct{Kind: kind, Name: name, Doc: doc}
	if tok := p.peek(); tok.Kind == token.Ident && tok.Text == "xsd_all" {
		p.advance()
	}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open "+kind.String()+" body")
	if !ok {
		p.resyncUntil(thriftTopLevel...)
		return nil
	}
	d.Fields = p.parseThriftFields(token.RBrace)
	closeSpan := p.closeBody(open.Span, kind.String())
	d.Annotations = p.parseAnnotations()
	d.Span = joinSpan(kw.Span, closeSpan)
	p.listSep()
	return d
}

// parseThriftFields читает поля до закрывающего токена end (не съедая его).
func (p *Parser) parseThriftFields(end token.Kind) []*ast.Field {
	var out []*ast.Field
	for !p.atAny(end, token.EOF, token.RBrace) && !p.enough() {
		start := p.peek()
		fld, ok := p.parseThriftField()
		if !ok {
			if end == token.RParen {
				p.resyncUntil(token.Comma, token.RParen, token.RBrace)
				p.listSep()
			} else {
				p.resyncMember(start.Span)
			}
			continue
		}
		out = append(out, fld)
		p.listSep()
	}
	return out
}

func (p *Parser) parseThriftField() (*ast.Field, bool) {
	first := p.peek()
	fld := &ast.Field{Doc: first.Doc()}
	if p.atAny(token.IntLit, token.Minus, token.Plus) {
		id, sp, ok := p.signedInt("field id")
		if !ok {
			return nil, false
		}
		if _, ok := p.expect(token.Colon, diag.SynExpectFieldID, "':' after field id"); !ok {
			return nil, false
		}
		fld.ID, fld.HasID, fld.IDSpan = id, true, sp
	}
	switch tok := p.peek(); tok.Kind {
	case token.KwRequired:
		fld.Label, fld.LabelSpan = ast.LabelRequired, p.advance().Span
	case token.KwOptional:
		fld.Label, fld.LabelSpan = ast.LabelOptional, p.advance().Span
	}
	typ, ok := p.parseThriftType()
	if !ok {
		return nil, false
	}
	fld.Type = typ
	if fld.Name, ok = p.ident("field name"); !ok {
		return nil, false
	}
	if p.eat(token.Assign) {
		if fld.Default, ok = p.parseConst(); !ok {
			return nil, false
		}
	}
	fld.Annotations = p.parseAnnotations()
	fld.Span = joinSpan(first.Span, p.lastSpan)
	return fld, true
}

func (p *Parser) parseThriftService(doc string) *ast.ThriftService {
	kw := p.advance()
	name, ok := p.ident("service name")
	if !ok {
		p.resyncUntil(thriftTopLevel...)
		return nil
	}
	d := &ast.ThriftService{Name: name, Doc: doc}
	if p.eat(token.KwExtends) {
		base := p.qualName()
		if base.Text == "" {
			p.resyncUntil(thriftTopLevel...)
			return nil
		}
		d.Extends = &base
	}
	open, ok := p.expect(token.LBrace, diag.SynUnexpectedToken, "'{' to open service body")
	if !ok {
		p.resyncUntil(thriftTopLevel...)
		return nil
	}
	for !p.atAny(token.RBrace, token.EOF) && !p.enough() {
		start := p.peek()
		m, ok := p.parseThriftMethod()
		if !ok {
			p.resyncMember(start.Span)
			continue
		}
		d.Methods = append(d.Methods, m)
		p.listSep()
	}
	closeSpan := p.closeBody(open.Span, "service")
	d.Annotations = p.parseAnnotations()
	d.Span = joinSpan(kw.Span, closeSpan)
	p.listSep()
	return d
}

func (p *Parser) parseThriftMethod() (*ast.Method, bool) {
	first := p.peek()
	m := &ast.Method{Doc: first.Doc()}
	if p.eat(token.KwOneway) {
		m.Oneway = true
	}
	if !p.eat(token.KwVoid) {
		res, ok := p.parseThriftType()
		if !ok {
			return nil, false
		}
		m.Result = res
	}
	var ok bool
	if m.Name, ok = p.ident("method name"); !ok {
		return nil, false
	}
	if m.Args, ok = p.parseParamList("arguments"); !ok {
		return nil, false
	}
	if p.eat(token.KwThrows) {
		if m.Throws, ok = p.parseParamList("throws clause"); !ok {
			return nil, false
		}
	}
	m.Annotations = p.parseAnnotations()
	m.Span = joinSpan(first.Span, p.lastSpan)
	return m, true
}

func (p *Parser) parseParamList(what string) ([]*ast.Field, bool) {
	open, ok := p.expect(token.LParen, diag.SynUnexpectedToken, "'(' to open "+what)
	if !ok {
		return nil, false
	}
	fields := p.parseThriftFields(token.RParen)
	if _, ok := p.expect(token.RParen, diag.SynUnclosedDelimiter, "')' to close "+what); !ok {
		p.report(diag.SynUnclosedDelimiter, diag.SevInfo, open.Span, what+" opened here")
		return fields, false
	}
	return fields, true
}

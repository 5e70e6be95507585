package parser

import (
	"math"
	"strconv"
	"strings"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/source"
	"idlc/internal/token"
)

// parseIntText разбирает целочисленный литерал. Thrift: десятичные и 0x;
// proto дополнительно понимает восьмеричные с ведущим 0.
func parseIntText(text string, dialect token.Dialect) (int64, bool) {
	base := 10
	digits := text
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		base, digits = 16, text[2:]
	case dialect == token.DialectProto && len(text) > 1 && text[0] == '0':
		base, digits = 8, text[1:]
	}
	if v, err := strconv.ParseInt(digits, base, 64); err == nil {
		return v, true
	}
	// 0xFFFFFFFFFFFFFFFF и подобные: сохраняем битовый образ
	if u, err := strconv.ParseUint(digits, base, 64); err == nil {
		return int64(u), true // #nosec G115 -- intentional two's complement reinterpretation
	}
	return 0, false
}

// signedInt разбирает [+-]? IntLit.
func (p *Parser) signedInt(what string) (int64, source.Span, bool) {
	start := p.peek().Span
	neg := false
	if p.at(token.Minus) || p.at(token.Plus) {
		neg = p.advance().Kind == token.Minus
	}
	tok, ok := p.expect(token.IntLit, diag.SynBadFieldNumber, what)
	if !ok {
		return 0, start, false
	}
	v, ok := parseIntText(tok.Text, p.dialect)
	if !ok {
		p.report(diag.LexBadNumber, diag.SevError, tok.Span, "integer literal out of range")
		return 0, joinSpan(start, tok.Span), false
	}
	if neg {
		v = -v
	}
	return v, joinSpan(start, tok.Span), true
}

// parseConst разбирает значение константы/опции:
// int, float, string, bool, identifier, [list], {map}. Списки и
// словари допустимы только в thrift; в proto '{' — агрегатное значение
// опции, которое пропускается целиком.
func (p *Parser) parseConst() (*ast.ConstExpr, bool) {
	tok := p.peek()
	switch tok.Kind {
	case token.Minus, token.Plus:
		p.advance()
		neg := tok.Kind == token.Minus
		next := p.peek()
		switch {
		case next.Kind == token.IntLit:
			c, ok := p.parseConst()
			if ok && neg {
				c.Int = -c.Int
			}
			if c != nil {
				c.Span = joinSpan(tok.Span, c.Span)
			}
			return c, ok
		case next.Kind == token.FloatLit || (next.Kind == token.Ident && (next.Text == "inf" || next.Text == "nan")):
			c, ok := p.parseConst()
			if ok && neg {
				c.Float = -c.Float
			}
			if c != nil {
				c.Span = joinSpan(tok.Span, c.Span)
			}
			return c, ok
		}
		p.errf(diag.SynExpectConstValue, "expected number after sign, got %s", describe(next))
		return nil, false

	case token.IntLit:
		p.advance()
		v, ok := parseIntText(tok.Text, p.dialect)
		if !ok {
			p.report(diag.LexBadNumber, diag.SevError, tok.Span, "integer literal out of range")
			return nil, false
		}
		return &ast.ConstExpr{Kind: ast.ConstInt, Int: v, Span: tok.Span}, true

	case token.FloatLit:
		p.advance()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			p.report(diag.LexBadNumber, diag.SevError, tok.Span, "invalid float literal")
			return nil, false
		}
		return &ast.ConstExpr{Kind: ast.ConstFloat, Float: v, Span: tok.Span}, true

	case token.StringLit:
		p.advance()
		s := p.unquote(tok)
		sp := tok.Span
		// proto: соседние строковые литералы склеиваются
		for p.dialect == token.DialectProto && p.at(token.StringLit) {
			next := p.advance()
			s += p.unquote(next)
			sp = joinSpan(sp, next.Span)
		}
		return &ast.ConstExpr{Kind: ast.ConstString, Str: s, Span: sp}, true

	case token.KwTrue, token.KwFalse:
		p.advance()
		return &ast.ConstExpr{Kind: ast.ConstBool, Bool: tok.Kind == token.KwTrue, Span: tok.Span}, true

	case token.LBracket:
		if p.dialect == token.DialectThrift {
			return p.parseConstList()
		}

	case token.LBrace:
		if p.dialect == token.DialectThrift {
			return p.parseConstMap()
		}
		start := tok.Span
		p.skipBalanced()
		p.report(diag.SynUnsupported, diag.SevWarning, joinSpan(start, p.lastSpan), "aggregate option values are ignored")
		return nil, true
	}

	if tok.IsIdentLike() {
		if tok.Text == "inf" || tok.Text == "nan" {
			p.advance()
			v := math.Inf(1)
			if tok.Text == "nan" {
				v = math.NaN()
			}
			return &ast.ConstExpr{Kind: ast.ConstFloat, Float: v, Span: tok.Span}, true
		}
		name := p.qualName()
		return &ast.ConstExpr{Kind: ast.ConstIdent, Ident: name, Span: name.Span}, true
	}

	p.errf(diag.SynExpectConstValue, "expected constant value, got %s", describe(tok))
	return nil, false
}

func (p *Parser) parseConstList() (*ast.ConstExpr, bool) {
	open := p.advance()
	c := &ast.ConstExpr{Kind: ast.ConstList, Span: open.Span}
	for !p.atAny(token.RBracket, token.EOF) {
		v, ok := p.parseConst()
		if !ok {
			p.resyncUntil(token.Comma, token.Semicolon, token.RBracket)
		} else {
			c.Elems = append(c.Elems, v)
		}
		p.listSep()
	}
	closeTok, ok := p.expect(token.RBracket, diag.SynUnclosedDelimiter, "']' to close list")
	if ok {
		c.Span = joinSpan(c.Span, closeTok.Span)
	}
	return c, ok
}

func (p *Parser) parseConstMap() (*ast.ConstExpr, bool) {
	open := p.advance()
	c := &ast.ConstExpr{Kind: ast.ConstMap, Span: open.Span}
	for !p.atAny(token.RBrace, token.EOF) {
		k, ok := p.parseConst()
		if ok {
			_, ok = p.expect(token.Colon, diag.SynUnexpectedToken, "':' in map constant")
		}
		var v *ast.ConstExpr
		if ok {
			v, ok = p.parseConst()
		}
		if !ok {
			p.resyncUntil(token.Comma, token.Semicolon, token.RBrace)
		} else {
			c.Entries = append(c.Entries, ast.ConstEntry{Key: k, Value: v})
		}
		p.listSep()
	}
	closeTok, ok := p.expect(token.RBrace, diag.SynUnclosedDelimiter, "'}' to close map")
	if ok {
		c.Span = joinSpan(c.Span, closeTok.Span)
	}
	return c, ok
}

// qualName читает имя с точками. Thrift-лексер уже склеивает точки в
// идентификатор; proto-имена собираются из Ident ('.' Ident)* и могут
// начинаться с точки.
func (p *Parser) qualName() ast.QualName {
	var b strings.Builder
	start := p.peek().Span
	end := start
	if p.dialect == token.DialectProto && p.at(token.Dot) {
		end = p.advance().Span
		b.WriteByte('.')
	}
	for {
		tok := p.peek()
		if !tok.IsIdentLike() {
			if b.Len() == 0 || strings.HasSuffix(b.String(), ".") {
				p.errf(diag.SynExpectIdentifier, "expected name, got %s", describe(tok))
			}
			break
		}
		p.advance()
		b.WriteString(tok.Text)
		end = tok.Span
		if p.dialect != token.DialectProto || !p.at(token.Dot) {
			break
		}
		end = p.advance().Span
		b.WriteByte('.')
	}
	return ast.QualName{Text: b.String(), Span: joinSpan(start, end)}
}

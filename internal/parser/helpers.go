package parser

import (
	"fmt"
	"strings"

	"idlc/internal/ast"
	"idlc/internal/diag"
	"idlc/internal/source"
	"idlc/internal/token"
)

// advance — съедает следующий токен и обновляет lastSpan
func (p *Parser) advance() token.Token {
	tok := p.lx.Next()
	if tok.Kind != token.EOF {
		p.lastSpan = tok.Span
	}
	return tok
}

// diagSpan — лучший span для диагностики: на EOF указываем сразу за
// последним съеденным токеном.
func (p *Parser) diagSpan() source.Span {
	peek := p.peek()
	if peek.Kind == token.EOF && p.lastSpan.End > 0 {
		return p.lastSpan.At()
	}
	return peek.Span
}

func describe(t token.Token) string {
	switch t.Kind {
	case token.EOF:
		return "end of file"
	case token.Ident, token.IntLit, token.FloatLit, token.StringLit, token.Invalid:
		return fmt.Sprintf("%q", t.Text)
	default:
		return t.Kind.String()
	}
}

// expect — ожидаем конкретный токен. Если нет — репортим и возвращаем (invalid,false).
func (p *Parser) expect(k token.Kind, code diag.Code, what string) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.errf(code, "expected %s, got %s", what, describe(p.peek()))
	return token.Token{Kind: token.Invalid, Span: p.diagSpan()}, false
}

func (p *Parser) errf(code diag.Code, format string, args ...any) {
	p.report(code, diag.SevError, p.diagSpan(), fmt.Sprintf(format, args...))
}

func (p *Parser) report(code diag.Code, sev diag.Severity, sp source.Span, msg string) {
	p.Report(code, sev, sp, msg, nil, nil)
}

// ident принимает идентификатор или ключевое слово в роли имени.
func (p *Parser) ident(what string) (ast.Ident, bool) {
	tok := p.peek()
	if tok.IsIdentLike() {
		p.advance()
		return ast.Ident{Name: tok.Text, Span: tok.Span}, true
	}
	p.errf(diag.SynExpectIdentifier, "expected %s, got %s", what, describe(tok))
	return ast.Ident{Span: p.diagSpan()}, false
}

// resyncUntil прокручивает токены до одного из stop (не съедая его) или EOF.
// Сбалансированные {...} пропускаются целиком.
func (p *Parser) resyncUntil(stop ...token.Kind) {
	for !p.at(token.EOF) {
		if p.atAny(stop...) {
			return
		}
		if p.at(token.LBrace) {
			p.skipBalanced()
			continue
		}
		p.advance()
	}
}

// skipBalanced съедает '{' ... '}' с учётом вложенности.
func (p *Parser) skipBalanced() {
	depth := 0
	for !p.at(token.EOF) {
		switch p.advance().Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
			if depth <= 0 {
				return
			}
		}
	}
}

// resyncMember восстанавливается внутри тела объявления: до ',' / ';'
// (съедаются), до '}' или до токена, начинающего новую строку.
func (p *Parser) resyncMember(start source.Span) {
	for !p.at(token.EOF) {
		tok := p.peek()
		switch tok.Kind {
		case token.Comma, token.Semicolon:
			p.advance()
			return
		case token.RBrace:
			return
		}
		if tok.Span.Start > start.Start && startsLine(tok) {
			return
		}
		if tok.Kind == token.LBrace {
			p.skipBalanced()
			continue
		}
		p.advance()
	}
}

func startsLine(t token.Token) bool {
	for _, tr := range t.Leading {
		if tr.Kind == token.TriviaNewline {
			return true
		}
	}
	return false
}

// closeBody съедает '}' тела объявления или сообщает о незакрытой скобке.
func (p *Parser) closeBody(open source.Span, what string) source.Span {
	if tok, ok := p.expect(token.RBrace, diag.SynUnclosedDelimiter, "'}' to close "+what); ok {
		return tok.Span
	}
	p.report(diag.SynUnclosedDelimiter, diag.SevInfo, open, "block opened here")
	return p.lastSpan
}

// listSep съедает необязательный разделитель ',' или ';'.
func (p *Parser) listSep() {
	if !p.eat(token.Comma) {
		p.eat(token.Semicolon)
	}
}

func joinSpan(a, b source.Span) source.Span {
	return a.Cover(b)
}

// unquote раскрывает строковый литерал в одинарных или двойных кавычках.
// Поддерживаются C-подобные escape-последовательности; неверные
// сообщаются с кодом LexBadEscape и остаются как есть.
func (p *Parser) unquote(tok token.Token) string {
	text := tok.Text
	if len(text) < 2 {
		return ""
	}
	body := text[1 : len(text)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\\', '\'', '"', '?':
			b.WriteByte(e)
		case 'x', 'X':
			n, w := scanDigits(body[i+1:], 16, 2)
			if w == 0 {
				p.badEscape(tok, i)
				b.WriteByte(e)
				continue
			}
			b.WriteByte(byte(n))
			i += w
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			n, w := scanDigits(body[i+1:], 16, width)
			if w != width {
				p.badEscape(tok, i)
				b.WriteByte(e)
				continue
			}
			b.WriteRune(rune(n))
			i += w
		default:
			if e >= '0' && e <= '7' {
				n, w := scanDigits(body[i:], 8, 3)
				b.WriteByte(byte(n))
				i += w - 1
				continue
			}
			p.badEscape(tok, i)
			b.WriteByte(e)
		}
	}
	return b.String()
}

func (p *Parser) badEscape(tok token.Token, at int) {
	// +1 за открывающую кавычку, -1 за обратный слэш
	off := tok.Span.Start + uint32(at)
	p.report(diag.LexBadEscape, diag.SevError, source.Span{File: tok.Span.File, Start: off, End: off + 2},
		"invalid escape sequence")
}

func scanDigits(s string, base, maxLen int) (value, width int) {
	for width < maxLen && width < len(s) {
		d := digitVal(s[width])
		if d >= base {
			break
		}
		value = value*base + d
		width++
	}
	return value, width
}

func digitVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 16
}

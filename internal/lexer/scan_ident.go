package lexer

import (
	"idlc/internal/token"
)

// scanIdentOrKeyword сканирует идентификатор Thrift. Точки внутри
// идентификатора допустимы ("shared.SharedStruct" — один токен), как в
// эталонном компиляторе Thrift; висячая точка в имя не входит.
func (lx *Lexer) scanIdentOrKeyword() token.Token {
	start := lx.cursor.Mark()
	lx.cursor.Bump()
	for {
		b := lx.cursor.Peek()
		if isIdentContinueByte(b) {
			lx.cursor.Bump()
			continue
		}
		if b == '.' {
			if _, b1, ok := lx.cursor.Peek2(); ok && isIdentStartByte(b1) {
				lx.cursor.Bump()
				continue
			}
		}
		break
	}

	sp := lx.cursor.SpanFrom(start)
	text := lx.text(sp)
	if k, ok := token.LookupKeyword(token.DialectThrift, text); ok {
		return token.Token{Kind: k, Span: sp, Text: text}
	}
	return token.Token{Kind: token.Ident, Span: sp, Text: text}
}

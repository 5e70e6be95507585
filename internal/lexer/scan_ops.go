package lexer

import (
	"fmt"
	"unicode/utf8"

	"fortio.org/safecast"

	"idlc/internal/diag"
	"idlc/internal/token"
)

var punct = [256]token.Kind{
	'{': token.LBrace,
	'}': token.RBrace,
	'(': token.LParen,
	')': token.RParen,
	'[': token.LBracket,
	']': token.RBracket,
	'<': token.Lt,
	'>': token.Gt,
	',': token.Comma,
	';': token.Semicolon,
	':': token.Colon,
	'=': token.Assign,
	'.': token.Dot,
	'-': token.Minus,
	'+': token.Plus,
	'*': token.Star,
}

func (lx *Lexer) scanPunct() token.Token {
	start := lx.cursor.Mark()
	b := lx.cursor.Peek()
	if k := punct[b]; k != token.Invalid {
		lx.cursor.Bump()
		sp := lx.cursor.SpanFrom(start)
		return token.Token{Kind: k, Span: sp, Text: lx.text(sp)}
	}

	// неизвестный символ: съедаем целую руну, чтобы не резать UTF-8
	_, size := utf8.DecodeRune(lx.file.Content[lx.cursor.Off:])
	n, err := safecast.Conv[uint32](max(size, 1))
	if err != nil {
		panic(fmt.Errorf("rune size overflow: %w", err))
	}
	lx.cursor.Off += n
	sp := lx.cursor.SpanFrom(start)
	lx.errLex(diag.LexUnknownChar, sp, fmt.Sprintf("unknown character %q", lx.text(sp)))
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.text(sp)}
}

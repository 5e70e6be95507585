package lexer

import (
	"idlc/internal/diag"
	"idlc/internal/token"
)

// collectLeadingTrivia собирает подряд идущие trivia перед значимым токеном.
//   - ' ', '\t', '\r' коалесцируются в один TriviaSpace
//   - последовательные '\n' коалесцируются в один TriviaNewline
//   - //... и #... до \n -> TriviaLineComment, ///... -> TriviaDocLine
//   - /* ... */ -> TriviaBlockComment, /** ... */ -> TriviaDocBlock
func (lx *Lexer) collectLeadingTrivia() {
	for !lx.cursor.EOF() {
		start := lx.cursor.Mark()
		b := lx.cursor.Peek()

		switch {
		case b == ' ' || b == '\t' || b == '\r':
			for {
				b2 := lx.cursor.Peek()
				if b2 != ' ' && b2 != '\t' && b2 != '\r' {
					break
				}
				lx.cursor.Bump()
			}
			lx.pushTrivia(token.TriviaSpace, start)
			continue

		case b == '\n':
			for lx.cursor.Peek() == '\n' {
				lx.cursor.Bump()
			}
			lx.pushTrivia(token.TriviaNewline, start)
			continue

		case b == '#':
			lx.skipLine()
			lx.pushTrivia(token.TriviaLineComment, start)
			continue

		case b == '/':
			if lx.scanCommentIntoHold() {
				continue
			}
		}
		break
	}
}

func (lx *Lexer) pushTrivia(kind token.TriviaKind, start Mark) {
	sp := lx.cursor.SpanFrom(start)
	lx.hold = append(lx.hold, token.Trivia{Kind: kind, Span: sp, Text: lx.text(sp)})
}

func (lx *Lexer) skipLine() {
	for !lx.cursor.EOF() && lx.cursor.Peek() != '\n' {
		lx.cursor.Bump()
	}
}

// //... , ///..., /*...*/ , /**...*/
func (lx *Lexer) scanCommentIntoHold() bool {
	start := lx.cursor.Mark()
	if !lx.cursor.Eat('/') {
		return false
	}
	switch lx.cursor.Peek() {
	case '/':
		lx.cursor.Bump()
		kind := token.TriviaLineComment
		if lx.cursor.Peek() == '/' {
			kind = token.TriviaDocLine
		}
		lx.skipLine()
		lx.pushTrivia(kind, start)
		return true

	case '*':
		lx.cursor.Bump()
		kind := token.TriviaBlockComment
		// "/**/" — пустой обычный комментарий, не doc
		if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == '*' && b1 != '/' {
			kind = token.TriviaDocBlock
		}
		closed := false
		for !lx.cursor.EOF() {
			if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == '*' && b1 == '/' {
				lx.cursor.Bump()
				lx.cursor.Bump()
				closed = true
				break
			}
			lx.cursor.Bump()
		}
		if !closed {
			lx.errLex(diag.LexUnterminatedBlockComment, lx.cursor.SpanFrom(start), "unterminated block comment")
		}
		lx.pushTrivia(kind, start)
		return true

	default:
		lx.cursor.Reset(start)
		return false
	}
}

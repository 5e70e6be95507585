package lexer

import (
	"idlc/internal/diag"
	"idlc/internal/source"
	"idlc/internal/token"
)

type Options struct {
	Reporter diag.Reporter // может быть nil — тогда ошибки игнорируем (но продолжаем лексить)
}

// Stream is the token source consumed by the parsers.
// Next returns the next significant token; after EOF it keeps returning EOF.
type Stream interface {
	Next() token.Token
	Peek() token.Token
}

func errLex(r diag.Reporter, code diag.Code, sp source.Span, msg string) {
	if r != nil {
		r.Report(code, diag.SevError, sp, msg, nil, nil)
	}
}

// Tokenize drains a stream into a slice, EOF token included.
func Tokenize(s Stream) []token.Token {
	var out []token.Token
	for {
		t := s.Next()
		out = append(out, t)
		if t.Kind == token.EOF {
			return out
		}
	}
}

package token

import (
	"idlc/internal/source"
)

// Token represents a single source token with its location and trivia.
type Token struct {
	Kind    Kind
	Span    source.Span
	Text    string
	Leading []Trivia
}

// IsLiteral reports whether the token is a numeric, boolean, or string literal.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case IntLit, FloatLit, StringLit, KwTrue, KwFalse:
		return true
	default:
		return false
	}
}

func (t Token) IsKeyword() bool { return t.Kind.IsKeyword() }

// IsIdentLike reports whether the token can stand for a name.
func (t Token) IsIdentLike() bool {
	return t.Kind == Ident || t.Kind.IsKeyword()
}

// Doc returns the doc comment attached to the token, if any.
func (t Token) Doc() string {
	return DocComment(t.Leading)
}

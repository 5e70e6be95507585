package token_test

import (
	"testing"

	"idlc/internal/token"
)

func TestLookupKeywordPerDialect(t *testing.T) {
	if k, ok := token.LookupKeyword(token.DialectThrift, "struct"); !ok || k != token.KwStruct {
		t.Fatalf("struct: got %v %v", k, ok)
	}
	if _, ok := token.LookupKeyword(token.DialectProto, "struct"); ok {
		t.Fatal("struct is not a proto keyword")
	}
	if k, ok := token.LookupKeyword(token.DialectProto, "oneof"); !ok || k != token.KwOneof {
		t.Fatalf("oneof: got %v %v", k, ok)
	}
	if _, ok := token.LookupKeyword(token.DialectThrift, "Struct"); ok {
		t.Fatal("keywords are case sensitive")
	}
}

func TestKindPredicates(t *testing.T) {
	if !token.KwMessage.IsKeyword() || token.Ident.IsKeyword() || token.Star.IsKeyword() {
		t.Fatal("IsKeyword misclassifies kinds")
	}
	tok := token.Token{Kind: token.KwRequired}
	if !tok.IsIdentLike() {
		t.Error("keywords are usable as names")
	}
	if (token.Token{Kind: token.KwTrue}).IsLiteral() != true {
		t.Error("true is a literal")
	}
	if token.LBrace.String() != "'{'" || token.Kind(250).String() != "unknown" {
		t.Error("unexpected Kind.String")
	}
}

func TestDialectFromPath(t *testing.T) {
	cases := map[string]token.Dialect{
		"a/b.thrift": token.DialectThrift,
		"x.PROTO":    token.DialectProto,
		"y.txt":      token.DialectUnknown,
	}
	for p, want := range cases {
		if got := token.DialectFromPath(p); got != want {
			t.Errorf("%s: got %v want %v", p, got, want)
		}
	}
}

func TestDocComment(t *testing.T) {
	tr := func(k token.TriviaKind, s string) token.Trivia { return token.Trivia{Kind: k, Text: s} }

	leading := []token.Trivia{
		tr(token.TriviaLineComment, "// unrelated"),
		tr(token.TriviaNewline, "\n\n"),
		tr(token.TriviaDocBlock, "/**\n * Point in 2D.\n * Immutable.\n */"),
		tr(token.TriviaNewline, "\n"),
	}
	if got := token.DocComment(leading); got != "Point in 2D.\nImmutable." {
		t.Errorf("doc block: %q", got)
	}

	lines := []token.Trivia{
		tr(token.TriviaLineComment, "// first"),
		tr(token.TriviaNewline, "\n"),
		tr(token.TriviaSpace, "  "),
		tr(token.TriviaLineComment, "# second"),
		tr(token.TriviaNewline, "\n"),
		tr(token.TriviaSpace, "  "),
	}
	if got := token.DocComment(lines); got != "first\nsecond" {
		t.Errorf("line comments: %q", got)
	}

	detached := []token.Trivia{
		tr(token.TriviaLineComment, "// detached"),
		tr(token.TriviaNewline, "\n\n"),
	}
	if got := token.DocComment(detached); got != "" {
		t.Errorf("detached comment must not attach, got %q", got)
	}
}

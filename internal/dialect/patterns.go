package dialect

import (
	"idlc/internal/lexer"
	"idlc/internal/source"
	"idlc/internal/token"
)

// ObserveTokenPair records token-pattern evidence, if any, using a sliding
// 2-token window. The caller feeds tokens in source order.
func ObserveTokenPair(e *Evidence, prev, tok token.Token) {
	if e == nil {
		return
	}
	adjacent := prev.Span.File == tok.Span.File && prev.Span.End == tok.Span.Start

	// Thrift field id: `1:`
	if prev.Kind == token.IntLit && tok.Kind == token.Colon && adjacent {
		e.Add(Hint{
			Dialect: token.DialectThrift,
			Score:   3,
			Reason:  "field ids written as `N:`",
			Span:    prev.Span.Cover(tok.Span),
		})
	}

	// Protobuf field number: `= 1;`. Thrift enums use `= N` too, so the
	// semicolon is what counts.
	if prev.Kind == token.IntLit && tok.Kind == token.Semicolon {
		e.Add(Hint{
			Dialect: token.DialectProto,
			Score:   1,
			Reason:  "field numbers written as `= N;`",
			Span:    prev.Span.Cover(tok.Span),
		})
	}

	// syntax = "proto3"
	if prev.Text == "syntax" && tok.Kind == token.Assign {
		e.Add(Hint{
			Dialect: token.DialectProto,
			Score:   6,
			Reason:  "a `syntax = ...` statement",
			Span:    prev.Span.Cover(tok.Span),
		})
	}
}

// Scan tokenizes f with the Thrift scanner, which accepts both dialects'
// identifiers, and collects evidence. Lexical errors are ignored.
func Scan(f *source.File) *Evidence {
	e := NewEvidence()
	lx := lexer.New(f, lexer.Options{})
	var prev token.Token
	for {
		tok := lx.Next()
		if tok.Kind == token.EOF {
			return e
		}
		if tok.Kind == token.Ident || tok.Kind.IsKeyword() {
			RecordIdent(e, tok.Text, tok.Span)
		}
		ObserveTokenPair(e, prev, tok)
		prev = tok
	}
}

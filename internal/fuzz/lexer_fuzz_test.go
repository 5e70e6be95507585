package fuzztests

import (
	"testing"

	"idlc/internal/diag"
	"idlc/internal/lexer"
	"idlc/internal/source"
	"idlc/internal/token"
)

func fuzzLexer(f *testing.F, d token.Dialect, name string) {
	addCorpusSeeds(f, d)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		fs := source.NewFileSet()
		file := fs.Get(fs.AddVirtual(name, input))

		bag := diag.NewBag(64)
		opts := lexer.Options{Reporter: diag.BagReporter{Bag: bag}}
		var lx lexer.Stream = lexer.New(file, opts)
		if d == token.DialectProto {
			lx = lexer.NewProto(file, opts)
		}
		// каждый токен продвигает позицию, иначе лексер зациклится
		var last uint32
		for i := 0; ; i++ {
			tok := lx.Next()
			if tok.Kind == token.EOF {
				break
			}
			if tok.Span.Start < last || tok.Span.End < tok.Span.Start {
				t.Fatalf("token %d %v goes backwards (last end %d)", i, tok.Span, last)
			}
			if i > len(input)+1 {
				t.Fatalf("lexer produced more tokens than input bytes")
			}
			last = tok.Span.End
		}
	})
}

func FuzzThriftLexer(f *testing.F) { fuzzLexer(f, token.DialectThrift, "fuzz.thrift") }

func FuzzProtoLexer(f *testing.F) { fuzzLexer(f, token.DialectProto, "fuzz.proto") }

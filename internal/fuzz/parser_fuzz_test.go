package fuzztests

import (
	"testing"
	"time"

	"idlc/internal/diag"
	"idlc/internal/lower"
	"idlc/internal/parser"
	"idlc/internal/source"
	"idlc/internal/testkit"
	"idlc/internal/token"
)

// parseTimeout is the maximum time allowed for one input. Longer means an
// error-recovery loop.
const parseTimeout = 5 * time.Second

func fuzzParser(f *testing.F, d token.Dialect, name string) {
	addCorpusSeeds(f, d)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		fs := source.NewFileSet()
		file := fs.Get(fs.AddVirtual(name, input))

		done := make(chan error, 1)
		go func() {
			res := parser.Parse(file, parser.Options{MaxErrors: 128})
			if res.File == nil {
				done <- nil
				return
			}
			_ = lower.Lower(res.File, lower.Options{})
			// инварианты спанов проверяем только у корректных файлов
			if len(input) == 0 || diag.HasErrors(res.Diagnostics) {
				done <- nil
				return
			}
			done <- testkit.CheckSpanInvariants(res.File, file)
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("span invariants: %v", err)
			}
		case <-time.After(parseTimeout):
			t.Fatalf("parser hang on %d bytes: %q", len(input), input)
		}
	})
}

func FuzzThriftParser(f *testing.F) { fuzzParser(f, token.DialectThrift, "fuzz.thrift") }

func FuzzProtoParser(f *testing.F) { fuzzParser(f, token.DialectProto, "fuzz.proto") }

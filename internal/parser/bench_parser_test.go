package parser_test

import (
	"strings"
	"testing"

	"idlc/internal/parser"
	"idlc/internal/source"
)

func BenchmarkParseThrift(b *testing.B) {
	src := strings.Repeat(pointThrift, 20)
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("bench.thrift", []byte(src)))
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for b.Loop() {
		parser.Parse(file, parser.Options{})
	}
}

func BenchmarkParseProto(b *testing.B) {
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("bench.proto", []byte(pointProto)))
	b.SetBytes(int64(len(pointProto)))
	b.ResetTimer()
	for b.Loop() {
		parser.Parse(file, parser.Options{})
	}
}

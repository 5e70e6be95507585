package dialect

import (
	"idlc/internal/source"
	"idlc/internal/token"
)

type keywordSignal struct {
	Dialect token.Dialect
	Score   int
	Reason  string
}

var keywordSignals = map[string][]keywordSignal{
	// Protobuf
	"message":  {{Dialect: token.DialectProto, Score: 6, Reason: "`message`"}},
	"rpc":      {{Dialect: token.DialectProto, Score: 6, Reason: "`rpc`"}},
	"returns":  {{Dialect: token.DialectProto, Score: 5, Reason: "`returns`"}},
	"repeated": {{Dialect: token.DialectProto, Score: 5, Reason: "`repeated`"}},
	"oneof":    {{Dialect: token.DialectProto, Score: 5, Reason: "`oneof`"}},
	"syntax":   {{Dialect: token.DialectProto, Score: 4, Reason: "`syntax`"}},
	"extend":   {{Dialect: token.DialectProto, Score: 3, Reason: "`extend`"}},
	"option":   {{Dialect: token.DialectProto, Score: 2, Reason: "`option`"}},
	"import":   {{Dialect: token.DialectProto, Score: 2, Reason: "`import`"}},
	"package":  {{Dialect: token.DialectProto, Score: 2, Reason: "`package`"}},
	"stream":   {{Dialect: token.DialectProto, Score: 2, Reason: "`stream`"}},
	"int32":    {{Dialect: token.DialectProto, Score: 3, Reason: "type `int32`"}},
	"int64":    {{Dialect: token.DialectProto, Score: 3, Reason: "type `int64`"}},
	"uint32":   {{Dialect: token.DialectProto, Score: 3, Reason: "type `uint32`"}},
	"uint64":   {{Dialect: token.DialectProto, Score: 3, Reason: "type `uint64`"}},
	"sint32":   {{Dialect: token.DialectProto, Score: 3, Reason: "type `sint32`"}},
	"fixed64":  {{Dialect: token.DialectProto, Score: 3, Reason: "type `fixed64`"}},
	"bytes":    {{Dialect: token.DialectProto, Score: 2, Reason: "type `bytes`"}},
	"float":    {{Dialect: token.DialectProto, Score: 1, Reason: "type `float`"}},

	// Thrift
	"struct":      {{Dialect: token.DialectThrift, Score: 5, Reason: "`struct`"}},
	"exception":   {{Dialect: token.DialectThrift, Score: 5, Reason: "`exception`"}},
	"throws":      {{Dialect: token.DialectThrift, Score: 5, Reason: "`throws`"}},
	"typedef":     {{Dialect: token.DialectThrift, Score: 5, Reason: "`typedef`"}},
	"include":     {{Dialect: token.DialectThrift, Score: 4, Reason: "`include`"}},
	"cpp_include": {{Dialect: token.DialectThrift, Score: 5, Reason: "`cpp_include`"}},
	"namespace":   {{Dialect: token.DialectThrift, Score: 4, Reason: "`namespace`"}},
	"oneway":      {{Dialect: token.DialectThrift, Score: 4, Reason: "`oneway`"}},
	"void":        {{Dialect: token.DialectThrift, Score: 3, Reason: "`void`"}},
	"i16":         {{Dialect: token.DialectThrift, Score: 3, Reason: "type `i16`"}},
	"i32":         {{Dialect: token.DialectThrift, Score: 3, Reason: "type `i32`"}},
	"i64":         {{Dialect: token.DialectThrift, Score: 3, Reason: "type `i64`"}},
	"binary":      {{Dialect: token.DialectThrift, Score: 3, Reason: "type `binary`"}},
	"list":        {{Dialect: token.DialectThrift, Score: 3, Reason: "`list<...>`"}},
	"set":         {{Dialect: token.DialectThrift, Score: 2, Reason: "`set<...>`"}},
	"double":      {{Dialect: token.DialectThrift, Score: 1, Reason: "type `double`"}},
	"union":       {{Dialect: token.DialectThrift, Score: 2, Reason: "`union`"}},
	// `required`/`optional` встречаются в обоих (proto2); почти не учитываем
	"required": {
		{Dialect: token.DialectThrift, Score: 1, Reason: "`required`"},
		{Dialect: token.DialectProto, Score: 1, Reason: "`required`"},
	},
}

// RecordIdent collects keyword evidence for an identifier or keyword token.
func RecordIdent(e *Evidence, ident string, span source.Span) {
	if e == nil || ident == "" {
		return
	}
	for _, sig := range keywordSignals[ident] {
		e.Add(Hint{
			Dialect: sig.Dialect,
			Score:   sig.Score,
			Reason:  sig.Reason,
			Span:    span,
		})
	}
}

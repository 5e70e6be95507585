// Package token defines lexical token kinds and trivia shared by the Thrift
// and Protobuf front ends.
// Invariants:
//   - Token.Text is exactly the source bytes covered by Token.Span.
//   - Keywords are dialect specific (see LookupKeyword); parsers accept a
//     keyword wherever an identifier is expected, since both dialects allow
//     most keywords as field and declaration names.
//   - Comments never appear in the token stream; they are attached to the
//     next significant token as leading Trivia.
package token

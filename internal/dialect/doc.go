// Package dialect guesses which IDL a piece of text is written in from its
// tokens. The parser trusts the file extension; this package only supplies
// hints when a .thrift file reads like Protobuf or the other way round.
//
// Detection never changes parsing or resolution.
package dialect

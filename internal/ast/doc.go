// Package ast holds the raw, dialect-specific syntax trees produced by the
// parsers. Nodes keep source spans and doc comments and perform no name
// resolution. Thrift and Protobuf declarations use distinct node types;
// type expressions, constant values, fields and annotations are shared.
package ast

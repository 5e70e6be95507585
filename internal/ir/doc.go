// Package ir holds the dialect-neutral intermediate representation: modules,
// declarations, symbol tables and the frozen resolved Schema.
//
// Declarations of a Schema live in an arena and refer to each other through
// DeclRef values (module path plus local name) and DeclID handles, never
// through owning pointers, so mutually recursive declarations are plain data.
package ir

package query

import "fmt"

// Kind names a family of queries: an input kind set by the caller, or a
// derived kind computed by a registered Func.
type Kind string

// Key identifies one query: its kind plus a canonical argument (a module
// path, a target name, or empty for singletons).
type Key struct {
	Kind Kind
	Arg  string
}

func K(kind Kind, arg string) Key { return Key{Kind: kind, Arg: arg} }

func (k Key) String() string {
	if k.Arg == "" {
		return string(k.Kind)
	}
	return fmt.Sprintf("%s(%s)", k.Kind, k.Arg)
}

// Result is the outcome of one key of a batch.
type Result struct {
	Key   Key
	Value any
	Err   error
}

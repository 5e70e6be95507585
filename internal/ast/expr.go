package ast

import (
	"strconv"
	"strings"

	"idlc/internal/source"
)

type TypeKind uint8

const (
	TypeNamed TypeKind = iota // base type or user reference, by Name
	TypeList
	TypeSet
	TypeMap
)

type TypeExpr struct {
	Kind        TypeKind
	Name        QualName // TypeNamed
	Elem        *TypeExpr
	Key         *TypeExpr
	Value       *TypeExpr
	Annotations []Annotation
	Span        source.Span
}

func (t *TypeExpr) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case TypeList:
		return "list<" + t.Elem.String() + ">"
	case TypeSet:
		return "set<" + t.Elem.String() + ">"
	case TypeMap:
		return "map<" + t.Key.String() + "," + t.Value.String() + ">"
	default:
		return t.Name.Text
	}
}

type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
	ConstBool
	ConstIdent
	ConstList
	ConstMap
)

type ConstEntry struct {
	Key   *ConstExpr
	Value *ConstExpr
}

type ConstExpr struct {
	Kind    ConstKind
	Int     int64
	Float   float64
	Str     string
	Bool    bool
	Ident   QualName
	Elems   []*ConstExpr
	Entries []ConstEntry
	Span    source.Span
}

// String renders the literal back in a dialect-neutral form.
func (c *ConstExpr) String() string {
	if c == nil {
		return ""
	}
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstBool:
		return strconv.FormatBool(c.Bool)
	case ConstIdent:
		return c.Ident.Text
	case ConstList:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ConstMap:
		parts := make([]string, len(c.Entries))
		for i, e := range c.Entries {
			parts[i] = e.Key.String() + ": " + e.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

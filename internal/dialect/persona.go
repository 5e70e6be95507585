package dialect

import (
	"fmt"
	"strings"

	"idlc/internal/token"
)

// Persona is how the hint for one detected dialect is phrased.
type Persona struct {
	Name      string
	Extension string
	LeadIn    string
	Advice    string
}

var personas = map[token.Dialect]Persona{
	token.DialectProto: {
		Name:      "Protobuf",
		Extension: ".proto",
		LeadIn:    "this file reads like Protobuf",
		Advice:    "Thrift declares data with `struct` and numbers fields as `1: i32 id`",
	},
	token.DialectThrift: {
		Name:      "Thrift",
		Extension: ".thrift",
		LeadIn:    "this file reads like Thrift",
		Advice:    "Protobuf declares data with `message` and numbers fields as `int32 id = 1;`",
	},
}

// RenderHint builds the note attached to the first syntax error of a file
// that looks like detected.
func RenderHint(detected token.Dialect, reasons []string) string {
	p, ok := personas[detected]
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.LeadIn)
	if len(reasons) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(reasons, ", "))
	}
	fmt.Fprintf(&b, "; rename it to %s or rewrite it: %s", p.Extension, p.Advice)
	return b.String()
}

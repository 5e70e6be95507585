package codegen

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"idlc/internal/ir"
)

var initialisms = map[string]string{
	"id": "ID", "url": "URL", "uri": "URI", "http": "HTTP", "json": "JSON",
	"uuid": "UUID", "api": "API", "rpc": "RPC", "ip": "IP", "tcp": "TCP",
	"sql": "SQL", "xml": "XML", "html": "HTML", "ttl": "TTL", "cpu": "CPU",
}

// Namer turns IDL names into target identifiers following Naming. It is
// safe for concurrent use once built.
type Namer struct {
	cfg      Naming
	reserved map[string]bool
	title    cases.Caser
	upper    cases.Caser
}

// NewNamer builds a namer; builtin lists the target language's keywords.
func NewNamer(n Naming, builtin []string) *Namer {
	if n.ChangeCase == "" {
		n.ChangeCase = CaseCamel
	}
	if n.EscapeSuffix == "" {
		n.EscapeSuffix = "_"
	}
	res := make(map[string]bool, len(builtin)+len(n.ReservedWords))
	for _, w := range builtin {
		res[w] = true
	}
	for _, w := range n.ReservedWords {
		res[w] = true
	}
	return &Namer{
		cfg:      n,
		reserved: res,
		title:    cases.Title(language.Und, cases.NoLower),
		upper:    cases.Upper(language.Und),
	}
}

func (n *Namer) override(ref ir.DeclRef, member string) (string, bool) {
	key := ref.Module + "#" + ref.Name
	if member != "" {
		key += "." + member
	}
	v, ok := n.cfg.Overrides[key]
	return v, ok
}

// Exported converts an IDL name to an exported identifier. Dotted proto
// names are joined with "_".
func (n *Namer) Exported(name string) string {
	segs := strings.Split(name, ".")
	for i, s := range segs {
		segs[i] = n.word(s)
	}
	return n.Escape(strings.Join(segs, "_"))
}

func (n *Namer) word(s string) string {
	if n.cfg.ChangeCase == CaseKeep {
		return upperFirst(s)
	}
	return Camel(s, n.title)
}

// Type names a declaration.
func (n *Namer) Type(d *ir.Decl) string {
	if v, ok := n.override(d.Ref(), ""); ok {
		return v
	}
	if d.GenName != "" {
		return d.GenName
	}
	return n.Exported(d.Name)
}

func (n *Namer) Field(d *ir.Decl, f *ir.Field) string {
	if v, ok := n.override(d.Ref(), f.Name); ok {
		return v
	}
	if f.GenName != "" {
		return f.GenName
	}
	return n.Exported(f.Name)
}

func (n *Namer) Method(d *ir.Decl, m *ir.Method) string {
	if v, ok := n.override(d.Ref(), m.Name); ok {
		return v
	}
	if m.GenName != "" {
		return m.GenName
	}
	return n.Exported(m.Name)
}

// EnumValue names a member of the enum whose Go name is typeName; by
// default typeName_MEMBER.
func (n *Namer) EnumValue(d *ir.Decl, typeName string, v ir.EnumValue) string {
	if o, ok := n.override(d.Ref(), v.Name); ok {
		return o
	}
	name := v.GenName
	if name == "" {
		name = v.Name
	}
	return typeName + "_" + name
}

// Local is an unexported identifier for parameters and locals.
func (n *Namer) Local(name string) string {
	e := n.Exported(name)
	r := []rune(e)
	i := 0
	for i < len(r) && unicode.IsUpper(r[i]) {
		i++
	}
	if i > 1 && i < len(r) {
		i-- // URLPath -> urlPath
	}
	i = max(i, 1)
	for j := 0; j < i && j < len(r); j++ {
		r[j] = unicode.ToLower(r[j])
	}
	return n.Escape(string(r))
}

// Escape appends EscapeSuffix to reserved words.
func (n *Namer) Escape(s string) string {
	if n.reserved[s] {
		return s + n.cfg.EscapeSuffix
	}
	return s
}

// Constant spells an UPPER_SNAKE name, used by backends that want it.
func (n *Namer) Constant(name string) string {
	return n.upper.String(Snake(name))
}

// Camel joins the words of s with initial capitals, honouring common
// initialisms: user_id -> UserID, parseHTTPHeader -> ParseHTTPHeader.
func Camel(s string, title cases.Caser) string {
	var b strings.Builder
	for _, w := range words(s) {
		if up, ok := initialisms[strings.ToLower(w)]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(title.String(w))
	}
	if b.Len() == 0 {
		return "X"
	}
	out := b.String()
	if r := []rune(out); unicode.IsDigit(r[0]) {
		out = "X" + out
	}
	return out
}

// Snake spells s as lower_snake_case.
func Snake(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}

// words splits at separators and lower-to-upper transitions.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])):
			flush()
		case unicode.IsUpper(r) && i > 0 && i+1 < len(rs) && unicode.IsUpper(rs[i-1]) && unicode.IsLower(rs[i+1]):
			flush() // HTTPServer -> HTTP Server
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return "X"
	}
	if !unicode.IsLetter(r[0]) {
		return "X" + s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

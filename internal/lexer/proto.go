package lexer

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
	plex "github.com/alecthomas/participle/v2/lexer"

	"idlc/internal/diag"
	"idlc/internal/source"
	"idlc/internal/token"
)

// protoRules is the token table of the Protobuf dialect. Rules are tried in
// order; the trailing Unknown rule makes lexing total so malformed input only
// ever yields diagnostics.
var protoDef = plex.MustSimple([]plex.SimpleRule{
	{Name: "DocLine", Pattern: `///[^\n]*`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "DocBlock", Pattern: `/\*\*[^/](?s:.*?)\*/`},
	{Name: "BlockComment", Pattern: `/\*(?s:.*?)\*/`},
	{Name: "OpenComment", Pattern: `/\*(?s:.*)`},
	{Name: "Newline", Pattern: `\n+`},
	{Name: "Space", Pattern: `[ \t\r\f\v]+`},
	{Name: "String", Pattern: `"(\\.|[^"\\\n])*"|'(\\.|[^'\\\n])*'`},
	{Name: "OpenString", Pattern: `"(\\.|[^"\\\n])*|'(\\.|[^'\\\n])*`},
	{Name: "Float", Pattern: `(\d+\.\d*|\.\d+)([eE][+-]?\d+)?|\d+[eE][+-]?\d+`},
	{Name: "Int", Pattern: `0[xX][0-9a-fA-F]+|\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[{}()\[\]<>,;:=.+\-*]`},
	{Name: "Unknown", Pattern: `.`},
})

var protoSymbols = func() map[plex.TokenType]string {
	out := make(map[plex.TokenType]string)
	for name, tt := range protoDef.Symbols() {
		out[tt] = name
	}
	return out
}()

// ProtoLexer tokenises the Protobuf dialect through participle's rule
// lexer and converts its output into token.Token with byte spans.
type ProtoLexer struct {
	toks []token.Token
	pos  int
}

// NewProto lexes the whole file eagerly.
func NewProto(file *source.File, opts Options) *ProtoLexer {
	lx := &ProtoLexer{}
	lx.run(file, opts.Reporter)
	return lx
}

func (lx *ProtoLexer) Next() token.Token {
	t := lx.toks[lx.pos]
	if lx.pos < len(lx.toks)-1 {
		lx.pos++
	}
	return t
}

func (lx *ProtoLexer) Peek() token.Token {
	return lx.toks[lx.pos]
}

func (lx *ProtoLexer) run(file *source.File, r diag.Reporter) {
	end, err := safecast.Conv[uint32](len(file.Content))
	if err != nil {
		panic(fmt.Errorf("len file content overflow: %w", err))
	}

	var hold []token.Trivia
	emit := func(t token.Token) {
		t.Leading = hold
		hold = nil
		lx.toks = append(lx.toks, t)
	}

	pl, err := protoDef.LexString(file.Path, string(file.Content))
	if err != nil {
		errLex(r, diag.LexUnknownChar, source.Span{File: file.ID}, err.Error())
		emit(token.Token{Kind: token.EOF, Span: source.Span{File: file.ID, Start: end, End: end}})
		return
	}

	for {
		pt, err := pl.Next()
		if err != nil {
			// с правилом Unknown сюда попадать не должны; считаем остаток файла мусором
			off, _ := safecast.Conv[uint32](pt.Pos.Offset)
			errLex(r, diag.LexUnknownChar, source.Span{File: file.ID, Start: off, End: end}, err.Error())
			break
		}
		if pt.EOF() {
			break
		}
		start, err := safecast.Conv[uint32](pt.Pos.Offset)
		if err != nil {
			panic(fmt.Errorf("token offset overflow: %w", err))
		}
		width, err := safecast.Conv[uint32](len(pt.Value))
		if err != nil {
			panic(fmt.Errorf("token length overflow: %w", err))
		}
		sp := source.Span{File: file.ID, Start: start, End: start + width}
		text := pt.Value

		switch protoSymbols[pt.Type] {
		case "Space":
			hold = append(hold, token.Trivia{Kind: token.TriviaSpace, Span: sp, Text: text})
		case "Newline":
			hold = append(hold, token.Trivia{Kind: token.TriviaNewline, Span: sp, Text: text})
		case "LineComment":
			hold = append(hold, token.Trivia{Kind: token.TriviaLineComment, Span: sp, Text: text})
		case "DocLine":
			hold = append(hold, token.Trivia{Kind: token.TriviaDocLine, Span: sp, Text: text})
		case "DocBlock":
			hold = append(hold, token.Trivia{Kind: token.TriviaDocBlock, Span: sp, Text: text})
		case "BlockComment":
			hold = append(hold, token.Trivia{Kind: token.TriviaBlockComment, Span: sp, Text: text})
		case "OpenComment":
			errLex(r, diag.LexUnterminatedBlockComment, sp, "unterminated block comment")
			hold = append(hold, token.Trivia{Kind: token.TriviaBlockComment, Span: sp, Text: text})
		case "String":
			emit(token.Token{Kind: token.StringLit, Span: sp, Text: text})
		case "OpenString":
			errLex(r, diag.LexUnterminatedString, sp, "unterminated string literal")
			emit(token.Token{Kind: token.Invalid, Span: sp, Text: text})
		case "Float":
			emit(token.Token{Kind: token.FloatLit, Span: sp, Text: text})
		case "Int":
			emit(token.Token{Kind: token.IntLit, Span: sp, Text: text})
		case "Ident":
			kind := token.Ident
			if k, ok := token.LookupKeyword(token.DialectProto, text); ok {
				kind = k
			}
			emit(token.Token{Kind: kind, Span: sp, Text: text})
		case "Punct":
			emit(token.Token{Kind: punct[text[0]], Span: sp, Text: text})
		default:
			errLex(r, diag.LexUnknownChar, sp, fmt.Sprintf("unknown character %q", strings.TrimSpace(text)))
			emit(token.Token{Kind: token.Invalid, Span: sp, Text: text})
		}
	}
	emit(token.Token{Kind: token.EOF, Span: source.Span{File: file.ID, Start: end, End: end}})
}

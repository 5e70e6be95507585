package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"idlc/internal/diag"
	"idlc/internal/source"
)

const tabWidth = 4

type palette struct {
	err, warn, info, note, code, path, gutter, caret *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		note:   color.New(color.FgBlue, color.Bold),
		code:   color.New(color.Faint),
		path:   color.New(color.Bold),
		gutter: color.New(color.FgBlue),
		caret:  color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.code, p.path, p.gutter, p.caret} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждой диагностики печатает
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message>
//
// затем строку исходника с подчёркиванием ^~~~ по Span, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeHeader(w, p, fs, d, opts)
		writeSnippet(w, p, fs, d.Primary, opts.Context)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				f := fs.Get(n.Span.File)
				start, _ := fs.Resolve(n.Span)
				fmt.Fprintf(w, "  %s %s:%d:%d: %s\n",
					p.note.Sprint("note:"),
					p.path.Sprint(formatPath(f, fs, opts.PathMode)), start.Line, start.Col,
					n.Msg)
				writeSnippet(w, p, fs, n.Span, 0)
			}
		}
		if opts.ShowFixes {
			for _, fix := range d.Fixes {
				fmt.Fprintf(w, "  %s %s\n", p.note.Sprint("fix:"), fix.Title)
				for _, e := range fix.Edits {
					fmt.Fprintf(w, "    replace %s with %q\n", e.Span, e.NewText)
				}
			}
		}
	}
}

func writeHeader(w io.Writer, p palette, fs *source.FileSet, d diag.Diagnostic, opts PrettyOpts) {
	f := fs.Get(d.Primary.File)
	start, _ := fs.Resolve(d.Primary)
	fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
		p.path.Sprint(formatPath(f, fs, opts.PathMode)), start.Line, start.Col,
		p.severity(d.Severity).Sprint(d.Severity.String()),
		p.code.Sprint(d.Code.ID()),
		d.Message)
}

func writeSnippet(w io.Writer, p palette, fs *source.FileSet, span source.Span, context int8) {
	f := fs.Get(span.File)
	if f == nil || len(f.Content) == 0 {
		return
	}
	start, end := fs.Resolve(span)
	ctx := uint32(max(context, 0))

	first := uint32(1)
	if start.Line > ctx {
		first = start.Line - ctx
	}
	maxLine := uint32(len(f.LineIdx) + 1)
	last := min(start.Line+ctx, maxLine)
	gutterWidth := len(fmt.Sprint(last))

	for ln := first; ln <= last; ln++ {
		text := f.GetLine(ln)
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", gutterWidth, ln), expandTabs(text))
		if ln != start.Line {
			continue
		}
		endCol := start.Col + 1
		if end.Line == start.Line && end.Col > start.Col {
			endCol = end.Col
		} else if end.Line != start.Line {
			endCol = uint32(len(text)) + 1
		}
		pad, width := caretGeometry(text, start.Col, endCol)
		marker := "^" + strings.Repeat("~", max(width-1, 0))
		fmt.Fprintf(w, "%s %s%s\n",
			p.gutter.Sprintf("%*s |", gutterWidth, ""),
			strings.Repeat(" ", pad),
			p.caret.Sprint(marker))
	}
}

// caretGeometry returns the display offset of startCol and the display width
// of the columns [startCol, endCol) in line.
func caretGeometry(line string, startCol, endCol uint32) (pad, width int) {
	s := int(startCol) - 1
	e := int(endCol) - 1
	s = min(max(s, 0), len(line))
	e = min(max(e, s), len(line))
	pad = displayWidth(line[:s])
	width = displayWidth(line[s:e])
	if width == 0 {
		width = 1
	}
	return pad, width
}

func displayWidth(s string) int {
	return runewidth.StringWidth(expandTabs(s))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

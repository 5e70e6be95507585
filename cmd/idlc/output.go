package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idlc/internal/diag"
	"idlc/internal/diagfmt"
	"idlc/internal/driver"
	"idlc/internal/source"
)

type outputOpts struct {
	color   bool
	quiet   bool
	timings bool
	format  string
}

func readOutputOpts(cmd *cobra.Command) (outputOpts, error) {
	pf := cmd.Root().PersistentFlags()
	var (
		o   outputOpts
		err error
	)
	colorMode, err := pf.GetString("color")
	if err != nil {
		return o, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(colorMode) {
	case "on":
		o.color = true
	case "off":
		o.color = false
	case "auto", "":
		o.color = isTerminal(os.Stderr)
	default:
		return o, fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorMode)
	}
	color.NoColor = !o.color
	if o.quiet, err = pf.GetBool("quiet"); err != nil {
		return o, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if o.timings, err = pf.GetBool("timings"); err != nil {
		return o, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if o.format, err = pf.GetString("format"); err != nil {
		return o, fmt.Errorf("failed to get format flag: %w", err)
	}
	switch o.format {
	case "pretty", "json", "short":
	default:
		return o, fmt.Errorf("unsupported format %q (must be pretty, json or short)", o.format)
	}
	return o, nil
}

func newLogger(cmd *cobra.Command, colored bool) (zerolog.Logger, error) {
	levelStr, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to get log-level flag: %w", err)
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	w := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.TimeOnly, NoColor: !colored}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// printDiagnostics renders res diagnostics on w in the chosen format.
func printDiagnostics(w io.Writer, res *driver.Result, files *source.FileSet, o outputOpts) error {
	bag := diag.NewBag(0)
	bag.AddAll(res.Diagnostics)
	switch o.format {
	case "json":
		return diagfmt.JSON(w, bag, files, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
			IncludeNotes:     true,
			IncludeFixes:     true,
		})
	case "short":
		diagfmt.Short(w, bag, files, diagfmt.PathModeRelative)
	default:
		if bag.Len() == 0 {
			return nil
		}
		diagfmt.Pretty(w, bag, files, diagfmt.PrettyOpts{
			Color:     o.color,
			Context:   1,
			PathMode:  diagfmt.PathModeRelative,
			ShowNotes: true,
			ShowFixes: true,
		})
		fmt.Fprintln(w)
	}
	if res.Dropped > 0 {
		fmt.Fprintf(w, "... %d more diagnostics not shown\n", res.Dropped)
	}
	return nil
}

// summary is the closing line of a compilation, e.g.
// "ok  3 modules, 5 files written (2 cached)".
func summary(verb string, res *driver.Result, written int) string {
	errs := diag.CountErrors(res.Diagnostics)
	warns := len(res.Diagnostics) - errs
	cached := 0
	for _, m := range res.Modules {
		if m.Cached {
			cached++
		}
	}
	var b strings.Builder
	if res.Failed {
		b.WriteString(failStyle.Render("failed"))
	} else {
		b.WriteString(okStyle.Render(verb))
	}
	fmt.Fprintf(&b, "  %d modules", len(res.Modules))
	if written >= 0 {
		fmt.Fprintf(&b, ", %d files written", written)
	}
	if cached > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d cached)", cached)))
	}
	if errs > 0 {
		fmt.Fprintf(&b, ", %s", failStyle.Render(plural(errs, "error")))
	}
	if warns > 0 {
		fmt.Fprintf(&b, ", %s", plural(warns, "warning"))
	}
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// printTimings prints phase durations followed by per-kind query counts.
func printTimings(w io.Writer, res *driver.Result) {
	if len(res.Timings.Phases) > 0 {
		fmt.Fprintln(w, "timings:")
		for _, p := range res.Timings.Phases {
			fmt.Fprintf(w, "  %-10s %8.2f ms", p.Name, p.DurationMS)
			if p.Note != "" {
				fmt.Fprint(w, dimStyle.Render("  // "+p.Note))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "  %-10s %8.2f ms\n", "total", res.Timings.TotalMS)
	}
	if len(res.Stats) == 0 {
		return
	}
	fmt.Fprintln(w, "queries:     exec   hits  green  unchanged")
	for _, k := range driver.QueryKinds() {
		st, ok := res.Stats[k]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-9s %6d %6d %6d %10d\n", k, st.Executions, st.Hits, st.Green, st.Unchanged)
	}
}

// report prints everything a finished compilation has to say and returns
// errFailed when it failed.
func (e *env) report(cmd *cobra.Command, verb string, res *driver.Result, written int) error {
	stderr := cmd.ErrOrStderr()
	if err := printDiagnostics(stderr, res, e.session.Files(), e.out); err != nil {
		return err
	}
	if e.out.timings {
		printTimings(stderr, res)
	}
	if !e.out.quiet && e.out.format == "pretty" {
		fmt.Fprintln(stderr, summary(verb, res, written))
	}
	if res.Failed {
		return errFailed{}
	}
	return nil
}

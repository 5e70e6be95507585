package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	_ "idlc/internal/codegen/gogen"
	_ "idlc/internal/codegen/yamlgen"
	"idlc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "idlc",
	Short:         "Thrift and Protobuf IDL compiler",
	Long:          `idlc compiles Thrift and Protobuf schemas into a resolved model and generates code from it`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errFailed is returned when a compilation reported errors; they are already
// printed.
type errFailed struct{}

func (errFailed) Error() string { return "compilation failed" }

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(irCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 0, "maximum number of diagnostics to show (0 = manifest value)")
	rootCmd.PersistentFlags().String("format", "pretty", "diagnostics format (pretty|json|short)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error|disabled)")
	rootCmd.PersistentFlags().String("metrics", "", "write query metrics to this file in text exposition format")

	rootCmd.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "ring buffer size for ring mode")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "heartbeat interval (0 = disabled)")

	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")
}

func main() {
	rootCmd.Version = version.Version

	if err := rootCmd.Execute(); err != nil {
		if _, ok := err.(errFailed); !ok {
			rootCmd.PrintErrln("error:", err)
		}
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

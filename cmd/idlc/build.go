package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"idlc/internal/diag"
	"idlc/internal/driver"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [entry...]",
	Short: "Compile schemas and write generated code",
	Long:  "Compile the entries of idlc.toml (or the files given) and write the generated units below the project root.",
	RunE:  buildExecution,
}

func init() {
	addProjectFlags(buildCmd)
	buildCmd.Flags().Bool("dry-run", false, "list the units that would be written")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	e, err := setupEnv(cmd, args)
	if err != nil {
		return err
	}
	defer e.Close()
	defer dumpTraceOnPanic(cmd, e.tracer)

	res, err := e.session.Compile(cmd.Context())
	if err != nil {
		return err
	}
	written := writeResult(cmd, e, res, dryRun)
	return e.report(cmd, "built", res, written)
}

// writeResult writes res units and folds write failures into res. It
// returns the number of files written, or -1 for a dry run.
func writeResult(cmd *cobra.Command, e *env, res *driver.Result, dryRun bool) int {
	if dryRun {
		for _, u := range res.Units {
			fmt.Fprintln(cmd.OutOrStdout(), u.Path)
		}
		return -1
	}
	written, diags := driver.WriteUnits(e.manifest.Root, res.Units)
	if len(diags) > 0 {
		res.Diagnostics = append(res.Diagnostics, diags...)
		diag.SortDiagnostics(res.Diagnostics)
		res.Failed = true
	}
	e.log.Debug().Int("units", len(res.Units)).Int("written", written).Msg("units written")
	return written
}

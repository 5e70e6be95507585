package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idlc/internal/codegen/yamlgen"
)

var irCmd = &cobra.Command{
	Use:   "ir [flags] [entry...]",
	Short: "Print the resolved schema as YAML",
	Long:  "Resolve the entries and print the linked schema: modules, declarations, emission order, cycle groups and module batches.",
	RunE:  irExecution,
}

func init() {
	addProjectFlags(irCmd)
	irCmd.Flags().String("output", "", "write the dump to this file instead of stdout")
}

func irExecution(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	e, err := setupEnv(cmd, args)
	if err != nil {
		return err
	}
	defer e.Close()
	defer dumpTraceOnPanic(cmd, e.tracer)

	res, err := e.session.Check(cmd.Context())
	if err != nil {
		return err
	}
	if res.Failed || res.Schema == nil {
		return e.report(cmd, "checked", res, -1)
	}
	doc, err := yamlgen.Dump(res.Schema)
	if err != nil {
		return fmt.Errorf("dump schema: %w", err)
	}
	if output == "" {
		_, err = cmd.OutOrStdout().Write(doc)
	} else {
		err = os.WriteFile(output, doc, 0o644)
	}
	if err != nil {
		return err
	}
	// предупреждения всё равно показываем
	e.out.quiet = true
	return e.report(cmd, "checked", res, -1)
}

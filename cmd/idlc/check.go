package main

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [entry...]",
	Short: "Parse and resolve schemas without generating code",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		return e.report(cmd, "checked", res, -1)
	},
}

func init() {
	addProjectFlags(checkCmd)
}

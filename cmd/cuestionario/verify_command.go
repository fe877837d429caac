package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrolland/cuestionario-videos/internal/preflight"
)

func newVerifyCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the environment before running an experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cfg)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				status := "FAIL"
				if result.Passed {
					status = "OK"
				} else if result.Warning {
					status = "WARN"
				}
				rows = append(rows, []string{status, result.Name, result.Detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Status", "Check", "Detail"}, rows))

			if !preflight.AllPassed(results) {
				return errors.New("environment is not ready")
			}
			fmt.Fprintln(out, "System ready.")
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrolland/cuestionario-videos/internal/runs"
)

func newRunsCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No generation runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, run := range entries {
				rows = append(rows, []string{
					run.ID,
					string(run.Status),
					run.ParticipantID,
					formatSizeColumn(run.HighSizeMB),
					formatSizeColumn(run.LowSizeMB),
					fmt.Sprintf("%d", run.PollErrors),
					run.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Run", "Status", "Participant", "High MB", "Low MB", "Poll Errors", "Created"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func formatSizeColumn(size float64) string {
	if size <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", size)
}

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrolland/cuestionario-videos/internal/participants"
)

func newParticipantsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "participants",
		Short: "List recorded participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := participants.NewStore(cfg.ParticipantsDir(), nil)
			if err != nil {
				return fmt.Errorf("open participant store: %w", err)
			}
			records, err := store.List()
			if err != nil {
				return fmt.Errorf("list participants: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No participants recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				completed := "no"
				if record.Completed {
					completed = "yes"
				}
				rows = append(rows, []string{
					record.ID,
					record.Gender,
					record.Age,
					record.StartedAt.Format(time.RFC3339),
					fmt.Sprintf("%d/%d", len(record.Responses), len(record.Assignment)),
					completed,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Participant", "Gender", "Age", "Started", "Responses", "Completed"}, rows))
			fmt.Fprintf(out, "%s participants\n", strconv.Itoa(len(records)))
			return nil
		},
	}
}

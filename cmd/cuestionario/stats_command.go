package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/report"
)

func newStatsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize collected experiment results",
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

			stats := report.Compute(records)

			rows := [][]string{
				{"Participants", strconv.Itoa(stats.TotalParticipants)},
				{"Completed", strconv.Itoa(stats.Completed)},
				{"Responses", strconv.Itoa(stats.TotalResponses)},
				{"Mean rating (obvious fakes)", formatFloat(stats.MeanObviousRating)},
				{"Mean rating (fakes)", formatFloat(stats.MeanFakeRating)},
				{"Mean rating (reals)", formatFloat(stats.MeanRealRating)},
				{"Fake detection rate", formatPercent(stats.FakeDetectionRate)},
				{"Real accuracy rate", formatPercent(stats.RealAccuracyRate)},
				{"Mean response time", formatFloat(stats.MeanResponseSecs) + " s"},
			}
			for _, category := range sortedKeys(stats.CategoryMeans) {
				rows = append(rows, []string{
					"Mean rating (" + category + ")",
					formatFloat(stats.CategoryMeans[category]),
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows))

			if len(stats.TopFakeCauses) > 0 {
				causeRows := make([][]string, 0, len(stats.TopFakeCauses))
				for _, cause := range stats.TopFakeCauses {
					causeRows = append(causeRows, []string{strconv.Itoa(cause.Count), cause.Cause})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Count", "Reported fake cause"}, causeRows))
			}
			return nil
		},
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func formatPercent(value float64) string {
	return strconv.FormatFloat(value*100, 'f', 1, 64) + "%"
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

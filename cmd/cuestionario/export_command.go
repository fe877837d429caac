package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/report"
)

func newExportCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export participant responses to CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("unsupported format %q (expected csv or json)", format)
			}

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

			path := output
			if path == "" {
				path = fmt.Sprintf("experiment_export_%s.%s", time.Now().Format("20060102_150405"), format)
			}

			file, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := writeExport(file, format, records); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d participants to %s\n", len(records), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "export format (csv or json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: timestamped file in the working directory)")
	return cmd
}

func writeExport(w io.Writer, format string, records []*participants.Record) error {
	switch format {
	case "csv":
		if err := report.WriteCSV(w, records); err != nil {
			return fmt.Errorf("write csv export: %w", err)
		}
	case "json":
		if err := report.WriteJSON(w, records); err != nil {
			return fmt.Errorf("write json export: %w", err)
		}
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/scrolland/cuestionario-videos/internal/generation"
	"github.com/scrolland/cuestionario-videos/internal/logging"
	"github.com/scrolland/cuestionario-videos/internal/participants"
	"github.com/scrolland/cuestionario-videos/internal/preflight"
	"github.com/scrolland/cuestionario-videos/internal/runs"
	"github.com/scrolland/cuestionario-videos/internal/runway"
	"github.com/scrolland/cuestionario-videos/internal/server"
	"github.com/scrolland/cuestionario-videos/internal/transcode"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the experiment HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			// One server per data directory; a second instance would
			// race on the participant files and the runs database.
			lockPath := filepath.Join(cfg.Paths.DataDir, "cuestionario.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another cuestionario server is already running")
			}
			defer lock.Unlock()

			if !skipChecks {
				results := preflight.RunAll(cfg)
				for _, result := range results {
					switch {
					case result.Passed:
						logger.Info("preflight check passed",
							logging.String("check", result.Name),
							logging.String("detail", result.Detail))
					case result.Warning:
						logger.Warn("preflight check warning",
							logging.String("check", result.Name),
							logging.String("detail", result.Detail))
					default:
						logger.Error("preflight check failed",
							logging.String("check", result.Name),
							logging.String("detail", result.Detail))
					}
				}
				if !preflight.AllPassed(results) {
					return errors.New("preflight checks failed (run 'cuestionario verify' for details, or use --skip-checks)")
				}
			}

			store, err := participants.NewStore(cfg.ParticipantsDir(), logger)
			if err != nil {
				return fmt.Errorf("open participant store: %w", err)
			}
			runsStore, err := runs.Open(cfg)
			if err != nil {
				return fmt.Errorf("open runs store: %w", err)
			}
			defer runsStore.Close()

			var generator server.Generator
			if cfg.Runway.APIKey != "" {
				client, err := runway.New(cfg.Runway.APIKey, cfg.Runway.BaseURL, cfg.Runway.APIVersion)
				if err != nil {
					return fmt.Errorf("build generation client: %w", err)
				}
				transcoder := transcode.NewCLI(transcode.WithBinary(cfg.FFmpegBinary()))
				generator = generation.New(client, transcoder, cfg.Generation, logger)
			} else {
				logger.Warn("no generation api key configured, /generate-from-local-image disabled")
			}

			srv, err := server.New(cfg, store, runsStore, generator, logger)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Experiment server listening on %s\n", srv.Addr())

			<-ctx.Done()
			srv.Stop()
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip preflight environment checks")
	return cmd
}

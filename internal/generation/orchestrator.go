package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/logging"
	"github.com/scrolland/cuestionario-videos/internal/prompt"
	"github.com/scrolland/cuestionario-videos/internal/runway"
	"github.com/scrolland/cuestionario-videos/internal/services"
	"github.com/scrolland/cuestionario-videos/internal/transcode"
)

// Tier names the quality level of a generated clip.
type Tier string

const (
	TierHigh Tier = "high"
	TierLow  Tier = "low"
)

// Request describes one dual-tier generation run.
type Request struct {
	// ImageDataURI is the normalized source image as a data URI.
	ImageDataURI string
	Prompts      prompt.Pair
	// OutputDir receives one file per tier.
	OutputDir string
}

// TierOutput is the finished clip of one tier.
type TierOutput struct {
	Tier         Tier
	TaskID       string
	Path         string
	SizeMB       float64
	DurationSecs int
	Compressed   bool
}

// Result holds both finished clips plus run diagnostics.
type Result struct {
	High TierOutput
	Low  TierOutput
	// PollErrors counts transient status-query failures that were
	// swallowed during polling.
	PollErrors int
	Elapsed    time.Duration
}

// Orchestrator drives a pair of generation jobs to completion.
type Orchestrator struct {
	client        runway.Client
	transcoder    transcode.Client
	logger        *slog.Logger
	pollInterval  time.Duration
	maxPollRounds int
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
	tiers         []tierSpec
}

// Option adjusts orchestrator behaviour, mainly for tests.
type Option func(*Orchestrator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleeper overrides the inter-round delay.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// New builds an orchestrator from the generation config section.
func New(client runway.Client, transcoder transcode.Client, cfg config.Generation, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	orch := &Orchestrator{
		client:        client,
		transcoder:    transcoder,
		logger:        logging.NewComponentLogger(logger, "generation"),
		pollInterval:  time.Duration(cfg.PollIntervalSeconds) * time.Second,
		maxPollRounds: cfg.MaxPollRounds,
		now:           time.Now,
		sleep:         sleepContext,
	}
	orch.tiers = []tierSpec{
		{name: TierHigh, tier: cfg.High, promptFor: func(p prompt.Pair) string { return p.High }},
		{name: TierLow, tier: cfg.Low, promptFor: func(p prompt.Pair) string { return p.Low }},
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

type tierSpec struct {
	name      Tier
	tier      config.Tier
	promptFor func(prompt.Pair) string
}

type job struct {
	spec      tierSpec
	taskID    string
	outputURL string
}

// Generate submits both tiers, polls them to completion, then downloads
// both clips and re-encodes where the tier demands it. Any submission
// failure, any remote job failure, and poll budget exhaustion all fail
// the run as a whole; nothing is written to disk unless both jobs
// succeed.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.ImageDataURI == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "generate", "source image required", nil)
	}
	if req.OutputDir == "" {
		return nil, services.Wrap(services.ErrValidation, "generation", "generate", "output directory required", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "generation", "generate", "create output directory", err)
	}

	start := o.now()
	jobs := make([]*job, 0, len(o.tiers))
	for _, spec := range o.tiers {
		taskID, err := o.client.CreateTask(ctx, runway.CreateTaskRequest{
			PromptImage: req.ImageDataURI,
			PromptText:  spec.promptFor(req.Prompts),
			Model:       spec.tier.Model,
			Duration:    spec.tier.DurationSecs,
			Ratio:       spec.tier.Ratio,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrRemoteSubmission, "generation", "create_task",
				fmt.Sprintf("submit %s tier job", spec.name), err)
		}
		o.logger.Info("job submitted", logging.String(logging.FieldTier, string(spec.name)), logging.String("task_id", taskID))
		jobs = append(jobs, &job{spec: spec, taskID: taskID})
	}

	result := &Result{}
	pending := len(jobs)
	for round := 0; round < o.maxPollRounds && pending > 0; round++ {
		// Give the remote service its head start before each query.
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return nil, services.Wrap(services.ErrTransient, "generation", "poll", "polling interrupted", err)
		}
		pending = 0
		for _, j := range jobs {
			if j.outputURL != "" {
				continue
			}
			state, err := o.client.TaskStatus(ctx, j.taskID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, services.Wrap(services.ErrTransient, "generation", "poll", "polling interrupted", ctx.Err())
				}
				result.PollErrors++
				o.logger.Warn("status query failed, will retry",
					logging.String(logging.FieldTier, string(j.spec.name)),
					logging.String("task_id", j.taskID),
					logging.Error(err))
				pending++
				continue
			}
			switch state.Status {
			case runway.StateFailed:
				return nil, services.Wrap(services.ErrRemoteJobFailed, "generation", "poll",
					fmt.Sprintf("%s tier job %s failed remotely: %s", j.spec.name, j.taskID, state.Detail), nil)
			case runway.StateSucceeded:
				if state.OutputURL == "" {
					// The service reports success before the artifact
					// upload finishes; keep polling until a URL shows up.
					pending++
					continue
				}
				j.outputURL = state.OutputURL
			default:
				pending++
			}
		}
	}

	completed := 0
	for _, j := range jobs {
		if j.outputURL != "" {
			completed++
		}
	}
	if completed != len(jobs) {
		return nil, services.Wrap(services.ErrRemoteTimeout, "generation", "poll",
			fmt.Sprintf("gave up after %d rounds; %d of %d clips completed", o.maxPollRounds, completed, len(jobs)), nil)
	}

	// Both jobs succeeded; only now does anything touch the disk. A
	// download failure removes whatever this run already wrote so a
	// failed run leaves no clips behind.
	var written []string
	for _, j := range jobs {
		output, err := o.finalize(ctx, j, req.OutputDir)
		if err != nil {
			for _, path := range written {
				os.Remove(path)
			}
			return nil, err
		}
		written = append(written, output.Path)
		switch j.spec.name {
		case TierHigh:
			result.High = output
		case TierLow:
			result.Low = output
		}
	}
	result.Elapsed = o.now().Sub(start)
	o.logger.Info("dual generation complete",
		logging.String("high_path", result.High.Path),
		logging.String("low_path", result.Low.Path),
		logging.Int("poll_errors", result.PollErrors),
		logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

// finalize downloads the finished artifact, writes the tier file, and
// re-encodes it when the tier always compresses or the clip overshoots
// its size target by more than 20%.
func (o *Orchestrator) finalize(ctx context.Context, j *job, outputDir string) (TierOutput, error) {
	data, err := o.client.Download(ctx, j.outputURL)
	if err != nil {
		return TierOutput{}, services.Wrap(services.ErrRemoteJobFailed, "generation", "download",
			fmt.Sprintf("download %s tier clip", j.spec.name), err)
	}

	path := filepath.Join(outputDir, j.spec.tier.FileName)
	if err := writeFileAtomic(path, data); err != nil {
		return TierOutput{}, services.Wrap(services.ErrConfiguration, "generation", "download",
			fmt.Sprintf("write %s tier clip", j.spec.name), err)
	}

	output := TierOutput{
		Tier:         j.spec.name,
		TaskID:       j.taskID,
		Path:         path,
		SizeMB:       float64(len(data)) / (1024 * 1024),
		DurationSecs: j.spec.tier.DurationSecs,
	}

	target := float64(j.spec.tier.TargetSizeMB)
	if j.spec.tier.AlwaysCompress || output.SizeMB > target*1.2 {
		output = o.compress(ctx, j.spec, output)
	}
	return output, nil
}

// compress re-encodes into a sibling temp file and swaps it in only on
// success; a failed re-encode keeps the oversized original and logs a
// warning.
func (o *Orchestrator) compress(ctx context.Context, spec tierSpec, output TierOutput) TierOutput {
	if o.transcoder == nil || !o.transcoder.Available() {
		o.logger.Warn("ffmpeg unavailable, keeping original clip",
			logging.String(logging.FieldTier, string(spec.name)),
			logging.Float64("size_mb", output.SizeMB))
		return output
	}

	tmpPath := output.Path + ".compress.mp4"
	if err := o.transcoder.Compress(ctx, output.Path, tmpPath, spec.tier.Bitrate); err != nil {
		o.logger.Warn("re-encode failed, keeping original clip",
			logging.String(logging.FieldTier, string(spec.name)),
			logging.Float64("size_mb", output.SizeMB),
			logging.Error(err))
		os.Remove(tmpPath)
		return output
	}
	if err := os.Rename(tmpPath, output.Path); err != nil {
		o.logger.Warn("replace with re-encoded clip failed, keeping original",
			logging.String(logging.FieldTier, string(spec.name)),
			logging.Error(err))
		os.Remove(tmpPath)
		return output
	}

	output.Compressed = true
	if info, err := os.Stat(output.Path); err == nil {
		output.SizeMB = float64(info.Size()) / (1024 * 1024)
	}
	o.logger.Info("clip re-encoded",
		logging.String(logging.FieldTier, string(spec.name)),
		logging.Float64("size_mb", output.SizeMB))
	return output
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

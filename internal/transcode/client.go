package transcode

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Client defines video re-encoding behaviour.
type Client interface {
	Compress(ctx context.Context, inputPath, outputPath, bitrate string) error
	Available() bool
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

var _ Client = (*CLI)(nil)

// Available reports whether the configured binary resolves on PATH.
func (c *CLI) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Compress re-encodes inputPath at the given bitrate (e.g. "600k") into
// outputPath, overwriting any existing file there.
func (c *CLI) Compress(ctx context.Context, inputPath, outputPath, bitrate string) error {
	if strings.TrimSpace(inputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}
	bitrate = strings.TrimSpace(bitrate)
	if bitrate == "" {
		return errors.New("bitrate required")
	}

	args := []string{
		"-i", inputPath,
		"-b:v", bitrate,
		"-maxrate", bitrate,
		"-bufsize", "1M",
		"-y",
		outputPath,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg compress: %w: %s", err, lastOutputLine(output))
	}
	return nil
}

// lastOutputLine keeps error messages short; ffmpeg writes its failure
// reason on the final non-empty stderr line.
func lastOutputLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}

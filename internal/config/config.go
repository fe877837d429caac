package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	VideosDir string `toml:"videos_dir"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	WebDir    string `toml:"web_dir"`
	Bind      string `toml:"bind"`
}

// Runway contains connection settings for the Runway generation API.
type Runway struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	APIVersion     string `toml:"api_version"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tier describes one generation quality tier.
type Tier struct {
	Model          string `toml:"model"`
	Ratio          string `toml:"ratio"`
	DurationSecs   int    `toml:"duration"`
	TargetSizeMB   int    `toml:"target_size_mb"`
	Bitrate        string `toml:"bitrate"`
	FileName       string `toml:"file_name"`
	AlwaysCompress bool   `toml:"always_compress"`
}

// Generation contains dual-tier video generation settings.
type Generation struct {
	PollIntervalSeconds int  `toml:"poll_interval"`
	MaxPollRounds       int  `toml:"max_poll_rounds"`
	High                Tier `toml:"high"`
	Low                 Tier `toml:"low"`
}

// Selection contains the stratified video selection settings.
type Selection struct {
	RealsDir        string   `toml:"reals_dir"`
	ObviousFolders  []string `toml:"obvious_folders"`
	PerQualityQuota int      `toml:"per_quality_quota"`
	RealsQuota      int      `toml:"reals_quota"`
}

// Transcode contains settings for the optional ffmpeg re-encode step.
type Transcode struct {
	Binary string `toml:"binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the experiment server.
//
// Configuration sections by subsystem:
//   - Paths: content tree, participant data, logs, and HTTP bind address
//   - Runway: generation service credentials and endpoint
//   - Generation: tier models, ratios, poll budget
//   - Selection: asset pool layout and per-stratum quotas
//   - Transcode: ffmpeg binary override
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Runway     Runway     `toml:"runway"`
	Generation Generation `toml:"generation"`
	Selection  Selection  `toml:"selection"`
	Transcode  Transcode  `toml:"transcode"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cuestionario/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cuestionario.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
// VideosDir is created on a best-effort basis so commands can run before
// any assets have been generated.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.VideosDir) != "" {
		_ = os.MkdirAll(c.Paths.VideosDir, 0o755)
	}
	return nil
}

// ParticipantsDir returns the directory holding per-participant records.
func (c *Config) ParticipantsDir() string {
	return filepath.Join(c.Paths.DataDir, "participants")
}

// RealsPath returns the real-footage subdirectory of the content tree.
func (c *Config) RealsPath() string {
	return filepath.Join(c.Paths.VideosDir, c.Selection.RealsDir)
}

// FFmpegBinary returns the ffmpeg executable name used for re-encoding.
func (c *Config) FFmpegBinary() string {
	if b := strings.TrimSpace(c.Transcode.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.VideosDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.WebDir,
	} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Runway.APIKey = strings.TrimSpace(c.Runway.APIKey)
	c.Runway.BaseURL = strings.TrimRight(strings.TrimSpace(c.Runway.BaseURL), "/")
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

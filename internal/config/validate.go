package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRunway(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.VideosDir) == "" {
		return errors.New("paths.videos_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.Bind) == "" {
		return errors.New("paths.bind must be set")
	}
	return nil
}

func (c *Config) validateRunway() error {
	if c.Runway.BaseURL == "" {
		return errors.New("runway.base_url must be set")
	}
	if strings.TrimSpace(c.Runway.APIVersion) == "" {
		return errors.New("runway.api_version must be set")
	}
	if c.Runway.TimeoutSeconds <= 0 {
		return errors.New("runway.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.PollIntervalSeconds <= 0 {
		return errors.New("generation.poll_interval must be positive")
	}
	if c.Generation.MaxPollRounds <= 0 {
		return errors.New("generation.max_poll_rounds must be positive")
	}
	for name, tier := range map[string]Tier{"high": c.Generation.High, "low": c.Generation.Low} {
		if strings.TrimSpace(tier.Model) == "" {
			return fmt.Errorf("generation.%s.model must be set", name)
		}
		if strings.TrimSpace(tier.Ratio) == "" {
			return fmt.Errorf("generation.%s.ratio must be set", name)
		}
		if tier.DurationSecs <= 0 {
			return fmt.Errorf("generation.%s.duration must be positive", name)
		}
		if tier.TargetSizeMB <= 0 {
			return fmt.Errorf("generation.%s.target_size_mb must be positive", name)
		}
		if strings.TrimSpace(tier.FileName) == "" {
			return fmt.Errorf("generation.%s.file_name must be set", name)
		}
	}
	return nil
}

func (c *Config) validateSelection() error {
	if strings.TrimSpace(c.Selection.RealsDir) == "" {
		return errors.New("selection.reals_dir must be set")
	}
	if c.Selection.PerQualityQuota < 0 {
		return errors.New("selection.per_quality_quota must not be negative")
	}
	if c.Selection.RealsQuota < 0 {
		return errors.New("selection.reals_quota must not be negative")
	}
	return nil
}

package config

const (
	defaultVideosDir         = "~/.local/share/cuestionario/videos"
	defaultDataDir           = "~/.local/share/cuestionario/experiment_data"
	defaultLogDir            = "~/.local/share/cuestionario/logs"
	defaultWebDir            = "web"
	defaultBind              = "127.0.0.1:8000"
	defaultRunwayBaseURL     = "https://api.dev.runwayml.com/v1"
	defaultRunwayAPIVersion  = "2024-11-06"
	defaultRunwayTimeoutSecs = 30
	defaultPollInterval      = 5
	defaultMaxPollRounds     = 48
	defaultRealsDir          = "reals"
	defaultPerQualityQuota   = 2
	defaultRealsQuota        = 4
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideosDir: defaultVideosDir,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			WebDir:    defaultWebDir,
			Bind:      defaultBind,
		},
		Runway: Runway{
			BaseURL:        defaultRunwayBaseURL,
			APIVersion:     defaultRunwayAPIVersion,
			TimeoutSeconds: defaultRunwayTimeoutSecs,
		},
		Generation: Generation{
			PollIntervalSeconds: defaultPollInterval,
			MaxPollRounds:       defaultMaxPollRounds,
			High: Tier{
				Model:          "gen4_turbo",
				Ratio:          "1280:720",
				DurationSecs:   10,
				TargetSizeMB:   10,
				Bitrate:        "4000k",
				FileName:       "video_high_quality.mp4",
				AlwaysCompress: false,
			},
			Low: Tier{
				Model:          "gen3a_turbo",
				Ratio:          "1280:768",
				DurationSecs:   10,
				TargetSizeMB:   2,
				Bitrate:        "600k",
				FileName:       "video_low_quality.mp4",
				AlwaysCompress: true,
			},
		},
		Selection: Selection{
			RealsDir:        defaultRealsDir,
			ObviousFolders:  []string{"e2", "e9", "e11"},
			PerQualityQuota: defaultPerQualityQuota,
			RealsQuota:      defaultRealsQuota,
		},
		Transcode: Transcode{
			Binary: "ffmpeg",
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

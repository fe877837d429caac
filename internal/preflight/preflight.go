package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrolland/cuestionario-videos/internal/assets"
	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/transcode"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// RunAll executes every environment check for the given config:
// content tree layout, obvious-fake folders, per-folder tier pairs,
// data directory writability, and ffmpeg availability.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckContentTree(cfg),
		CheckRealsFolder(cfg),
	}
	results = append(results, CheckObviousFolders(cfg)...)
	results = append(results, CheckTierPairs(cfg))
	results = append(results, CheckDataDir(cfg))
	results = append(results, CheckFFmpeg(cfg))
	return results
}

// AllPassed reports whether every non-warning check succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed && !result.Warning {
			return false
		}
	}
	return true
}

// CheckContentTree verifies the videos root exists.
func CheckContentTree(cfg *config.Config) Result {
	const name = "Content tree"
	info, err := os.Stat(cfg.Paths.VideosDir)
	if err != nil || !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("missing directory %s", cfg.Paths.VideosDir)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Paths.VideosDir}
}

// CheckRealsFolder verifies real footage exists.
func CheckRealsFolder(cfg *config.Config) Result {
	const name = "Real footage"
	entries, err := os.ReadDir(cfg.RealsPath())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("missing directory %s", cfg.RealsPath())}
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && isVideoName(entry.Name()) {
			count++
		}
	}
	if count == 0 {
		return Result{Name: name, Detail: "no video files in " + cfg.RealsPath()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d videos", count)}
}

// CheckObviousFolders verifies each configured obvious-fake folder; a
// missing folder is a warning because the selector degrades gracefully.
func CheckObviousFolders(cfg *config.Config) []Result {
	results := make([]Result, 0, len(cfg.Selection.ObviousFolders))
	for _, folder := range cfg.Selection.ObviousFolders {
		name := "Obvious-fake folder " + folder
		path := filepath.Join(cfg.Paths.VideosDir, folder)
		entries, err := os.ReadDir(path)
		if err != nil {
			results = append(results, Result{Name: name, Warning: true, Detail: "missing"})
			continue
		}
		count := 0
		for _, entry := range entries {
			if !entry.IsDir() && isVideoName(entry.Name()) {
				count++
			}
		}
		if count == 0 {
			results = append(results, Result{Name: name, Warning: true, Detail: "empty"})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d videos", count)})
	}
	return results
}

// CheckTierPairs scans the synthetic pools and reports folders that are
// missing one of the two quality tiers.
func CheckTierPairs(cfg *config.Config) Result {
	const name = "Tier pairs"
	pools, err := assets.Scan(cfg.Paths.VideosDir, cfg.Selection)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	folderQualities := make(map[string]map[assets.Quality]bool)
	for _, pool := range [][]assets.VideoAsset{pools.SyntheticEntertainment, pools.SyntheticInformational} {
		for _, asset := range pool {
			if folderQualities[asset.Folder] == nil {
				folderQualities[asset.Folder] = make(map[assets.Quality]bool)
			}
			folderQualities[asset.Folder][asset.Quality] = true
		}
	}

	var incomplete []string
	for folder, qualities := range folderQualities {
		if !qualities[assets.QualityHigh] || !qualities[assets.QualityLow] {
			incomplete = append(incomplete, folder)
		}
	}
	if len(incomplete) > 0 {
		return Result{Name: name, Warning: true,
			Detail: "folders missing a tier: " + strings.Join(incomplete, ", ")}
	}
	return Result{Name: name, Passed: true,
		Detail: fmt.Sprintf("%d synthetic folders complete", len(folderQualities))}
}

// CheckDataDir verifies the participant data directory is writable.
func CheckDataDir(cfg *config.Config) Result {
	const name = "Data directory"
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	probe := filepath.Join(cfg.Paths.DataDir, ".write_check")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not writable: %v", err)}
	}
	os.Remove(probe)
	return Result{Name: name, Passed: true, Detail: cfg.Paths.DataDir}
}

// CheckFFmpeg verifies the transcoder binary resolves on PATH. Absence
// is a warning: generation keeps oversized originals without it.
func CheckFFmpeg(cfg *config.Config) Result {
	const name = "ffmpeg"
	cli := transcode.NewCLI(transcode.WithBinary(cfg.FFmpegBinary()))
	if !cli.Available() {
		return Result{Name: name, Warning: true,
			Detail: fmt.Sprintf("%s not found on PATH, oversized clips will not be re-encoded", cfg.FFmpegBinary())}
	}
	return Result{Name: name, Passed: true, Detail: cfg.FFmpegBinary()}
}

func isVideoName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".webm", ".mov", ".avi", ".mkv":
		return true
	}
	return false
}

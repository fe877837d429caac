package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "cuestionario", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// seedContentTree lays out a minimal valid video library: two synthetic
// folders with tier pairs, one obvious-fake folder, and a reals folder.
func seedContentTree(t *testing.T, cfg *config.Config) {
	t.Helper()

	write := func(parts ...string) {
		testsupport.WriteFile(t, filepath.Join(parts...), 1024)
	}

	videos := cfg.Paths.VideosDir
	write(videos, "e1", "clip_high.mp4")
	write(videos, "e1", "clip_low.mp4")
	write(videos, "i1", "clip_high.mp4")
	write(videos, "i1", "clip_low.mp4")
	for _, folder := range cfg.Selection.ObviousFolders {
		write(videos, folder, "clip_high.mp4")
	}
	write(videos, cfg.Selection.RealsDir, "e_street.mp4")
	write(videos, cfg.Selection.RealsDir, "i_news.mp4")
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

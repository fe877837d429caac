package assets

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/prompt"
)

func testSelectionConfig() config.Selection {
	return config.Selection{
		RealsDir:        "reals",
		ObviousFolders:  []string{"e2", "e9", "e11"},
		PerQualityQuota: 2,
		RealsQuota:      4,
	}
}

func writeVideo(t *testing.T, root string, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanPartitionsTree(t *testing.T) {
	root := t.TempDir()
	writeVideo(t, root, "reals", "e_beach.mp4")
	writeVideo(t, root, "reals", "i_news.mp4")
	writeVideo(t, root, "e2", "clip_high.mp4")
	writeVideo(t, root, "e2", "clip_low.mp4")
	writeVideo(t, root, "e5", "video_high_quality.mp4")
	writeVideo(t, root, "e5", "video_low_quality.mp4")
	writeVideo(t, root, "i3", "video_high_quality.mp4")
	writeVideo(t, root, "i3", "video_low_quality.mp4")
	// Non-video files are ignored.
	writeVideo(t, root, "e5", "notes.txt")

	pools, err := Scan(root, testSelectionConfig())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(pools.Obvious) != 2 {
		t.Errorf("obvious = %d, want 2", len(pools.Obvious))
	}
	if len(pools.SyntheticEntertainment) != 2 {
		t.Errorf("synthetic entertainment = %d, want 2", len(pools.SyntheticEntertainment))
	}
	if len(pools.SyntheticInformational) != 2 {
		t.Errorf("synthetic informational = %d, want 2", len(pools.SyntheticInformational))
	}
	if len(pools.RealEntertainment) != 1 || len(pools.RealInformational) != 1 {
		t.Errorf("reals = %d/%d, want 1/1", len(pools.RealEntertainment), len(pools.RealInformational))
	}

	for _, asset := range pools.Obvious {
		if !asset.ObviousFake || !asset.Synthetic {
			t.Errorf("obvious asset %s missing flags", asset.Path)
		}
	}
	for _, asset := range pools.RealEntertainment {
		if asset.Quality != QualityReal || asset.Synthetic {
			t.Errorf("real asset %s misclassified", asset.Path)
		}
	}
	for _, asset := range pools.SyntheticEntertainment {
		want := QualityLow
		if asset.FileName == "video_high_quality.mp4" {
			want = QualityHigh
		}
		if asset.Quality != want {
			t.Errorf("asset %s quality = %q, want %q", asset.FileName, asset.Quality, want)
		}
	}
}

func TestScanMissingRootFails(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), testSelectionConfig()); err == nil {
		t.Fatal("expected error for missing content tree")
	}
}

func syntheticPool(category prompt.Category, highs, lows int) []VideoAsset {
	prefix := "e"
	if category == prompt.CategoryInformational {
		prefix = "i"
	}
	var pool []VideoAsset
	for i := 0; i < highs; i++ {
		pool = append(pool, VideoAsset{
			Path:      fmt.Sprintf("/videos/%s%d/video_high_quality.mp4", prefix, i+3),
			Folder:    fmt.Sprintf("%s%d", prefix, i+3),
			Category:  category,
			Quality:   QualityHigh,
			Synthetic: true,
		})
	}
	for i := 0; i < lows; i++ {
		pool = append(pool, VideoAsset{
			Path:      fmt.Sprintf("/videos/%s%d/video_low_quality.mp4", prefix, i+3),
			Folder:    fmt.Sprintf("%s%d", prefix, i+3),
			Category:  category,
			Quality:   QualityLow,
			Synthetic: true,
		})
	}
	return pool
}

func realPool(category prompt.Category, count int) []VideoAsset {
	prefix := "e"
	if category == prompt.CategoryInformational {
		prefix = "i"
	}
	var pool []VideoAsset
	for i := 0; i < count; i++ {
		pool = append(pool, VideoAsset{
			Path:     fmt.Sprintf("/videos/reals/%s_real_%d.mp4", prefix, i),
			Folder:   "reals",
			Category: category,
			Quality:  QualityReal,
		})
	}
	return pool
}

func obviousPool(count int) []VideoAsset {
	var pool []VideoAsset
	for i := 0; i < count; i++ {
		pool = append(pool, VideoAsset{
			Path:        fmt.Sprintf("/videos/e2/obvious_%d.mp4", i),
			Folder:      "e2",
			Category:    prompt.CategoryEntertainment,
			Quality:     QualityLow,
			Synthetic:   true,
			ObviousFake: true,
		})
	}
	return pool
}

func TestSelectFullScenario(t *testing.T) {
	pools := Pools{
		Obvious:                obviousPool(6),
		SyntheticEntertainment: syntheticPool(prompt.CategoryEntertainment, 5, 5),
		SyntheticInformational: syntheticPool(prompt.CategoryInformational, 5, 5),
		RealEntertainment:      realPool(prompt.CategoryEntertainment, 10),
		RealInformational:      realPool(prompt.CategoryInformational, 10),
	}

	selector := NewSelector(testSelectionConfig(), rand.New(rand.NewSource(7)))
	selected := selector.Select(pools)

	if len(selected) != 22 {
		t.Fatalf("selected %d assets, want 22", len(selected))
	}

	seen := make(map[string]bool, len(selected))
	counts := make(map[string]int)
	for _, asset := range selected {
		if seen[asset.Path] {
			t.Errorf("duplicate asset %s", asset.Path)
		}
		seen[asset.Path] = true

		switch {
		case asset.ObviousFake:
			counts["obvious"]++
		case asset.Synthetic && asset.Category == prompt.CategoryEntertainment:
			counts["synth_ent_"+string(asset.Quality)]++
		case asset.Synthetic:
			counts["synth_inf_"+string(asset.Quality)]++
		case asset.Category == prompt.CategoryEntertainment:
			counts["real_ent"]++
		default:
			counts["real_inf"]++
		}
	}

	for _, obvious := range pools.Obvious {
		if !seen[obvious.Path] {
			t.Errorf("obvious fake %s missing from assignment", obvious.Path)
		}
	}
	want := map[string]int{
		"obvious":        6,
		"synth_ent_high": 2,
		"synth_ent_low":  2,
		"synth_inf_high": 2,
		"synth_inf_low":  2,
		"real_ent":       4,
		"real_inf":       4,
	}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("%s = %d, want %d", key, counts[key], n)
		}
	}
}

func TestSelectShortPoolsDegradeGracefully(t *testing.T) {
	pools := Pools{
		Obvious:                obviousPool(1),
		SyntheticEntertainment: syntheticPool(prompt.CategoryEntertainment, 1, 0),
		RealEntertainment:      realPool(prompt.CategoryEntertainment, 2),
	}

	selector := NewSelector(testSelectionConfig(), rand.New(rand.NewSource(1)))
	selected := selector.Select(pools)

	if len(selected) != 4 {
		t.Fatalf("selected %d assets, want 4", len(selected))
	}
}

func TestSelectSeededIsDeterministic(t *testing.T) {
	pools := Pools{
		Obvious:                obviousPool(3),
		SyntheticEntertainment: syntheticPool(prompt.CategoryEntertainment, 5, 5),
		RealEntertainment:      realPool(prompt.CategoryEntertainment, 10),
	}

	first := NewSelector(testSelectionConfig(), rand.New(rand.NewSource(42))).Select(pools)
	second := NewSelector(testSelectionConfig(), rand.New(rand.NewSource(42))).Select(pools)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Fatalf("order diverges at %d: %s vs %s", i, first[i].Path, second[i].Path)
		}
	}
}

package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scrolland/cuestionario-videos/internal/config"
	"github.com/scrolland/cuestionario-videos/internal/prompt"
	"github.com/scrolland/cuestionario-videos/internal/services"
)

// Quality tags one asset's fidelity level.
type Quality string

const (
	QualityHigh Quality = "high"
	QualityLow  Quality = "low"
	QualityReal Quality = "real"
)

// VideoAsset describes one video file under the content tree. Assets
// are immutable once discovered; Scan is the sole creation point.
type VideoAsset struct {
	Path        string
	FileName    string
	Folder      string
	Category    prompt.Category
	Quality     Quality
	Synthetic   bool
	ObviousFake bool
}

// Pools partitions discovered assets into the five disjoint selection
// strata.
type Pools struct {
	Obvious                []VideoAsset
	SyntheticEntertainment []VideoAsset
	SyntheticInformational []VideoAsset
	RealEntertainment      []VideoAsset
	RealInformational      []VideoAsset
}

// Total returns the number of assets across all pools.
func (p Pools) Total() int {
	return len(p.Obvious) + len(p.SyntheticEntertainment) + len(p.SyntheticInformational) +
		len(p.RealEntertainment) + len(p.RealInformational)
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
}

func isVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// qualityFromFileName tags files whose name mentions "high" as the
// high tier; everything else in a synthetic folder is the low tier.
func qualityFromFileName(name string) Quality {
	if strings.Contains(strings.ToLower(name), "high") {
		return QualityHigh
	}
	return QualityLow
}

// Scan walks the content tree and partitions every video file it finds.
// The reals subdirectory holds real footage named by a leading category
// letter; the configured obvious-fake folders and all remaining
// subdirectories hold synthetic clips classified by folder name.
func Scan(root string, cfg config.Selection) (Pools, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Pools{}, services.Wrap(services.ErrConfiguration, "assets", "scan",
			fmt.Sprintf("read content tree %s", root), err)
	}

	obvious := make(map[string]bool, len(cfg.ObviousFolders))
	for _, name := range cfg.ObviousFolders {
		obvious[name] = true
	}

	var pools Pools
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := entry.Name()
		files, err := os.ReadDir(filepath.Join(root, folder))
		if err != nil {
			return Pools{}, services.Wrap(services.ErrConfiguration, "assets", "scan",
				fmt.Sprintf("read folder %s", folder), err)
		}

		for _, file := range files {
			if file.IsDir() || !isVideoFile(file.Name()) {
				continue
			}
			asset := VideoAsset{
				Path:     filepath.Join(root, folder, file.Name()),
				FileName: file.Name(),
				Folder:   folder,
			}
			switch {
			case folder == cfg.RealsDir:
				asset.Category = prompt.CategoryFromFolder(file.Name())
				asset.Quality = QualityReal
				if asset.Category == prompt.CategoryEntertainment {
					pools.RealEntertainment = append(pools.RealEntertainment, asset)
				} else {
					pools.RealInformational = append(pools.RealInformational, asset)
				}
			case obvious[folder]:
				asset.Category = prompt.CategoryFromFolder(folder)
				asset.Quality = qualityFromFileName(file.Name())
				asset.Synthetic = true
				asset.ObviousFake = true
				pools.Obvious = append(pools.Obvious, asset)
			default:
				asset.Category = prompt.CategoryFromFolder(folder)
				asset.Quality = qualityFromFileName(file.Name())
				asset.Synthetic = true
				if asset.Category == prompt.CategoryEntertainment {
					pools.SyntheticEntertainment = append(pools.SyntheticEntertainment, asset)
				} else {
					pools.SyntheticInformational = append(pools.SyntheticInformational, asset)
				}
			}
		}
	}

	sortPool(pools.Obvious)
	sortPool(pools.SyntheticEntertainment)
	sortPool(pools.SyntheticInformational)
	sortPool(pools.RealEntertainment)
	sortPool(pools.RealInformational)
	return pools, nil
}

// sortPool gives scans a stable order regardless of directory layout,
// so seeded selections are reproducible across filesystems.
func sortPool(pool []VideoAsset) {
	sort.Slice(pool, func(i, j int) bool { return pool[i].Path < pool[j].Path })
}

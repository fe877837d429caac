package assets

import (
	"math/rand"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/config"
)

// Selector assembles one participant's quota-balanced video
// assignment from the scanned pools.
type Selector struct {
	rng             *rand.Rand
	perQualityQuota int
	realsQuota      int
}

// NewSelector builds a selector. A nil rng gets a time-seeded source;
// tests pass a seeded one for reproducible assignments.
func NewSelector(cfg config.Selection, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	perQuality := cfg.PerQualityQuota
	if perQuality <= 0 {
		perQuality = 2
	}
	reals := cfg.RealsQuota
	if reals <= 0 {
		reals = 4
	}
	return &Selector{rng: rng, perQualityQuota: perQuality, realsQuota: reals}
}

// Select returns the assignment in display order. Every obvious fake
// is always included; each synthetic category contributes up to the
// per-quality quota of high and low clips; each real category
// contributes up to the reals quota. Short pools yield fewer items
// instead of failing, and one final shuffle fixes display order.
func (s *Selector) Select(pools Pools) []VideoAsset {
	selected := make([]VideoAsset, 0, pools.Total())
	selected = append(selected, pools.Obvious...)
	selected = append(selected, s.pickSynthetic(pools.SyntheticEntertainment)...)
	selected = append(selected, s.pickReals(pools.RealEntertainment)...)
	selected = append(selected, s.pickSynthetic(pools.SyntheticInformational)...)
	selected = append(selected, s.pickReals(pools.RealInformational)...)

	s.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}

// pickSynthetic shuffles the pool once, then takes the first quota
// items of each quality bucket. The shuffle decides which items are
// chosen, not where they appear in the final order.
func (s *Selector) pickSynthetic(pool []VideoAsset) []VideoAsset {
	shuffled := s.shuffleCopy(pool)
	var high, low []VideoAsset
	for _, asset := range shuffled {
		switch asset.Quality {
		case QualityHigh:
			if len(high) < s.perQualityQuota {
				high = append(high, asset)
			}
		case QualityLow:
			if len(low) < s.perQualityQuota {
				low = append(low, asset)
			}
		}
	}
	return append(high, low...)
}

func (s *Selector) pickReals(pool []VideoAsset) []VideoAsset {
	shuffled := s.shuffleCopy(pool)
	if len(shuffled) > s.realsQuota {
		shuffled = shuffled[:s.realsQuota]
	}
	return shuffled
}

func (s *Selector) shuffleCopy(pool []VideoAsset) []VideoAsset {
	out := append([]VideoAsset(nil), pool...)
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

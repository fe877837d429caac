package prompt

import (
	"math/rand"
	"strings"
	"time"

	"github.com/scrolland/cuestionario-videos/internal/analysis"
)

// Category distinguishes the two content families in the experiment.
type Category string

const (
	CategoryEntertainment Category = "entertainment"
	CategoryInformational Category = "informational"
)

// CategoryFromFolder infers the content category from a destination folder
// name, following the content-tree convention: a leading "i" (or an explicit
// informational marker) means informational, everything else entertainment.
func CategoryFromFolder(folder string) Category {
	lower := strings.ToLower(strings.TrimSpace(folder))
	if lower == "" {
		return CategoryEntertainment
	}
	if strings.HasPrefix(lower, "i") || strings.Contains(lower, "informativ") || strings.Contains(lower, "_i") {
		return CategoryInformational
	}
	return CategoryEntertainment
}

var entertainmentBase = []string{
	"natural subtle movement",
	"gentle ambient motion",
	"organic realistic movement",
	"soft natural gestures",
	"authentic human behavior",
}

var informationalBase = []string{
	"professional subtle movement",
	"slight natural camera movement",
	"minimal realistic motion",
	"steady professional presentation",
	"controlled natural movement",
}

// High tier: maximum realism and detail.
var highEnhancements = []string{
	"ultra high definition",
	"professional grade",
	"pristine quality",
	"sharp details",
	"natural motion blur",
	"authentic depth of field",
	"realistic lighting gradients",
	"subtle micro-expressions",
}

// Low tier: artifacts subtle enough to keep detection difficult.
var lowEnhancements = []string{
	"slight compression",
	"natural grain",
	"soft focus",
	"subtle motion artifacts",
	"minimal detail loss",
	"organic imperfections",
}

// Pair holds the two tier-specialized prompts derived from one base prompt.
// Both share the base as a common prefix and are never identical.
type Pair struct {
	High string
	Low  string
}

// Synthesizer composes motion prompts from image analysis results.
type Synthesizer struct {
	rng *rand.Rand
}

// NewSynthesizer builds a Synthesizer. A nil rng falls back to a
// time-seeded source; tests inject a seeded one for reproducibility.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Synthesizer{rng: rng}
}

// Generate returns the high/low prompt pair for one image. A non-empty
// custom prompt is used verbatim as the base; otherwise the base is composed
// from the analysis.
func (s *Synthesizer) Generate(a analysis.Analysis, category Category, customPrompt string) Pair {
	base := strings.TrimSpace(customPrompt)
	if base == "" {
		base = s.compose(a, category)
	}
	return Pair{
		High: base + ", " + strings.Join(highEnhancements, ", "),
		Low:  base + ", " + strings.Join(lowEnhancements, ", "),
	}
}

func (s *Synthesizer) compose(a analysis.Analysis, category Category) string {
	components := make([]string, 0, 8)

	pool := entertainmentBase
	if category == CategoryInformational {
		pool = informationalBase
	}
	components = append(components, pool[s.rng.Intn(len(pool))])

	if a.Composition == analysis.CompositionTop || a.HasFaceRegion {
		components = append(components, "subtle facial expressions", "natural eye movement")
	} else if a.Composition == analysis.CompositionCenter {
		components = append(components, "centered subject movement")
	}

	switch a.Brightness {
	case analysis.BrightnessBright:
		components = append(components, "natural daylight")
	case analysis.BrightnessDark:
		components = append(components, "ambient indoor lighting")
	default:
		components = append(components, "balanced natural lighting")
	}

	switch a.ColorTemperature {
	case analysis.TemperatureWarm:
		components = append(components, "warm color tones")
	case analysis.TemperatureCool:
		components = append(components, "cool color tones")
	}

	components = append(components, "cinematic quality", "photorealistic", "high detail")

	return strings.Join(components, ", ")
}

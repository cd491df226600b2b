package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrInvalidDimensions = errors.New("width and height must be positive")
	ErrUnknownEditModel  = errors.New("unknown edit model")
	ErrInvalidFormat     = errors.New("invalid output format")
)

// SeedLimit is the exclusive upper bound for randomly drawn seeds.
const SeedLimit = 1_000_000_000

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWebP OutputFormat = "webp"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPEG, FormatWebP}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

// ParseFormat accepts the configuration spelling ("PNG", "jpg", ...) of a format.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpg" {
		f = FormatJPEG
	}
	if !f.IsValid() {
		return "", fmt.Errorf("%w %q: must be one of %v", ErrInvalidFormat, s, ValidFormats())
	}
	return f, nil
}

// Params is the structured parameter set sent with every generation request.
// Its Map form feeds the cache key.
type Params struct {
	Width  int
	Height int
	Model  string
	Seed   int64
	NoLogo bool
}

func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, p.Width, p.Height)
	}
	return nil
}

func (p Params) Map() map[string]any {
	return map[string]any{
		"width":  p.Width,
		"height": p.Height,
		"model":  p.Model,
		"seed":   p.Seed,
		"nologo": p.NoLogo,
	}
}

// Overrides carries per-call values that replace configured defaults.
// Zero values mean "use the default"; Seed and NoLogo are pointers because
// zero and false are meaningful.
type Overrides struct {
	Width  int
	Height int
	Model  string
	Seed   *int64
	NoLogo *bool
}

func (o Overrides) WithSeed(seed int64) Overrides {
	o.Seed = &seed
	return o
}

func (o Overrides) WithNoLogo(noLogo bool) Overrides {
	o.NoLogo = &noLogo
	return o
}

// Merge applies o over defaults. The seed is left to the caller when neither
// side provides one.
func (o Overrides) Merge(defaults Params) Params {
	p := defaults
	if o.Width > 0 {
		p.Width = o.Width
	}
	if o.Height > 0 {
		p.Height = o.Height
	}
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.Seed != nil {
		p.Seed = *o.Seed
	}
	if o.NoLogo != nil {
		p.NoLogo = *o.NoLogo
	}
	return p
}

// Statistics is a snapshot of a generator's session counters.
type Statistics struct {
	ImagesGenerated     int
	CacheHits           int
	Errors              int
	TotalGenerationTime time.Duration
}

func (s Statistics) CacheHitRate() float64 {
	total := s.ImagesGenerated + s.CacheHits
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100
}

func (s Statistics) AverageGenerationTime() time.Duration {
	if s.ImagesGenerated == 0 {
		return 0
	}
	return s.TotalGenerationTime / time.Duration(s.ImagesGenerated)
}

// Package measure computes the pixel footprint a card needs to show its
// markdown without clipping.
package measure

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Size is a card footprint in canvas pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Measurer returns the size a card showing markdown should have.
type Measurer interface {
	Measure(markdown string) (Size, error)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(markdown string) (Size, error)

// Measure calls f.
func (f MeasurerFunc) Measure(markdown string) (Size, error) { return f(markdown) }

// Surface is a transient off-screen render of one markdown document.
type Surface interface {
	// TitleWidth is the unwrapped width of the first heading, padding included.
	TitleWidth() float64
	// NaturalWidth is the unwrapped width of the widest block, padding included.
	NaturalWidth() float64
	// HeightAt is the laid-out height when wrapped to width.
	HeightAt(width float64) float64
	Close() error
}

// Renderer creates surfaces.
type Renderer interface {
	Render(markdown string) (Surface, error)
}

// Policy selects how the final size is chosen.
type Policy string

const (
	// PolicyMeasured returns the natural content size within the width bounds.
	PolicyMeasured Policy = "measured"
	// PolicySquare searches for the width where height is closest to width
	// and returns a square.
	PolicySquare Policy = "square"
)

// maxProbes bounds the bisection in the square policy.
const maxProbes = 10

// Config holds the width bounds and policy.
type Config struct {
	MinWidth    float64
	MaxWidth    float64
	TitleMargin float64
	Policy      Policy
	CacheSize   int
}

// DefaultConfig returns the stock bounds.
func DefaultConfig() Config {
	return Config{
		MinWidth:    250,
		MaxWidth:    400,
		TitleMargin: 40,
		Policy:      PolicyMeasured,
		CacheSize:   256,
	}
}

// Service measures markdown through a Renderer and memoises results.
type Service struct {
	renderer Renderer
	cfg      Config
	cache    *lru.Cache[string, Size]
}

var _ Measurer = (*Service)(nil)

// NewService creates a measuring service. A CacheSize of zero disables
// memoisation.
func NewService(renderer Renderer, cfg Config) (*Service, error) {
	switch cfg.Policy {
	case "":
		cfg.Policy = PolicyMeasured
	case PolicyMeasured, PolicySquare:
	default:
		return nil, fmt.Errorf("measure: unknown policy %q", cfg.Policy)
	}
	s := &Service{renderer: renderer, cfg: cfg}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, Size](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("measure: cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Measure renders markdown off-screen and settles on a size per the policy.
// The render surface is always closed before returning.
func (s *Service) Measure(markdown string) (Size, error) {
	if s.cache != nil {
		if size, ok := s.cache.Get(markdown); ok {
			return size, nil
		}
	}
	size, err := s.measure(markdown)
	if err != nil {
		return Size{}, err
	}
	if s.cache != nil {
		s.cache.Add(markdown, size)
	}
	return size, nil
}

func (s *Service) measure(markdown string) (size Size, err error) {
	surf, err := s.renderer.Render(markdown)
	if err != nil {
		return Size{}, fmt.Errorf("measure: render: %w", err)
	}
	defer func() {
		if cerr := surf.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("measure: close surface: %w", cerr)
		}
	}()

	lower, upper := s.bounds(surf.TitleWidth())
	switch s.cfg.Policy {
	case PolicySquare:
		return s.square(surf, lower, upper), nil
	default:
		w := math.Min(math.Max(surf.NaturalWidth(), lower), upper)
		return Size{Width: math.Ceil(w), Height: math.Ceil(surf.HeightAt(w))}, nil
	}
}

// bounds returns the width search range. The lower bound keeps the title on
// one line; the upper bound doubles when the lower already exceeds it.
func (s *Service) bounds(titleWidth float64) (lower, upper float64) {
	lower = math.Max(s.cfg.MinWidth, titleWidth+s.cfg.TitleMargin)
	upper = s.cfg.MaxWidth
	if lower > upper {
		upper *= 2
	}
	return math.Min(lower, upper), upper
}

func (s *Service) square(surf Surface, lower, upper float64) Size {
	lo, hi := lower, upper
	bestW, bestH := lower, surf.HeightAt(lower)
	bestDiff := math.Abs(bestH - bestW)
	for i := 1; i < maxProbes && hi-lo > 1; i++ {
		mid := (lo + hi) / 2
		h := surf.HeightAt(mid)
		if d := math.Abs(h - mid); d < bestDiff {
			bestW, bestH, bestDiff = mid, h, d
		}
		if h > mid {
			lo = mid
		} else {
			hi = mid
		}
	}
	side := math.Ceil(math.Max(bestW, bestH))
	return Size{Width: side, Height: side}
}

package topo

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfidenceThreshold is the minimum similarity a candidate must
// exceed to be considered during reconciliation.
//
// The value is a test-driven parameter, not a derived constant. It is
// exposed here (and as a tracker option) so hosts can tune it against
// their kernel's signature behavior.
const DefaultConfidenceThreshold = 0.5

// Scorer computes a similarity confidence for two signatures.
//
// Implementations must be pure: same inputs, same score, no state.
// Scores are in [0,1] where 1 means "as similar as this scorer can
// express" and 0 means "no similarity". The reconciliation algorithm
// depends on score stability for its determinism guarantee.
type Scorer interface {
	Score(a, b Signature) float64
}

// ScorerConfig holds the weights and scale for DefaultScorer.
//
// Weights are relative; they are normalized by their sum. DistanceScale
// is the centroid distance (model units) at which the position term
// decays to 1/e.
type ScorerConfig struct {
	CentroidWeight  float64 `yaml:"centroid_weight"`
	SizeWeight      float64 `yaml:"size_weight"`
	DirectionWeight float64 `yaml:"direction_weight"`
	DistanceScale   float64 `yaml:"distance_scale"`
}

// DefaultScorerConfig returns the stock weighting: position dominates,
// size and direction each contribute a quarter.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		CentroidWeight:  0.5,
		SizeWeight:      0.25,
		DirectionWeight: 0.25,
		DistanceScale:   1.0,
	}
}

// Validate checks the config for usable values.
func (c ScorerConfig) Validate() error {
	if c.CentroidWeight < 0 || c.SizeWeight < 0 || c.DirectionWeight < 0 {
		return fmt.Errorf("scorer weights must be non-negative")
	}
	if c.CentroidWeight+c.SizeWeight+c.DirectionWeight <= 0 {
		return fmt.Errorf("scorer weights must not all be zero")
	}
	if c.DistanceScale <= 0 {
		return fmt.Errorf("distance_scale must be positive, got %v", c.DistanceScale)
	}
	return nil
}

// LoadScorerConfig reads a ScorerConfig from a YAML file.
// Unknown fields are rejected to catch typos.
func LoadScorerConfig(path string) (ScorerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScorerConfig{}, fmt.Errorf("read scorer config: %w", err)
	}

	cfg := DefaultScorerConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return ScorerConfig{}, fmt.Errorf("parse scorer config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ScorerConfig{}, fmt.Errorf("invalid scorer config: %w", err)
	}
	return cfg, nil
}

// DefaultScorer scores signatures as a normalized weighted sum of three
// terms:
//
//   - position: exp(-distance/scale) over centroid distance
//   - size: min/max ratio of magnitudes
//   - direction: (1+cos θ)/2 between direction vectors
//
// A term where neither signature carries information (vertex signatures
// have zero size and no direction) is dropped from the sum and the
// remaining weights renormalized, so absent evidence never lifts a
// score above the threshold. Exactly one zero size scores the size term
// 0; exactly one zero direction scores the direction term 0.5 (neutral,
// no evidence either way).
type DefaultScorer struct {
	cfg ScorerConfig
}

// NewDefaultScorer builds a DefaultScorer from cfg.
// Returns an error if the config is invalid.
func NewDefaultScorer(cfg ScorerConfig) (*DefaultScorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DefaultScorer{cfg: cfg}, nil
}

// NewStockScorer returns a DefaultScorer with DefaultScorerConfig.
func NewStockScorer() *DefaultScorer {
	s, err := NewDefaultScorer(DefaultScorerConfig())
	if err != nil {
		panic(err) // default config is always valid
	}
	return s
}

// Score implements Scorer.
func (s *DefaultScorer) Score(a, b Signature) float64 {
	// Exact fast path: identical signatures are a perfect match.
	if a == b {
		return 1.0
	}

	position := math.Exp(-centroidDistance(a, b) / s.cfg.DistanceScale)

	sum := s.cfg.CentroidWeight * position
	total := s.cfg.CentroidWeight
	if size, ok := sizeTerm(a.Size, b.Size); ok {
		sum += s.cfg.SizeWeight * size
		total += s.cfg.SizeWeight
	}
	if direction, ok := directionTerm(a.Direction, b.Direction); ok {
		sum += s.cfg.DirectionWeight * direction
		total += s.cfg.DirectionWeight
	}
	if total < sizeEpsilon {
		// CentroidWeight 0 and no size/direction evidence: position is
		// the only signal left.
		return clamp01(position)
	}
	return clamp01(sum / total)
}

// sizeTerm compares characteristic magnitudes as a min/max ratio.
// Returns ok=false when neither side carries a magnitude.
const sizeEpsilon = 1e-12

func sizeTerm(a, b float64) (float64, bool) {
	a, b = math.Abs(a), math.Abs(b)
	if a < sizeEpsilon && b < sizeEpsilon {
		return 0, false
	}
	if a < sizeEpsilon || b < sizeEpsilon {
		return 0, true
	}
	if a > b {
		a, b = b, a
	}
	return a / b, true
}

// directionTerm compares direction vectors by angle.
// Returns ok=false when neither side carries a direction.
func directionTerm(a, b [3]float64) (float64, bool) {
	na, nb := vecNorm(a), vecNorm(b)
	aZero, bZero := na < sizeEpsilon, nb < sizeEpsilon
	switch {
	case aZero && bZero:
		return 0, false
	case aZero || bZero:
		return 0.5, true
	}
	dot := (a[0]*b[0] + a[1]*b[1] + a[2]*b[2]) / (na * nb)
	return clamp01((1+dot)/2), true
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

package topo

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScorer_IdenticalSignatures(t *testing.T) {
	s := NewStockScorer()
	sig := Signature{Centroid: [3]float64{1, 2, 3}, Size: 4.5, Direction: [3]float64{0, 0, 1}}
	assert.Equal(t, 1.0, s.Score(sig, sig))
}

func TestDefaultScorer_ScoreBounds(t *testing.T) {
	s := NewStockScorer()
	pairs := []struct {
		name string
		a, b Signature
	}{
		{
			name: "far apart opposite directions",
			a:    Signature{Centroid: [3]float64{0, 0, 0}, Size: 1, Direction: [3]float64{0, 0, 1}},
			b:    Signature{Centroid: [3]float64{100, 100, 100}, Size: 50, Direction: [3]float64{0, 0, -1}},
		},
		{
			name: "one zero-size",
			a:    Signature{Centroid: [3]float64{0, 0, 0}, Size: 0, Direction: [3]float64{}},
			b:    Signature{Centroid: [3]float64{0.1, 0, 0}, Size: 3, Direction: [3]float64{1, 0, 0}},
		},
		{
			name: "vertices close together",
			a:    Signature{Centroid: [3]float64{1, 1, 1}},
			b:    Signature{Centroid: [3]float64{1, 1, 1.2}},
		},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			score := s.Score(tt.a, tt.b)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
			// Symmetry: argument order must not matter.
			assert.InDelta(t, score, s.Score(tt.b, tt.a), 1e-12)
		})
	}
}

func TestDefaultScorer_SmallShiftScoresHigh(t *testing.T) {
	s := NewStockScorer()
	a := Signature{Centroid: [3]float64{0, 0, 0}, Size: 1, Direction: [3]float64{0, 0, 1}}
	b := Signature{Centroid: [3]float64{0.3, 0, 0}, Size: 1, Direction: [3]float64{0, 0, 1}}

	score := s.Score(a, b)
	assert.Greater(t, score, DefaultConfidenceThreshold)
}

func TestDefaultScorer_DistantEntityScoresLow(t *testing.T) {
	s := NewStockScorer()
	a := Signature{Centroid: [3]float64{0, 0, 0}, Size: 1, Direction: [3]float64{0, 0, 1}}
	b := Signature{Centroid: [3]float64{5, 0, 0}, Size: 3, Direction: [3]float64{1, 0, 0}}

	score := s.Score(a, b)
	assert.LessOrEqual(t, score, DefaultConfidenceThreshold)
}

func TestDefaultScorer_VertexSignatures(t *testing.T) {
	// Vertex signatures have zero size and direction; those terms must
	// not penalize the score.
	s := NewStockScorer()
	a := VertexRecord{Index: 0, Position: [3]float64{1, 1, 1}}.Signature()
	b := VertexRecord{Index: 0, Position: [3]float64{1, 1, 1}}.Signature()
	assert.Equal(t, 1.0, s.Score(a, b))

	c := VertexRecord{Index: 1, Position: [3]float64{1, 1, 1.5}}.Signature()
	assert.Greater(t, s.Score(a, c), DefaultConfidenceThreshold)
}

func TestDefaultScorer_DistantVertexScoresLow(t *testing.T) {
	// With size and direction uninformative, the position term alone
	// decides: a distant vertex must fall below the threshold instead
	// of riding on vacuous size/direction agreement.
	s := NewStockScorer()
	a := VertexRecord{Index: 0, Position: [3]float64{0, 0, 0}}.Signature()
	b := VertexRecord{Index: 1, Position: [3]float64{2, 0, 0}}.Signature()

	score := s.Score(a, b)
	assert.InDelta(t, math.Exp(-2), score, 1e-12)
	assert.Less(t, score, DefaultConfidenceThreshold)
}

func TestSizeTerm(t *testing.T) {
	_, ok := sizeTerm(0, 0)
	assert.False(t, ok) // no magnitude on either side

	v, ok := sizeTerm(0, 2)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	v, ok = sizeTerm(2, 0)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, _ = sizeTerm(1, 2)
	assert.InDelta(t, 0.5, v, 1e-12)
	v, _ = sizeTerm(2, 1)
	assert.InDelta(t, 0.5, v, 1e-12)
	v, _ = sizeTerm(-3, 3)
	assert.InDelta(t, 1.0, v, 1e-12) // magnitudes compared
}

func TestDirectionTerm(t *testing.T) {
	up := [3]float64{0, 0, 1}
	down := [3]float64{0, 0, -1}
	right := [3]float64{1, 0, 0}
	zero := [3]float64{}

	v, ok := directionTerm(up, up)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, _ = directionTerm(up, down)
	assert.InDelta(t, 0.0, v, 1e-12)
	v, _ = directionTerm(up, right)
	assert.InDelta(t, 0.5, v, 1e-12)

	_, ok = directionTerm(zero, zero)
	assert.False(t, ok) // no direction on either side
	v, ok = directionTerm(up, zero)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestScorerConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultScorerConfig().Validate())

	bad := DefaultScorerConfig()
	bad.CentroidWeight = -1
	assert.Error(t, bad.Validate())

	bad = ScorerConfig{DistanceScale: 1}
	assert.Error(t, bad.Validate()) // all weights zero

	bad = DefaultScorerConfig()
	bad.DistanceScale = 0
	assert.Error(t, bad.Validate())
}

func TestNewDefaultScorer_InvalidConfig(t *testing.T) {
	_, err := NewDefaultScorer(ScorerConfig{})
	require.Error(t, err)
}

func TestLoadScorerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorer.yaml")
	content := `
centroid_weight: 0.6
size_weight: 0.2
direction_weight: 0.2
distance_scale: 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadScorerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.CentroidWeight)
	assert.Equal(t, 2.5, cfg.DistanceScale)
}

func TestLoadScorerConfig_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("distance_scale: 3.0\n"), 0644))

	cfg, err := LoadScorerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.DistanceScale)
	assert.Equal(t, DefaultScorerConfig().CentroidWeight, cfg.CentroidWeight)
}

func TestLoadScorerConfig_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("centroid_wieght: 0.5\n"), 0644))

	_, err := LoadScorerConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "centroid_wieght")
}

func TestLoadScorerConfig_MissingFile(t *testing.T) {
	_, err := LoadScorerConfig("/nonexistent/scorer.yaml")
	require.Error(t, err)
}

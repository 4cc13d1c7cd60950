package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// TestScenarios runs every scenario under testdata/scenarios and checks
// its inline expectations and assertions.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			require.NoError(t, result.Check())
		})
	}
}

// TestGoldenScenarios compares final tracker state against golden files.
// Regenerate with: go test ./internal/harness -update
func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{"plate-stretch", "box-translate"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func oneFace(centroid [3]float64) []topo.EntityRecord {
	return []topo.EntityRecord{
		{Index: 0, Signature: topo.Signature{Centroid: centroid, Size: 1, Direction: [3]float64{0, 0, 1}}},
	}
}

func TestRun_InlineExpectMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "expect_mismatch",
		Description: "Inline expectation disagrees with the outcome",
		Feature:     "f",
		Regenerations: []Regeneration{
			{
				Faces:  oneFace([3]float64{0, 0, 0}),
				Expect: &ExpectedOutcome{Matched: 1},
			},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regeneration 1")
}

func TestRun_SequentialIDs(t *testing.T) {
	scenario := &Scenario{
		Name:        "sequential_ids",
		Description: "Ids are minted deterministically in kernel order",
		Feature:     "f",
		Regenerations: []Regeneration{
			{Faces: oneFace([3]float64{0, 0, 0})},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Regens, 1)
	assert.Equal(t, map[int]string{0: "id-0001"}, result.Regens[0].Faces)
}

func TestRun_OperationContextStampsIDs(t *testing.T) {
	scenario := &Scenario{
		Name:        "operation_stamp",
		Description: "Regenerations inside an operation stamp its id",
		Feature:     "f",
		Regenerations: []Regeneration{
			{Operation: "extrude", Faces: oneFace([3]float64{0, 0, 0})},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	id, ok := result.Tracker.StableIDForIndex("f", topo.EntityFace, 0)
	require.True(t, ok)
	assert.Equal(t, "op-1", id.SourceOperationID)
	assert.Equal(t, "extrude", id.SourceOperationName)
}

package harness

import (
	"context"
	"fmt"

	"github.com/tessellate-cad/topotrack/internal/topo"
	"github.com/tessellate-cad/topotrack/internal/tracker"
)

// RegenResult captures one regeneration's outcome plus the resulting
// index-to-uuid mapping per entity type.
type RegenResult struct {
	Outcome  tracker.Outcome
	Faces    map[int]string
	Edges    map[int]string
	Vertices map[int]string
}

// Result is the state after running a scenario to completion.
type Result struct {
	Scenario *Scenario
	Tracker  *tracker.Tracker
	Regens   []RegenResult
}

// Run executes every regeneration of the scenario against a fresh
// tracker. Ids are minted sequentially so repeated runs produce the
// same uuids. Inline Expect blocks are checked as each regeneration
// completes.
func Run(scenario *Scenario) (*Result, error) {
	opts := []tracker.Option{
		tracker.WithIDGenerator(topo.NewSequenceGenerator()),
	}
	if scenario.Threshold > 0 {
		opts = append(opts, tracker.WithThreshold(scenario.Threshold))
	}
	tr := tracker.New(opts...)

	result := &Result{Scenario: scenario, Tracker: tr}
	ctx := context.Background()

	for i, regen := range scenario.Regenerations {
		if regen.Operation != "" {
			tr.BeginOperation(regen.Operation)
		}
		outcome, err := tr.UpdateAfterRegeneration(ctx, scenario.Feature, regen.AnalysisResult())
		if regen.Operation != "" {
			tr.EndOperation()
		}
		if err != nil {
			return nil, fmt.Errorf("regeneration %d: %w", i+1, err)
		}

		if exp := regen.Expect; exp != nil {
			if outcome.Matched != exp.Matched || outcome.New != exp.New || outcome.Lost != exp.Lost {
				return nil, fmt.Errorf("regeneration %d: outcome matched=%d new=%d lost=%d, want matched=%d new=%d lost=%d",
					i+1, outcome.Matched, outcome.New, outcome.Lost, exp.Matched, exp.New, exp.Lost)
			}
		}

		result.Regens = append(result.Regens, RegenResult{
			Outcome:  outcome,
			Faces:    mappingOfType(tr, scenario.Feature, topo.EntityFace, len(regen.Faces)),
			Edges:    mappingOfType(tr, scenario.Feature, topo.EntityEdge, len(regen.Edges)),
			Vertices: mappingOfType(tr, scenario.Feature, topo.EntityVertex, len(regen.Vertices)),
		})
	}
	return result, nil
}

// mappingOfType snapshots the current index-to-uuid bindings for one
// entity type. Regenerations bind indices 0..n-1 contiguously.
func mappingOfType(tr *tracker.Tracker, featureID string, typ topo.EntityType, count int) map[int]string {
	m := make(map[int]string, count)
	for index := 0; index < count; index++ {
		if id, ok := tr.StableIDForIndex(featureID, typ, index); ok {
			m[index] = id.UUID
		}
	}
	return m
}

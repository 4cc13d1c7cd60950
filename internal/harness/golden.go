package harness

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// StateSnapshot captures the deterministic parts of a scenario run
// for golden-file comparison. Timestamps are excluded so the snapshot
// is byte-stable across runs.
type StateSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Feature      string            `json:"feature"`
	Outcomes     []OutcomeSnapshot `json:"outcomes"`
	FinalNodes   []NodeSnapshot    `json:"final_nodes"`
}

// OutcomeSnapshot is one regeneration's reconciliation outcome.
type OutcomeSnapshot struct {
	Matched int `json:"matched"`
	New     int `json:"new"`
	Lost    int `json:"lost"`
}

// NodeSnapshot is the stable state of one tracked entity.
type NodeSnapshot struct {
	UUID       string `json:"uuid"`
	Type       string `json:"type"`
	Index      int    `json:"index"`
	Seq        int64  `json:"seq"`
	Alive      bool   `json:"alive"`
	DeadReason string `json:"dead_reason,omitempty"`
}

// snapshot builds the golden-comparable view of the run result.
func (r *Result) snapshot() StateSnapshot {
	snap := StateSnapshot{
		ScenarioName: r.Scenario.Name,
		Feature:      r.Scenario.Feature,
		Outcomes:     make([]OutcomeSnapshot, 0, len(r.Regens)),
	}
	for _, regen := range r.Regens {
		snap.Outcomes = append(snap.Outcomes, OutcomeSnapshot{
			Matched: regen.Outcome.Matched,
			New:     regen.Outcome.New,
			Lost:    regen.Outcome.Lost,
		})
	}

	nodes := r.Tracker.NodesForFeature(r.Scenario.Feature)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Seq < nodes[j].Seq })
	for _, n := range nodes {
		snap.FinalNodes = append(snap.FinalNodes, NodeSnapshot{
			UUID:       n.ID.UUID,
			Type:       string(n.ID.Type),
			Index:      n.Index,
			Seq:        n.Seq,
			Alive:      n.ID.Alive,
			DeadReason: n.DeadReason,
		})
	}
	return snap
}

// RunWithGolden executes a scenario, checks its assertions, and
// compares the final state against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := result.Check(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result.snapshot(), "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}

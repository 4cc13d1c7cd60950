package harness

import (
	"fmt"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// Check evaluates every assertion of the scenario against the run
// result. The first failing assertion aborts with a descriptive error.
func (r *Result) Check() error {
	for i, a := range r.Scenario.Assertions {
		if err := r.checkOne(&a); err != nil {
			return fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

func (r *Result) checkOne(a *Assertion) error {
	switch a.Type {
	case AssertOutcome:
		return r.checkOutcome(a)
	case AssertAliveCount:
		return r.checkNodeCount(a, true)
	case AssertDeadCount:
		return r.checkNodeCount(a, false)
	case AssertUUIDStable:
		return r.checkUUIDStable(a)
	case AssertResolves:
		return r.checkResolves(a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (r *Result) checkOutcome(a *Assertion) error {
	regen := a.Regen
	if regen == 0 {
		regen = len(r.Regens)
	}
	got := r.Regens[regen-1].Outcome
	if got.Matched != a.Matched || got.New != a.New || got.Lost != a.Lost {
		return fmt.Errorf("regeneration %d: matched=%d new=%d lost=%d, want matched=%d new=%d lost=%d",
			regen, got.Matched, got.New, got.Lost, a.Matched, a.New, a.Lost)
	}
	return nil
}

func (r *Result) checkNodeCount(a *Assertion, alive bool) error {
	typ := topo.EntityType(a.EntityType)
	count := 0
	for _, n := range r.Tracker.NodesForFeature(r.Scenario.Feature) {
		if n.ID.Type == typ && n.ID.Alive == alive {
			count++
		}
	}
	if count != a.Count {
		state := "alive"
		if !alive {
			state = "dead"
		}
		return fmt.Errorf("%d %s %s nodes, want %d", count, state, typ, a.Count)
	}
	return nil
}

func (r *Result) checkUUIDStable(a *Assertion) error {
	from, to := a.FromRegen, a.ToRegen
	if from == 0 {
		from = 1
	}
	if to == 0 {
		to = len(r.Regens)
	}

	mapping := func(regen int) map[int]string {
		switch topo.EntityType(a.EntityType) {
		case topo.EntityFace:
			return r.Regens[regen-1].Faces
		case topo.EntityEdge:
			return r.Regens[regen-1].Edges
		default:
			return r.Regens[regen-1].Vertices
		}
	}

	want, ok := mapping(from)[a.Index]
	if !ok {
		return fmt.Errorf("%s index %d unbound after regeneration %d", a.EntityType, a.Index, from)
	}
	for regen := from + 1; regen <= to; regen++ {
		got, ok := mapping(regen)[a.Index]
		if !ok {
			return fmt.Errorf("%s index %d unbound after regeneration %d", a.EntityType, a.Index, regen)
		}
		if got != want {
			return fmt.Errorf("%s index %d changed uuid between regenerations %d and %d: %s != %s",
				a.EntityType, a.Index, from, regen, got, want)
		}
	}
	return nil
}

func (r *Result) checkResolves(a *Assertion) error {
	typ := topo.EntityType(a.EntityType)
	id, ok := r.Tracker.StableIDForIndex(r.Scenario.Feature, typ, a.Index)
	if !ok {
		return fmt.Errorf("%s index %d does not resolve", a.EntityType, a.Index)
	}
	index, ok := r.Tracker.IndexForStableID(r.Scenario.Feature, typ, id.UUID)
	if !ok {
		return fmt.Errorf("uuid %s does not resolve back to an index", id.UUID)
	}
	if index != a.Index {
		return fmt.Errorf("uuid %s resolves to index %d, want %d", id.UUID, index, a.Index)
	}
	return nil
}

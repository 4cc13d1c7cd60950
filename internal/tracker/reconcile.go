package tracker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessellate-cad/topotrack/internal/graph"
	"github.com/tessellate-cad/topotrack/internal/topo"
)

// DeadReasonLost marks nodes whose entity did not survive a
// regeneration.
const DeadReasonLost = "lost in regeneration"

// Outcome aggregates one reconciliation pass across all entity types.
// Callers (tests, diagnostics, UI refresh policy) use it to decide how
// to react; matched+new equals the kernel's total entity count.
type Outcome struct {
	Matched int `json:"matched"`
	New     int `json:"new"`
	Lost    int `json:"lost"`
}

// regenSnapshot is the set of alive nodes captured by
// BeginRegeneration, before any liveness mutation.
type regenSnapshot struct {
	featureID string
	at        time.Time

	// nodes holds the previously alive nodes in insertion order,
	// all entity types.
	nodes []graph.Node
}

// BeginRegeneration snapshots the feature's currently alive nodes and
// stamps their LastRegenAt. Liveness is not mutated; the snapshot is
// consumed by the next UpdateAfterRegeneration for the same feature.
func (t *Tracker) BeginRegeneration(featureID string) {
	featureID = topo.NormalizeKey(featureID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.beginRegenLocked(featureID)
}

func (t *Tracker) beginRegenLocked(featureID string) *regenSnapshot {
	at := now()
	nodes := t.graph.AliveNodesForFeature(featureID)
	for _, n := range nodes {
		// TouchRegen cannot fail for a uuid the graph just returned.
		_ = t.graph.TouchRegen(n.ID.UUID, at)
	}
	snap := &regenSnapshot{featureID: featureID, at: at, nodes: nodes}
	t.pending[featureID] = snap

	t.log.Debug("regeneration snapshot taken",
		"feature_id", featureID,
		"alive_nodes", len(nodes),
	)
	return snap
}

// UpdateAfterRegeneration reconciles the kernel's fresh enumeration of
// one feature against the existing stable identities.
//
// Types are processed in fixed order face, edge, vertex; within a type
// in kernel enumeration order. Each new entity claims its best
// surviving candidate above the confidence threshold (ties go to the
// earliest-created node); unmatched entities mint new ids; unclaimed
// survivors are marked dead. The feature's index maps are rebuilt
// strictly from the matched and newly minted set, and listeners fire
// exactly once for the feature.
//
// Given identical kernel output the pass is fully deterministic.
// A pass always runs to completion; the context is used only for trace
// propagation, never for cancellation.
func (t *Tracker) UpdateAfterRegeneration(ctx context.Context, featureID string, result topo.AnalysisResult) (Outcome, error) {
	featureID = topo.NormalizeKey(featureID)

	_, span := t.tracer.Start(ctx, "tracker.UpdateAfterRegeneration",
		trace.WithAttributes(
			attribute.String("topo.feature_id", featureID),
			attribute.Int("topo.entities", result.Total()),
		),
	)
	defer span.End()

	if err := result.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("analysis result for feature %s: %w", featureID, err)
	}

	t.mu.Lock()

	snap, ok := t.pending[featureID]
	if !ok {
		snap = t.beginRegenLocked(featureID)
	}
	delete(t.pending, featureID)

	outcome, err := t.reconcileLocked(featureID, snap, result)
	t.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}

	span.SetAttributes(
		attribute.Int("topo.matched", outcome.Matched),
		attribute.Int("topo.new", outcome.New),
		attribute.Int("topo.lost", outcome.Lost),
	)
	t.log.Info("reconciliation complete",
		"feature_id", featureID,
		"matched", outcome.Matched,
		"new", outcome.New,
		"lost", outcome.Lost,
	)

	t.notify(featureID)
	return outcome, nil
}

// kernelEntity is one enumerated entity normalized across types.
type kernelEntity struct {
	index int
	sig   topo.Signature
}

// reconcileLocked runs the matching pass. Callers hold t.mu.
//
// Mutations are ordered so that a mid-pass error from a graph
// precondition (duplicate uuid) surfaces before the feature mapping is
// replaced; the algorithm itself cannot produce one.
func (t *Tracker) reconcileLocked(featureID string, snap *regenSnapshot, result topo.AnalysisResult) (Outcome, error) {
	var outcome Outcome

	// Nodes from the snapshot are the only matching candidates: ids
	// minted during this pass must not capture later entities.
	survivors := make(map[string]bool, len(snap.nodes))
	for _, n := range snap.nodes {
		survivors[n.ID.UUID] = true
	}
	claimed := make(map[string]bool)

	fm := t.mappingLocked(featureID)

	for _, typ := range topo.EntityTypes {
		entities := entitiesOfType(result, typ)
		bindings := make(map[int]string, len(entities))

		for _, ent := range entities {
			match, found := t.bestCandidate(featureID, typ, ent.sig, survivors, claimed)
			if found {
				claimed[match.UUID] = true
				if err := t.graph.UpdateNodeIndex(match.UUID, ent.index); err != nil {
					return Outcome{}, err
				}
				// Signatures drift continuously under small edits; the
				// stored one is refreshed so the next pass matches
				// against current geometry.
				if err := t.graph.UpdateNodeSignature(match.UUID, ent.sig); err != nil {
					return Outcome{}, err
				}
				bindings[ent.index] = match.UUID
				outcome.Matched++
				continue
			}

			sig := ent.sig
			id, err := t.registerLocked(featureID, typ, ent.index, nil, &sig, "")
			if err != nil {
				return Outcome{}, err
			}
			bindings[ent.index] = id.UUID
			outcome.New++
		}

		// Survivors of this type that no entity claimed are gone.
		for _, n := range snap.nodes {
			if n.ID.Type != typ || claimed[n.ID.UUID] {
				continue
			}
			if err := t.graph.MarkNodeDead(n.ID.UUID, DeadReasonLost); err != nil {
				return Outcome{}, err
			}
			outcome.Lost++
		}

		// Rebuild this type's slice of the mapping strictly from the
		// matched + newly registered set before the next type.
		m := fm.byType(typ)
		m.reset()
		for index, uuid := range bindings {
			if err := m.set(index, uuid); err != nil {
				return Outcome{}, err
			}
		}
	}

	opID, _ := t.currentOpLocked()
	fm.operationID = opID
	fm.updatedAt = snap.at
	return outcome, nil
}

// bestCandidate returns the unclaimed surviving node with the highest
// confidence above the threshold. Equal confidence tie-breaks on the
// lowest insertion sequence, i.e. earliest node creation.
//
// The tie-break is an assumption inferred from reference behavior, not
// a documented contract; it lives here, in one place, so it can be
// revised without touching the pass.
func (t *Tracker) bestCandidate(featureID string, typ topo.EntityType, sig topo.Signature, survivors, claimed map[string]bool) (graph.Match, bool) {
	candidates := t.graph.FindBySignatureInFeature(featureID, typ, sig, t.threshold)

	var best graph.Match
	found := false
	for _, c := range candidates {
		if !survivors[c.UUID] || claimed[c.UUID] {
			continue
		}
		if !found || c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.Seq < best.Seq) {
			best = c
			found = true
		}
	}
	return best, found
}

// entitiesOfType normalizes one type's slice of the analysis result.
// Vertices convert their raw position into a centroid-only signature.
func entitiesOfType(result topo.AnalysisResult, typ topo.EntityType) []kernelEntity {
	switch typ {
	case topo.EntityFace:
		return entityRecords(result.Faces)
	case topo.EntityEdge:
		return entityRecords(result.Edges)
	case topo.EntityVertex:
		out := make([]kernelEntity, len(result.Vertices))
		for i, v := range result.Vertices {
			out[i] = kernelEntity{index: v.Index, sig: v.Signature()}
		}
		return out
	}
	return nil
}

func entityRecords(recs []topo.EntityRecord) []kernelEntity {
	out := make([]kernelEntity, len(recs))
	for i, r := range recs {
		out[i] = kernelEntity{index: r.Index, sig: r.Signature}
	}
	return out
}

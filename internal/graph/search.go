package graph

import "github.com/tessellate-cad/topotrack/internal/topo"

// Match is one candidate from a signature search, annotated with a
// confidence score in [0,1] and the node's insertion sequence for
// tie-breaking.
type Match struct {
	UUID       string
	Index      int
	Confidence float64
	Seq        int64
}

// FindBySignature returns alive nodes of the given type whose stored
// signature similarity to sig exceeds threshold.
//
// An empty result is not an error: it routes the caller to "mint new
// id". Candidates come back in insertion order, but callers must not
// rely on any ordering beyond "above threshold" - picking a winner is
// the reconciliation algorithm's job.
func (g *Graph) FindBySignature(typ topo.EntityType, sig topo.Signature, threshold float64) []Match {
	var out []Match
	// Iterate features through byFeature for deterministic insertion
	// order within each feature; cross-feature order is resolved by Seq
	// sorting at the call site when it matters.
	for _, uuids := range g.byFeature {
		out = g.appendMatches(out, uuids, typ, sig, threshold)
	}
	return out
}

// FindBySignatureInFeature is FindBySignature restricted to one
// feature. Reconciliation always searches this way: identities never
// migrate between features.
func (g *Graph) FindBySignatureInFeature(featureID string, typ topo.EntityType, sig topo.Signature, threshold float64) []Match {
	return g.appendMatches(nil, g.byFeature[featureID], typ, sig, threshold)
}

func (g *Graph) appendMatches(out []Match, uuids []string, typ topo.EntityType, sig topo.Signature, threshold float64) []Match {
	for _, uuid := range uuids {
		n := g.nodes[uuid]
		if !n.ID.Alive || n.ID.Type != typ || n.ID.Signature == nil {
			continue
		}
		var confidence float64
		if n.ID.Signature.Equal(sig) {
			// Exact fast path: skip scoring for unchanged geometry.
			confidence = 1.0
		} else {
			confidence = g.scorer.Score(*n.ID.Signature, sig)
		}
		if confidence > threshold {
			out = append(out, Match{
				UUID:       uuid,
				Index:      n.Index,
				Confidence: confidence,
				Seq:        n.Seq,
			})
		}
	}
	return out
}

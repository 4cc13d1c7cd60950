package topo

import "fmt"

// EntityRecord is one face or edge in a kernel enumeration:
// a zero-based display index plus a geometric signature.
type EntityRecord struct {
	Index     int       `json:"index"`
	Signature Signature `json:"signature"`
}

// VertexRecord is one vertex in a kernel enumeration. Vertices carry a
// raw position rather than a full signature.
type VertexRecord struct {
	Index    int        `json:"index"`
	Position [3]float64 `json:"position"`
}

// Signature converts the position into a centroid-only signature for
// matching. Size and Direction stay zero, so vertex scoring is driven
// entirely by position.
func (v VertexRecord) Signature() Signature {
	return Signature{Centroid: v.Position}
}

// AnalysisResult is the kernel's full (non-incremental) enumeration of
// one feature's topology after a regeneration. Lists are in
// kernel-native order; indices are zero-based and unique per type.
type AnalysisResult struct {
	Faces    []EntityRecord `json:"faces"`
	Edges    []EntityRecord `json:"edges"`
	Vertices []VertexRecord `json:"vertices"`
}

// Total returns the total entity count across all three types.
func (r AnalysisResult) Total() int {
	return len(r.Faces) + len(r.Edges) + len(r.Vertices)
}

// Validate checks that display indices are unique within each type.
// A collision is a kernel adapter bug: the reconciliation algorithm
// cannot produce one on its own and treats it as fatal.
func (r AnalysisResult) Validate() error {
	if err := validateIndices(EntityFace, recordIndices(r.Faces)); err != nil {
		return err
	}
	if err := validateIndices(EntityEdge, recordIndices(r.Edges)); err != nil {
		return err
	}
	vids := make([]int, len(r.Vertices))
	for i, v := range r.Vertices {
		vids[i] = v.Index
	}
	return validateIndices(EntityVertex, vids)
}

func recordIndices(recs []EntityRecord) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.Index
	}
	return out
}

func validateIndices(typ EntityType, indices []int) error {
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return fmt.Errorf("%s index %d is negative", typ, idx)
		}
		if seen[idx] {
			return fmt.Errorf("duplicate %s index %d in analysis result", typ, idx)
		}
		seen[idx] = true
	}
	return nil
}

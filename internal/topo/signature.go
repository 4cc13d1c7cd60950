package topo

import "math"

// Signature is an approximate geometric descriptor supplied by the
// kernel for one entity occurrence.
//
// Signatures are used only for similarity scoring during reconciliation,
// never as identity. Two distinct entities may have equal signatures
// (symmetric geometry) and one entity's signature drifts continuously
// under parameter edits.
//
// Vertices carry their raw position as Centroid with zero Size and
// Direction; see VertexRecord.Signature.
type Signature struct {
	// Centroid is the entity's center point in model space.
	Centroid [3]float64 `json:"centroid"`

	// Size is a characteristic magnitude: area for faces, length for
	// edges, zero for vertices.
	Size float64 `json:"size"`

	// Direction is a characteristic direction: face normal or edge
	// tangent. The zero vector means "no direction information".
	Direction [3]float64 `json:"direction"`
}

// Equal reports exact bitwise equality of two signatures.
// Candidate search uses this as a fast path for the common "nothing
// moved" regeneration; approximate matching never requires it.
func (s Signature) Equal(o Signature) bool {
	return s == o
}

// centroidDistance returns the Euclidean distance between centroids.
func centroidDistance(a, b Signature) float64 {
	dx := a.Centroid[0] - b.Centroid[0]
	dy := a.Centroid[1] - b.Centroid[1]
	dz := a.Centroid[2] - b.Centroid[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// vecNorm returns the Euclidean length of v.
func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

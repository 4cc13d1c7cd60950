package topo

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// EntityType classifies a topological entity occurrence.
type EntityType string

const (
	EntityFace   EntityType = "face"
	EntityEdge   EntityType = "edge"
	EntityVertex EntityType = "vertex"
)

// EntityTypes lists all entity types in matching order.
//
// CRITICAL: Reconciliation processes types in exactly this order
// (face, edge, vertex) to avoid cross-type ambiguity during matching.
// The order is part of the determinism contract and must never change.
var EntityTypes = []EntityType{EntityFace, EntityEdge, EntityVertex}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityFace, EntityEdge, EntityVertex:
		return true
	}
	return false
}

// ParseEntityType converts a string to an EntityType.
// Returns an error for unknown values.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q (want face, edge, or vertex)", s)
	}
	return t, nil
}

// NormalizeKey NFC-normalizes an externally supplied string key.
//
// Feature ids, labels, and operation names arrive from the history
// editor and may carry either Unicode composition form. Persisted maps
// are keyed on these strings, so both forms must collapse to one.
func NormalizeKey(s string) string {
	return norm.NFC.String(s)
}

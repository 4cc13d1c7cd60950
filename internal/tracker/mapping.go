package tracker

import (
	"fmt"
	"time"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// indexMap is one bidirectional index<->uuid map for a single entity
// type within a feature. Both directions are kept in lockstep so every
// lookup is O(1).
type indexMap struct {
	indexToUUID map[int]string
	uuidToIndex map[string]int
}

func newIndexMap() *indexMap {
	return &indexMap{
		indexToUUID: make(map[int]string),
		uuidToIndex: make(map[string]int),
	}
}

// set binds index<->uuid. Rebinding either key to a different partner
// is an index collision: the reconciliation pass rebuilds maps from
// scratch, so a collision can only mean a kernel adapter bug.
func (m *indexMap) set(index int, uuid string) error {
	if existing, ok := m.indexToUUID[index]; ok && existing != uuid {
		return fmt.Errorf("index %d already bound to %s: %w", index, existing, ErrIndexCollision)
	}
	if existing, ok := m.uuidToIndex[uuid]; ok && existing != index {
		return fmt.Errorf("uuid %s already bound to index %d: %w", uuid, existing, ErrIndexCollision)
	}
	m.indexToUUID[index] = uuid
	m.uuidToIndex[uuid] = index
	return nil
}

func (m *indexMap) uuidAt(index int) (string, bool) {
	uuid, ok := m.indexToUUID[index]
	return uuid, ok
}

func (m *indexMap) indexOf(uuid string) (int, bool) {
	index, ok := m.uuidToIndex[uuid]
	return index, ok
}

func (m *indexMap) reset() {
	m.indexToUUID = make(map[int]string)
	m.uuidToIndex = make(map[string]int)
}

func (m *indexMap) len() int {
	return len(m.indexToUUID)
}

// featureMapping holds the three per-type bidirectional maps for one
// feature plus the provenance of its last reconciliation.
type featureMapping struct {
	featureID   string
	operationID string
	updatedAt   time.Time

	faces    *indexMap
	edges    *indexMap
	vertices *indexMap
}

func newFeatureMapping(featureID string) *featureMapping {
	return &featureMapping{
		featureID: featureID,
		faces:     newIndexMap(),
		edges:     newIndexMap(),
		vertices:  newIndexMap(),
	}
}

// byType returns the index map for an entity type.
// The type is validated at every public API edge, so an unknown type
// here is unreachable.
func (fm *featureMapping) byType(typ topo.EntityType) *indexMap {
	switch typ {
	case topo.EntityFace:
		return fm.faces
	case topo.EntityEdge:
		return fm.edges
	case topo.EntityVertex:
		return fm.vertices
	}
	panic(fmt.Sprintf("featureMapping: unknown entity type %q", typ))
}

// MappingInfo is a read-only summary of one feature's mapping, exposed
// for diagnostics and the CLI.
type MappingInfo struct {
	FeatureID   string    `json:"featureId"`
	OperationID string    `json:"operationId,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Faces       int       `json:"faces"`
	Edges       int       `json:"edges"`
	Vertices    int       `json:"vertices"`
}

func (fm *featureMapping) info() MappingInfo {
	return MappingInfo{
		FeatureID:   fm.featureID,
		OperationID: fm.operationID,
		UpdatedAt:   fm.updatedAt,
		Faces:       fm.faces.len(),
		Edges:       fm.edges.len(),
		Vertices:    fm.vertices.len(),
	}
}

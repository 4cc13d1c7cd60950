package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tessellate-cad/topotrack/internal/graph"
	"github.com/tessellate-cad/topotrack/internal/topo"
)

// DocumentVersion is the current persisted document structure version.
const DocumentVersion = 1

// ErrUnsupportedVersion means the persisted document was produced by
// an unknown structure version.
var ErrUnsupportedVersion = errors.New("unsupported document version")

// Document is the plain versioned structure the whole tracker
// round-trips through: the graph snapshot, every feature's mapping,
// and the operation counter.
type Document struct {
	Version          int             `json:"version"`
	Graph            graph.Snapshot  `json:"graph"`
	Mappings         []MappingRecord `json:"mappings"`
	OperationCounter int64           `json:"operationCounter"`
}

// MappingRecord is one feature's persisted mapping.
type MappingRecord struct {
	FeatureID   string          `json:"featureId"`
	OperationID string          `json:"operationId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Faces       EntityMapRecord `json:"faces"`
	Edges       EntityMapRecord `json:"edges"`
	Vertices    EntityMapRecord `json:"vertices"`
}

// EntityMapRecord persists one bidirectional index<->uuid map. Both
// directions are written; restore verifies they are mutual inverses,
// which catches hand-edited or truncated documents before they can
// corrupt a reference.
type EntityMapRecord struct {
	IndexToUUID []IndexPair `json:"indexToUuid"`
	UUIDToIndex []UUIDPair  `json:"uuidToIndex"`
}

// IndexPair is one index->uuid entry.
type IndexPair struct {
	Index int    `json:"index"`
	UUID  string `json:"uuid"`
}

// UUIDPair is one uuid->index entry.
type UUIDPair struct {
	UUID  string `json:"uuid"`
	Index int    `json:"index"`
}

// Serialize captures the whole tracker as a versioned JSON document.
// Output is deterministic: mappings sort by feature id, pairs by index
// (resp. uuid), graph nodes by insertion sequence.
func (t *Tracker) Serialize() ([]byte, error) {
	t.mu.Lock()
	doc := t.documentLocked()
	t.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize tracker: %w", err)
	}
	return data, nil
}

func (t *Tracker) documentLocked() Document {
	mappings := make([]MappingRecord, 0, len(t.mappings))
	for _, fm := range t.mappings {
		mappings = append(mappings, MappingRecord{
			FeatureID:   fm.featureID,
			OperationID: fm.operationID,
			Timestamp:   fm.updatedAt,
			Faces:       entityMapRecord(fm.faces),
			Edges:       entityMapRecord(fm.edges),
			Vertices:    entityMapRecord(fm.vertices),
		})
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].FeatureID < mappings[j].FeatureID })

	return Document{
		Version:          DocumentVersion,
		Graph:            t.graph.Snapshot(),
		Mappings:         mappings,
		OperationCounter: t.opCounter,
	}
}

func entityMapRecord(m *indexMap) EntityMapRecord {
	rec := EntityMapRecord{
		IndexToUUID: make([]IndexPair, 0, len(m.indexToUUID)),
		UUIDToIndex: make([]UUIDPair, 0, len(m.uuidToIndex)),
	}
	for index, uuid := range m.indexToUUID {
		rec.IndexToUUID = append(rec.IndexToUUID, IndexPair{Index: index, UUID: uuid})
	}
	for uuid, index := range m.uuidToIndex {
		rec.UUIDToIndex = append(rec.UUIDToIndex, UUIDPair{UUID: uuid, Index: index})
	}
	sort.Slice(rec.IndexToUUID, func(i, j int) bool { return rec.IndexToUUID[i].Index < rec.IndexToUUID[j].Index })
	sort.Slice(rec.UUIDToIndex, func(i, j int) bool { return rec.UUIDToIndex[i].UUID < rec.UUIDToIndex[j].UUID })
	return rec
}

// Deserialize restores the tracker from a serialized document.
//
// Restore is all-or-nothing: malformed input, a wrong version, a
// mapping whose directions disagree, or a mapping entry pointing at a
// missing, dead, or differently-typed node all fail loudly and leave
// the tracker untouched. Silent partial state would corrupt every
// stable reference in the host document.
func (t *Tracker) Deserialize(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}

	g, err := graph.Restore(doc.Graph, t.scorer)
	if err != nil {
		return fmt.Errorf("restore graph: %w", err)
	}

	mappings := make(map[string]*featureMapping, len(doc.Mappings))
	for _, rec := range doc.Mappings {
		if rec.FeatureID == "" {
			return fmt.Errorf("mapping with empty feature id")
		}
		if _, dup := mappings[rec.FeatureID]; dup {
			return fmt.Errorf("duplicate mapping for feature %s", rec.FeatureID)
		}
		fm := newFeatureMapping(rec.FeatureID)
		fm.operationID = rec.OperationID
		fm.updatedAt = rec.Timestamp
		if err := restoreIndexMap(fm.faces, rec.Faces, g, rec.FeatureID, topo.EntityFace); err != nil {
			return err
		}
		if err := restoreIndexMap(fm.edges, rec.Edges, g, rec.FeatureID, topo.EntityEdge); err != nil {
			return err
		}
		if err := restoreIndexMap(fm.vertices, rec.Vertices, g, rec.FeatureID, topo.EntityVertex); err != nil {
			return err
		}
		mappings[rec.FeatureID] = fm
	}

	// Full document validated; swap state atomically.
	t.mu.Lock()
	t.graph = g
	t.mappings = mappings
	t.pending = make(map[string]*regenSnapshot)
	t.opCounter = doc.OperationCounter
	t.currentOp = nil
	t.mu.Unlock()

	t.log.Info("tracker restored",
		"features", len(mappings),
		"nodes", len(doc.Graph.Nodes),
		"operation_counter", doc.OperationCounter,
	)
	return nil
}

// DecodeDocument parses and structurally validates a serialized
// document without building a tracker. The CLI uses it for read-only
// inspection.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	if doc.Version != DocumentVersion {
		return Document{}, fmt.Errorf("document version %d: %w (want %d)", doc.Version, ErrUnsupportedVersion, DocumentVersion)
	}
	return doc, nil
}

// restoreIndexMap rebuilds one bidirectional map and cross-checks it
// against the restored graph.
func restoreIndexMap(m *indexMap, rec EntityMapRecord, g *graph.Graph, featureID string, typ topo.EntityType) error {
	if len(rec.IndexToUUID) != len(rec.UUIDToIndex) {
		return fmt.Errorf("feature %s %s mapping: direction lengths differ (%d vs %d)",
			featureID, typ, len(rec.IndexToUUID), len(rec.UUIDToIndex))
	}

	reverse := make(map[string]int, len(rec.UUIDToIndex))
	for _, p := range rec.UUIDToIndex {
		reverse[p.UUID] = p.Index
	}

	for _, p := range rec.IndexToUUID {
		back, ok := reverse[p.UUID]
		if !ok || back != p.Index {
			return fmt.Errorf("feature %s %s mapping: index %d -> %s has no matching reverse entry",
				featureID, typ, p.Index, p.UUID)
		}

		id, ok := g.StableID(p.UUID)
		if !ok {
			return fmt.Errorf("feature %s %s mapping: uuid %s not in graph", featureID, typ, p.UUID)
		}
		if !id.Alive {
			return fmt.Errorf("feature %s %s mapping: uuid %s is dead but mapped", featureID, typ, p.UUID)
		}
		if id.Type != typ {
			return fmt.Errorf("feature %s mapping: uuid %s is a %s, mapped as %s", featureID, p.UUID, id.Type, typ)
		}
		if id.FeatureID != featureID {
			return fmt.Errorf("feature %s mapping: uuid %s belongs to feature %s", featureID, p.UUID, id.FeatureID)
		}

		if err := m.set(p.Index, p.UUID); err != nil {
			return fmt.Errorf("feature %s %s mapping: %w", featureID, typ, err)
		}
	}
	return nil
}

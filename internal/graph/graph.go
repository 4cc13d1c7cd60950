package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// Sentinel errors for precondition violations and lookups.
var (
	// ErrDuplicateNode means AddNode was called for an existing uuid.
	// This is a caller bug (the reconciliation algorithm cannot produce
	// it) and must be treated as fatal by the caller.
	ErrDuplicateNode = errors.New("duplicate node uuid")

	// ErrNodeNotFound means a mutation referenced an unknown uuid.
	ErrNodeNotFound = errors.New("node not found")
)

// Node wraps a StableID with its current display index within its
// feature and its graph insertion sequence.
type Node struct {
	ID    topo.StableID `json:"id"`
	Index int           `json:"index"`

	// Seq is the graph-assigned insertion sequence. It is the
	// equal-confidence tie-break during matching and never changes.
	Seq int64 `json:"seq"`

	// DeadReason records why the node was marked dead, empty while alive.
	DeadReason string `json:"deadReason,omitempty"`
}

// OperationRecord is one append-only provenance log entry.
// The log is audit-only: matching never consults it.
type OperationRecord struct {
	Seq         int64     `json:"seq"`
	OperationID string    `json:"operationId"`
	Name        string    `json:"name,omitempty"`
	At          time.Time `json:"at"`
}

// Stats summarizes graph contents.
type Stats struct {
	AliveByType map[topo.EntityType]int `json:"aliveByType"`
	DeadByType  map[topo.EntityType]int `json:"deadByType"`
	Operations  int                     `json:"operations"`
}

// Total returns the total node count, alive plus dead.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.AliveByType {
		n += c
	}
	for _, c := range s.DeadByType {
		n += c
	}
	return n
}

// Graph is the durable, queryable store of all stable ids.
type Graph struct {
	scorer topo.Scorer

	nodes map[string]*Node

	// byFeature holds uuids per feature in insertion order.
	byFeature map[string][]string

	opLog   []OperationRecord
	nextSeq int64
}

// New creates an empty graph using the given scorer for candidate
// search. A nil scorer falls back to the stock weighted scorer.
func New(scorer topo.Scorer) *Graph {
	if scorer == nil {
		scorer = topo.NewStockScorer()
	}
	return &Graph{
		scorer:    scorer,
		nodes:     make(map[string]*Node),
		byFeature: make(map[string][]string),
	}
}

// AddNode inserts a new node at the given display index.
//
// PRECONDITION: the uuid must not already exist. A violation returns
// ErrDuplicateNode, which callers treat as fatal: it means the kernel
// adapter minted the same identity twice.
func (g *Graph) AddNode(id topo.StableID, index int) error {
	if _, exists := g.nodes[id.UUID]; exists {
		return fmt.Errorf("add node %s: %w", id.UUID, ErrDuplicateNode)
	}
	g.nextSeq++
	g.nodes[id.UUID] = &Node{
		ID:    id,
		Index: index,
		Seq:   g.nextSeq,
	}
	g.byFeature[id.FeatureID] = append(g.byFeature[id.FeatureID], id.UUID)
	return nil
}

// Node returns a copy of the node for uuid.
// The second return is false if the uuid is unknown; absence is an
// expected, recoverable condition, never a panic.
func (g *Graph) Node(uuid string) (Node, bool) {
	n, ok := g.nodes[uuid]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// StableID returns a copy of the stable id for uuid.
func (g *Graph) StableID(uuid string) (topo.StableID, bool) {
	n, ok := g.nodes[uuid]
	if !ok {
		return topo.StableID{}, false
	}
	return n.ID, true
}

// NodesForFeature returns all nodes for a feature, any entity type,
// dead included, in insertion order.
func (g *Graph) NodesForFeature(featureID string) []Node {
	return g.featureNodes(featureID, false)
}

// AliveNodesForFeature returns only the alive nodes for a feature,
// in insertion order.
func (g *Graph) AliveNodesForFeature(featureID string) []Node {
	return g.featureNodes(featureID, true)
}

func (g *Graph) featureNodes(featureID string, aliveOnly bool) []Node {
	uuids := g.byFeature[featureID]
	out := make([]Node, 0, len(uuids))
	for _, uuid := range uuids {
		n := g.nodes[uuid]
		if aliveOnly && !n.ID.Alive {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// UpdateNodeIndex reassigns the node's current display index.
// Identity is unchanged.
func (g *Graph) UpdateNodeIndex(uuid string, newIndex int) error {
	n, ok := g.nodes[uuid]
	if !ok {
		return fmt.Errorf("update index of %s: %w", uuid, ErrNodeNotFound)
	}
	n.Index = newIndex
	return nil
}

// UpdateNodeSignature overwrites the node's stored signature.
// Signatures drift continuously under small parameter changes, so the
// reconciliation pass refreshes them on every match.
func (g *Graph) UpdateNodeSignature(uuid string, sig topo.Signature) error {
	n, ok := g.nodes[uuid]
	if !ok {
		return fmt.Errorf("update signature of %s: %w", uuid, ErrNodeNotFound)
	}
	s := sig
	n.ID.Signature = &s
	return nil
}

// TouchRegen stamps the node's LastRegenAt.
func (g *Graph) TouchRegen(uuid string, at time.Time) error {
	n, ok := g.nodes[uuid]
	if !ok {
		return fmt.Errorf("touch %s: %w", uuid, ErrNodeNotFound)
	}
	n.ID.LastRegenAt = at
	return nil
}

// MarkNodeDead sets the node's liveness to false.
//
// The node is retained for lineage and audit. Dead nodes are excluded
// from candidate search and from feature index maps but remain
// resolvable by uuid.
func (g *Graph) MarkNodeDead(uuid, reason string) error {
	n, ok := g.nodes[uuid]
	if !ok {
		return fmt.Errorf("mark dead %s: %w", uuid, ErrNodeNotFound)
	}
	n.ID.Alive = false
	n.DeadReason = reason
	return nil
}

// RemoveNode physically deletes a node. Feature removal only; all other
// paths mark nodes dead instead.
func (g *Graph) RemoveNode(uuid string) error {
	n, ok := g.nodes[uuid]
	if !ok {
		return fmt.Errorf("remove %s: %w", uuid, ErrNodeNotFound)
	}
	delete(g.nodes, uuid)

	uuids := g.byFeature[n.ID.FeatureID]
	for i, u := range uuids {
		if u == uuid {
			g.byFeature[n.ID.FeatureID] = append(uuids[:i], uuids[i+1:]...)
			break
		}
	}
	if len(g.byFeature[n.ID.FeatureID]) == 0 {
		delete(g.byFeature, n.ID.FeatureID)
	}
	return nil
}

// RecordOperation appends a provenance log entry.
func (g *Graph) RecordOperation(operationID, name string) {
	g.nextSeq++
	g.opLog = append(g.opLog, OperationRecord{
		Seq:         g.nextSeq,
		OperationID: operationID,
		Name:        name,
		At:          time.Now().UTC(),
	})
}

// OperationLog returns a copy of the append-only provenance log.
func (g *Graph) OperationLog() []OperationRecord {
	out := make([]OperationRecord, len(g.opLog))
	copy(out, g.opLog)
	return out
}

// Stats returns alive/dead counts per type and total logged operations.
func (g *Graph) Stats() Stats {
	s := Stats{
		AliveByType: make(map[topo.EntityType]int),
		DeadByType:  make(map[topo.EntityType]int),
		Operations:  len(g.opLog),
	}
	for _, typ := range topo.EntityTypes {
		s.AliveByType[typ] = 0
		s.DeadByType[typ] = 0
	}
	for _, n := range g.nodes {
		if n.ID.Alive {
			s.AliveByType[n.ID.Type]++
		} else {
			s.DeadByType[n.ID.Type]++
		}
	}
	return s
}

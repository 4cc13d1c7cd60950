package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

// SnapshotVersion is the current snapshot structure version.
const SnapshotVersion = 1

// ErrUnsupportedVersion means a snapshot was produced by an unknown
// structure version. Restoring it would corrupt every stable reference
// in the document, so restore refuses instead of guessing.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot is the plain versioned structure a graph round-trips
// through. Nodes are ordered by insertion sequence so serialized output
// is deterministic.
type Snapshot struct {
	Version      int               `json:"version"`
	Nodes        []Node            `json:"nodes"`
	OperationLog []OperationRecord `json:"operationLog"`
	NextSeq      int64             `json:"nextSeq"`
}

// Snapshot captures the full graph state as a plain structure.
func (g *Graph) Snapshot() Snapshot {
	nodes := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Seq < nodes[j].Seq })

	log := make([]OperationRecord, len(g.opLog))
	copy(log, g.opLog)

	return Snapshot{
		Version:      SnapshotVersion,
		Nodes:        nodes,
		OperationLog: log,
		NextSeq:      g.nextSeq,
	}
}

// Restore builds a graph from a snapshot.
//
// Restore is all-or-nothing: any malformed content (wrong version,
// duplicate uuid, unknown entity type, non-positive seq) fails loudly
// and produces no graph at all. Silent partial state would corrupt
// every stable reference held by the host document.
func Restore(s Snapshot, scorer topo.Scorer) (*Graph, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d: %w (want %d)", s.Version, ErrUnsupportedVersion, SnapshotVersion)
	}

	g := New(scorer)
	maxSeq := int64(0)

	// Insertion order must be rebuilt from Seq, not from whatever order
	// the serialized form happens to carry.
	nodes := make([]Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Seq < nodes[j].Seq })

	for i, n := range nodes {
		if n.ID.UUID == "" {
			return nil, fmt.Errorf("snapshot node %d: empty uuid", i)
		}
		if !n.ID.Type.Valid() {
			return nil, fmt.Errorf("snapshot node %s: unknown entity type %q", n.ID.UUID, n.ID.Type)
		}
		if n.Seq <= 0 {
			return nil, fmt.Errorf("snapshot node %s: non-positive seq %d", n.ID.UUID, n.Seq)
		}
		if _, exists := g.nodes[n.ID.UUID]; exists {
			return nil, fmt.Errorf("snapshot node %s: %w", n.ID.UUID, ErrDuplicateNode)
		}
		node := n
		g.nodes[n.ID.UUID] = &node
		g.byFeature[n.ID.FeatureID] = append(g.byFeature[n.ID.FeatureID], n.ID.UUID)
		if n.Seq > maxSeq {
			maxSeq = n.Seq
		}
	}

	g.opLog = make([]OperationRecord, len(s.OperationLog))
	copy(g.opLog, s.OperationLog)
	for _, rec := range s.OperationLog {
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
	}

	g.nextSeq = s.NextSeq
	if g.nextSeq < maxSeq {
		g.nextSeq = maxSeq
	}
	return g, nil
}

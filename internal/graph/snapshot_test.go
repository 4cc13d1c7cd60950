package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

func buildTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(nil)
	require.NoError(t, g.AddNode(mustStableID(t, "a", topo.EntityFace, "f1", faceSig(0)), 0))
	require.NoError(t, g.AddNode(mustStableID(t, "b", topo.EntityEdge, "f1", faceSig(1)), 0))
	require.NoError(t, g.AddNode(mustStableID(t, "c", topo.EntityFace, "f2", nil), 0))
	require.NoError(t, g.MarkNodeDead("b", "lost in regeneration"))
	g.RecordOperation("op-1", "extrude")
	return g
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildTestGraph(t)
	snap := g.Snapshot()

	assert.Equal(t, SnapshotVersion, snap.Version)
	require.Len(t, snap.Nodes, 3)
	// Nodes come out in insertion sequence.
	assert.Equal(t, "a", snap.Nodes[0].ID.UUID)
	assert.Equal(t, "b", snap.Nodes[1].ID.UUID)
	assert.Equal(t, "c", snap.Nodes[2].ID.UUID)

	restored, err := Restore(snap, nil)
	require.NoError(t, err)

	assert.Equal(t, g.Stats(), restored.Stats())
	assert.Equal(t, g.NodesForFeature("f1"), restored.NodesForFeature("f1"))
	assert.Equal(t, g.NodesForFeature("f2"), restored.NodesForFeature("f2"))
	assert.Equal(t, g.OperationLog(), restored.OperationLog())

	// Seq continues past the restored maximum.
	require.NoError(t, restored.AddNode(mustStableID(t, "d", topo.EntityVertex, "f1", nil), 0))
	n, _ := restored.Node("d")
	assert.Greater(t, n.Seq, snap.NextSeq)
}

func TestRestore_RebuildsInsertionOrderFromSeq(t *testing.T) {
	g := buildTestGraph(t)
	snap := g.Snapshot()

	// Shuffle serialized order; Seq stays authoritative.
	snap.Nodes[0], snap.Nodes[2] = snap.Nodes[2], snap.Nodes[0]

	restored, err := Restore(snap, nil)
	require.NoError(t, err)

	nodes := restored.NodesForFeature("f1")
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID.UUID)
	assert.Equal(t, "b", nodes[1].ID.UUID)
}

func TestRestore_Rejections(t *testing.T) {
	base := buildTestGraph(t).Snapshot()

	t.Run("wrong version", func(t *testing.T) {
		snap := base
		snap.Version = 99
		_, err := Restore(snap, nil)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("empty uuid", func(t *testing.T) {
		snap := base
		snap.Nodes = append([]Node{}, base.Nodes...)
		snap.Nodes[0].ID.UUID = ""
		_, err := Restore(snap, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty uuid")
	})

	t.Run("unknown entity type", func(t *testing.T) {
		snap := base
		snap.Nodes = append([]Node{}, base.Nodes...)
		snap.Nodes[0].ID.Type = "solid"
		_, err := Restore(snap, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown entity type")
	})

	t.Run("non-positive seq", func(t *testing.T) {
		snap := base
		snap.Nodes = append([]Node{}, base.Nodes...)
		snap.Nodes[0].Seq = 0
		_, err := Restore(snap, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-positive seq")
	})

	t.Run("duplicate uuid", func(t *testing.T) {
		snap := base
		snap.Nodes = append([]Node{}, base.Nodes...)
		snap.Nodes[2] = snap.Nodes[0]
		snap.Nodes[2].Seq = 9
		_, err := Restore(snap, nil)
		assert.ErrorIs(t, err, ErrDuplicateNode)
	})
}

func TestRestore_EmptySnapshot(t *testing.T) {
	g, err := Restore(Snapshot{Version: SnapshotVersion}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Stats().Total())
}

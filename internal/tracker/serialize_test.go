package tracker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-cad/topotrack/internal/topo"
)

func buildPopulatedTracker(t *testing.T) *Tracker {
	t.Helper()
	tr := newTestTracker()
	ctx := context.Background()

	tr.BeginOperation("extrude")
	_, err := tr.UpdateAfterRegeneration(ctx, "box1", boxAnalysis(1))
	require.NoError(t, err)
	tr.EndOperation()

	// A second feature with a dead node.
	_, err = tr.UpdateAfterRegeneration(ctx, "bracket", topo.AnalysisResult{
		Faces: []topo.EntityRecord{
			{Index: 0, Signature: *faceSig(0)},
			{Index: 1, Signature: *faceSig(3)},
		},
	})
	require.NoError(t, err)
	_, err = tr.UpdateAfterRegeneration(ctx, "bracket", topo.AnalysisResult{
		Faces: []topo.EntityRecord{{Index: 0, Signature: *faceSig(0)}},
	})
	require.NoError(t, err)
	return tr
}

func TestSerializeRoundTrip(t *testing.T) {
	tr := buildPopulatedTracker(t)

	data, err := tr.Serialize()
	require.NoError(t, err)

	restored := New() // production id generator; restore never mints
	require.NoError(t, restored.Deserialize(data))

	assert.Equal(t, tr.Stats(), restored.Stats())
	assert.Equal(t, tr.Features(), restored.Features())
	assert.Equal(t, tr.OperationLog(), restored.OperationLog())

	// Every binding survives both directions.
	for _, featureID := range tr.Features() {
		for _, n := range tr.AliveNodesForFeature(featureID) {
			index, ok := tr.IndexForStableID(featureID, n.ID.Type, n.ID.UUID)
			require.True(t, ok)

			got, ok := restored.StableIDForIndex(featureID, n.ID.Type, index)
			require.True(t, ok)
			assert.Equal(t, n.ID.UUID, got.UUID)
		}
	}

	// Dead nodes survive with their reason.
	var deadUUID string
	for _, n := range tr.NodesForFeature("bracket") {
		if !n.ID.Alive {
			deadUUID = n.ID.UUID
		}
	}
	require.NotEmpty(t, deadUUID)
	dead, ok := restored.StableID(deadUUID)
	require.True(t, ok)
	assert.False(t, dead.Alive)
}

func TestSerialize_Deterministic(t *testing.T) {
	tr := buildPopulatedTracker(t)

	a, err := tr.Serialize()
	require.NoError(t, err)
	b, err := tr.Serialize()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerializeRoundTrip_ContinuesCorrectly(t *testing.T) {
	tr := buildPopulatedTracker(t)
	data, err := tr.Serialize()
	require.NoError(t, err)

	restored := newTestTracker()
	require.NoError(t, restored.Deserialize(data))

	// Reconciliation picks up where the original left off.
	outcome, err := restored.UpdateAfterRegeneration(context.Background(), "box1", boxAnalysis(1.2))
	require.NoError(t, err)
	assert.Equal(t, Outcome{Matched: 26, New: 0, Lost: 0}, outcome)

	// The operation counter continues rather than reissuing ids.
	opID := restored.BeginOperation("fillet")
	assert.Equal(t, "op-2", opID)
}

func TestDeserialize_Rejections(t *testing.T) {
	tr := buildPopulatedTracker(t)
	data, err := tr.Serialize()
	require.NoError(t, err)

	mutate := func(t *testing.T, fn func(doc *Document)) []byte {
		t.Helper()
		var doc Document
		require.NoError(t, json.Unmarshal(data, &doc))
		fn(&doc)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name    string
		payload []byte
		wantErr string
	}{
		{
			name:    "malformed json",
			payload: []byte("{not json"),
			wantErr: "parse document",
		},
		{
			name:    "wrong version",
			payload: mutate(t, func(doc *Document) { doc.Version = 99 }),
			wantErr: "unsupported document version",
		},
		{
			name: "mapping direction mismatch",
			payload: mutate(t, func(doc *Document) {
				doc.Mappings[0].Faces.IndexToUUID[0].Index++
			}),
			wantErr: "no matching reverse entry",
		},
		{
			name: "mapping to unknown uuid",
			payload: mutate(t, func(doc *Document) {
				doc.Mappings[0].Faces.IndexToUUID[0].UUID = "ghost"
				doc.Mappings[0].Faces.UUIDToIndex = []UUIDPair{{UUID: "ghost", Index: doc.Mappings[0].Faces.IndexToUUID[0].Index}}
				doc.Mappings[0].Faces.IndexToUUID = doc.Mappings[0].Faces.IndexToUUID[:1]
			}),
			wantErr: "not in graph",
		},
		{
			name: "mapping to dead node",
			payload: mutate(t, func(doc *Document) {
				uuid := doc.Mappings[0].Faces.IndexToUUID[0].UUID
				for i := range doc.Graph.Nodes {
					if doc.Graph.Nodes[i].ID.UUID == uuid {
						doc.Graph.Nodes[i].ID.Alive = false
					}
				}
			}),
			wantErr: "dead but mapped",
		},
		{
			name: "duplicate feature mapping",
			payload: mutate(t, func(doc *Document) {
				doc.Mappings = append(doc.Mappings, doc.Mappings[0])
			}),
			wantErr: "duplicate mapping",
		},
		{
			name: "corrupt graph",
			payload: mutate(t, func(doc *Document) {
				doc.Graph.Nodes[0].ID.Type = "solid"
			}),
			wantErr: "restore graph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh := buildPopulatedTracker(t)
			before, err := fresh.Serialize()
			require.NoError(t, err)

			err = fresh.Deserialize(tt.payload)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			// All-or-nothing: the failed restore left state untouched.
			after, err := fresh.Serialize()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestDecodeDocument(t *testing.T) {
	tr := buildPopulatedTracker(t)
	data, err := tr.Serialize()
	require.NoError(t, err)

	doc, err := DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Len(t, doc.Mappings, 2)
	assert.Equal(t, "box1", doc.Mappings[0].FeatureID)
	assert.Equal(t, "bracket", doc.Mappings[1].FeatureID)

	_, err = DecodeDocument([]byte(`{"version": 2}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSerialize_EmptyTracker(t *testing.T) {
	tr := newTestTracker()
	data, err := tr.Serialize()
	require.NoError(t, err)

	restored := newTestTracker()
	require.NoError(t, restored.Deserialize(data))
	assert.Equal(t, 0, restored.Stats().Total())
	assert.Empty(t, restored.Features())
}

func TestNowIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, now().Location())
}

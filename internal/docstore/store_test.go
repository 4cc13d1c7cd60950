package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-cad/topotrack/internal/topo"
	"github.com/tessellate-cad/topotrack/internal/tracker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "topo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// validPayload serializes a small real tracker so the payload passes
// schema validation.
func validPayload(t *testing.T, x float64) []byte {
	t.Helper()
	tr := tracker.New(tracker.WithIDGenerator(topo.NewSequenceGenerator()))
	_, err := tr.UpdateAfterRegeneration(context.Background(), "f1", topo.AnalysisResult{
		Faces: []topo.EntityRecord{{Index: 0, Signature: topo.Signature{
			Centroid:  [3]float64{x, 0, 0},
			Size:      1,
			Direction: [3]float64{0, 0, 1},
		}}},
	})
	require.NoError(t, err)

	data, err := tr.Serialize()
	require.NoError(t, err)
	return data
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	payload := validPayload(t, 0)

	rev, err := s.Save(ctx, "part-a", payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	got, rev, err := s.Load(ctx, "part-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
	assert.Equal(t, payload, got)
}

func TestStore_RevisionsAccumulate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := validPayload(t, 0)
	second := validPayload(t, 1)

	rev, err := s.Save(ctx, "part-a", first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	rev, err = s.Save(ctx, "part-a", second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	// Head is the newest payload.
	got, rev, err := s.Load(ctx, "part-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
	assert.Equal(t, second, got)

	// The previous revision stays loadable.
	old, err := s.LoadRevision(ctx, "part-a", 1)
	require.NoError(t, err)
	assert.Equal(t, first, old)

	history, err := s.History(ctx, "part-a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].Revision)
	assert.Equal(t, int64(2), history[1].Revision)
	assert.False(t, history[0].SavedAt.IsZero())
}

func TestStore_SaveRejectsInvalidDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "part-a", []byte(`{"version": 99}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to save")

	// Nothing was written.
	_, _, err = s.Load(ctx, "part-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRequiresName(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Save(context.Background(), "", validPayload(t, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestStore_LoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LoadRevision(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ChecksumMismatchDetected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "part-a", validPayload(t, 0))
	require.NoError(t, err)

	// Corrupt the stored payload behind the store's back.
	_, err = s.db.Exec(`UPDATE documents SET payload = '{"version":1}' WHERE name = 'part-a'`)
	require.NoError(t, err)

	_, _, err = s.Load(ctx, "part-a")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "zeta", validPayload(t, 0))
	require.NoError(t, err)
	_, err = s.Save(ctx, "alpha", validPayload(t, 1))
	require.NoError(t, err)

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "zeta", infos[1].Name)
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "part-a", validPayload(t, 0))
	require.NoError(t, err)
	_, err = s.Save(ctx, "part-a", validPayload(t, 1))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "part-a"))

	_, _, err = s.Load(ctx, "part-a")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := s.History(ctx, "part-a")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, s.Delete(ctx, "part-a"), ErrNotFound)
}

func TestStore_OpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topo.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "part-a", validPayload(t, 0))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening preserves data and reapplies schema without error.
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, rev, err := s2.Load(context.Background(), "part-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
	assert.NotEmpty(t, got)
}

func TestChecksum_Stable(t *testing.T) {
	a, err := Checksum([]byte("payload"))
	require.NoError(t, err)
	b, err := Checksum([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16) // 64-bit hash, hex encoded

	c, err := Checksum([]byte("payload!"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage/badger"
)

// brokenCheckpointStore fails every operation, simulating a dead database.
type brokenCheckpointStore struct{}

func (b *brokenCheckpointStore) SaveCheckpoint(ctx context.Context, cp *core.SyncCheckpoint) error {
	return errors.New("database unavailable")
}

func (b *brokenCheckpointStore) LoadCheckpoint(ctx context.Context) (*core.SyncCheckpoint, error) {
	return nil, errors.New("database unavailable")
}

func (b *brokenCheckpointStore) Close() error { return nil }

func testCheckpoint() *core.SyncCheckpoint {
	cp := core.NewSyncCheckpoint()
	cp.KnownItems["a.txt"] = core.ItemFingerprint{SourceID: "a.txt", Revision: "r1", Size: 5}
	return cp
}

func TestStateStore_PrimaryRoundTrip(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	state, err := NewStateStore(stores.Checkpoints, filepath.Join(t.TempDir(), "checkpoint.mus"))
	require.NoError(t, err)
	ctx := context.Background()

	// First run: empty checkpoint, no error.
	cp, err := state.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.IsEmpty())

	require.NoError(t, state.Save(ctx, testCheckpoint()))

	loaded, err := state.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, loaded.KnownItems, "a.txt")
}

func TestStateStore_DegradedFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.mus")
	state, err := NewStateStore(&brokenCheckpointStore{}, path)
	require.NoError(t, err)
	ctx := context.Background()

	// Save falls back to the file and reports success.
	require.NoError(t, state.Save(ctx, testCheckpoint()))

	// Load falls back to the same file; identical schema round-trips.
	loaded, err := state.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, testCheckpoint().KnownItems, loaded.KnownItems)
}

func TestStateStore_DegradedFirstRun(t *testing.T) {
	state, err := NewStateStore(&brokenCheckpointStore{}, filepath.Join(t.TempDir(), "checkpoint.mus"))
	require.NoError(t, err)

	// No fallback file yet: still an empty checkpoint, not an error.
	cp, err := state.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, cp.IsEmpty())
}

func TestStateStore_NoFallbackConfigured(t *testing.T) {
	state, err := NewStateStore(&brokenCheckpointStore{}, "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = state.Load(ctx)
	assert.ErrorIs(t, err, ErrCheckpointUnavailable)

	err = state.Save(ctx, testCheckpoint())
	assert.ErrorIs(t, err, ErrCheckpointUnavailable)
}

func TestStateStore_FresherFallbackWinsOverStaleDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.mus")
	ctx := context.Background()

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	// A healthy cycle saves to the durable store.
	state, err := NewStateStore(stores.Checkpoints, path)
	require.NoError(t, err)
	require.NoError(t, state.Save(ctx, testCheckpoint()))

	// A later degraded cycle could only reach the fallback file.
	later := testCheckpoint()
	later.KnownItems["b.txt"] = core.ItemFingerprint{SourceID: "b.txt", Revision: "r2", Size: 7}
	degraded, err := NewStateStore(&brokenCheckpointStore{}, path)
	require.NoError(t, err)
	require.NoError(t, degraded.Save(ctx, later))

	// The degraded save stamps a clone, not the caller's checkpoint.
	assert.True(t, later.UpdatedAt.IsZero())

	// Load must prefer the fresher fallback record over the stale
	// durable one.
	loaded, err := state.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, loaded.KnownItems, "b.txt")
}

func TestStateStore_FallbackFileSurvivesPrimaryReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.mus")

	degraded, err := NewStateStore(&brokenCheckpointStore{}, path)
	require.NoError(t, err)
	require.NoError(t, degraded.Save(context.Background(), testCheckpoint()))

	// A fresh, healthy but empty primary picks up the fallback file.
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	state, err := NewStateStore(stores.Checkpoints, path)
	require.NoError(t, err)

	loaded, err := state.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, loaded.KnownItems, "a.txt")
}

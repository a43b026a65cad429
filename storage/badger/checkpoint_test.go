package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/core"
)

func TestCheckpointStore_LoadEmpty(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	cp, err := stores.Checkpoints.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestCheckpointStore_SaveLoad(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	cp := core.NewSyncCheckpoint()
	cp.LastCheck = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cp.KnownItems["docs/a.txt"] = core.ItemFingerprint{
		SourceID: "docs/a.txt",
		Revision: "abc123",
		Size:     42,
	}

	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, cp))

	loaded, err := stores.Checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.LastCheck, loaded.LastCheck)
	assert.Equal(t, cp.KnownItems, loaded.KnownItems)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestCheckpointStore_SaveReplacesWholesale(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	first := core.NewSyncCheckpoint()
	first.KnownItems["a"] = core.ItemFingerprint{SourceID: "a", Revision: "r1", Size: 1}
	first.KnownItems["b"] = core.ItemFingerprint{SourceID: "b", Revision: "r1", Size: 2}
	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, first))

	second := core.NewSyncCheckpoint()
	second.KnownItems["c"] = core.ItemFingerprint{SourceID: "c", Revision: "r2", Size: 3}
	require.NoError(t, stores.Checkpoints.SaveCheckpoint(ctx, second))

	loaded, err := stores.Checkpoints.LoadCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.KnownItems, 1)
	assert.Contains(t, loaded.KnownItems, "c")
	assert.NotContains(t, loaded.KnownItems, "a")
}

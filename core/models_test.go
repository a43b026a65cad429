package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("hello"))
	h2 := ContentHash([]byte("hello"))
	h3 := ContentHash([]byte("hello!"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32) // 16 bytes hex encoded
}

func TestFingerprintEqual(t *testing.T) {
	fp := ItemFingerprint{SourceID: "a.txt", Revision: "r1", Size: 10}

	assert.True(t, fp.Equal(ItemFingerprint{SourceID: "a.txt", Revision: "r1", Size: 10}))
	assert.False(t, fp.Equal(ItemFingerprint{SourceID: "a.txt", Revision: "r2", Size: 10}))
	assert.False(t, fp.Equal(ItemFingerprint{SourceID: "a.txt", Revision: "r1", Size: 11}))
	assert.False(t, fp.Equal(ItemFingerprint{SourceID: "b.txt", Revision: "r1", Size: 10}))
}

func TestSyncCheckpointClone(t *testing.T) {
	original := NewSyncCheckpoint()
	original.LastCheck = time.Now().UTC()
	original.KnownItems["a.txt"] = ItemFingerprint{SourceID: "a.txt", Revision: "r1", Size: 5}

	clone := original.Clone()
	require.Equal(t, original.LastCheck, clone.LastCheck)
	require.Equal(t, original.KnownItems, clone.KnownItems)

	// Mutating the clone must not leak into the original.
	clone.KnownItems["b.txt"] = ItemFingerprint{SourceID: "b.txt", Revision: "r2", Size: 7}
	delete(clone.KnownItems, "a.txt")

	assert.Len(t, original.KnownItems, 1)
	assert.Contains(t, original.KnownItems, "a.txt")
}

func TestSyncCheckpointIsEmpty(t *testing.T) {
	cp := NewSyncCheckpoint()
	assert.True(t, cp.IsEmpty())

	cp.KnownItems["a.txt"] = ItemFingerprint{SourceID: "a.txt"}
	assert.False(t, cp.IsEmpty())

	cp2 := NewSyncCheckpoint()
	cp2.LastCheck = time.Now()
	assert.False(t, cp2.IsEmpty())
}

func TestChangeSetTotal(t *testing.T) {
	cs := &ChangeSet{
		Added:    []SourceItem{{ID: "a"}, {ID: "b"}},
		Modified: []SourceItem{{ID: "c"}},
		Removed:  []string{"d"},
	}
	assert.Equal(t, 4, cs.Total())

	empty := &ChangeSet{}
	assert.Equal(t, 0, empty.Total())
}

func TestTaskStatusString(t *testing.T) {
	assert.Equal(t, "pending", TaskPending.String())
	assert.Equal(t, "processing", TaskProcessing.String())
	assert.Equal(t, "completed", TaskCompleted.String())
	assert.Equal(t, "failed", TaskFailed.String())
	assert.Equal(t, "unknown", TaskStatus(0).String())
}

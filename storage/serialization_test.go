package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/core"
)

func TestCheckpointRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cp := &core.SyncCheckpoint{
		LastCheck: now,
		KnownItems: map[string]core.ItemFingerprint{
			"docs/a.txt": {SourceID: "docs/a.txt", Revision: "abc123", Size: 42},
			"docs/b.md":  {SourceID: "docs/b.md", Revision: "def456", Size: 1024},
		},
		UpdatedAt: now.Add(time.Second),
	}

	data := MarshalCheckpoint(cp)
	got, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)

	assert.True(t, cp.LastCheck.Equal(got.LastCheck))
	assert.True(t, cp.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, cp.KnownItems, got.KnownItems)
}

func TestCheckpointRoundTrip_Empty(t *testing.T) {
	cp := core.NewSyncCheckpoint()

	got, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
	require.NoError(t, err)

	assert.True(t, got.LastCheck.IsZero())
	assert.NotNil(t, got.KnownItems)
	assert.Empty(t, got.KnownItems)
}

func TestTaskRoundTrip_SentinelTimes(t *testing.T) {
	task := &core.QueueTask{
		Id:         7,
		DocumentID: "docs/meeting.txt",
		Status:     core.TaskPending,
		Attempts:   2,
		LastError:  "llm timeout",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		// NotBefore deliberately zero
	}

	got, err := UnmarshalTask(MarshalTask(task))
	require.NoError(t, err)

	assert.Equal(t, task.Id, got.Id)
	assert.Equal(t, task.DocumentID, got.DocumentID)
	assert.Equal(t, task.Status, got.Status)
	assert.Equal(t, task.Attempts, got.Attempts)
	assert.Equal(t, task.LastError, got.LastError)
	assert.True(t, got.NotBefore.IsZero(), "zero NotBefore must survive the round trip")
}

func TestChunkRoundTrip(t *testing.T) {
	chunk := &core.StoredChunk{
		SourceID: "docs/a.txt",
		Index:    3,
		Content:  "some chunk text",
		Vector:   []float32{0.25, -0.5, 1.0},
		Metadata: map[string]string{"mime": "text/plain", "name": "a.txt"},
	}

	got, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

func TestInsightRoundTrip(t *testing.T) {
	insight := &core.Insight{
		Id:               11,
		Type:             "decision",
		Title:            "Ship v2 next sprint",
		Description:      "Team agreed to ship after the migration completes.",
		Priority:         "high",
		Status:           "new",
		Confidence:       0.85,
		SourceDocumentID: "docs/meeting.txt",
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := UnmarshalInsight(MarshalInsight(insight))
	require.NoError(t, err)
	assert.Equal(t, insight.Title, got.Title)
	assert.Equal(t, insight.Confidence, got.Confidence)
	assert.Empty(t, got.ProjectID)
	assert.True(t, insight.CreatedAt.Equal(got.CreatedAt))
}

func TestUnmarshalCheckpoint_Truncated(t *testing.T) {
	cp := &core.SyncCheckpoint{
		LastCheck: time.Now().UTC(),
		KnownItems: map[string]core.ItemFingerprint{
			"a": {SourceID: "a", Revision: "r", Size: 1},
		},
	}
	data := MarshalCheckpoint(cp)

	_, err := UnmarshalCheckpoint(data[:len(data)/2])
	assert.Error(t, err)
}

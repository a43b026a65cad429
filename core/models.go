package core

import (
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities, allocated from database
// sequences.
type ID uint64

// ContentHash returns a compact hex BLAKE2b digest of content, used as the
// revision component of local file fingerprints.
func ContentHash(data []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	sum := h.Sum(nil)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}

// ItemFingerprint is a cheap comparable proxy for the identity of a source
// item's content. Revision holds a content hash for local files or the
// revision/version identifier reported by a remote drive.
type ItemFingerprint struct {
	SourceID string
	Revision string
	Size     int64
}

// Equal reports whether two fingerprints describe the same content.
func (f ItemFingerprint) Equal(other ItemFingerprint) bool {
	return f.SourceID == other.SourceID && f.Revision == other.Revision && f.Size == other.Size
}

// SyncCheckpoint is the durable record of what the watcher has already
// accounted for. KnownItems always reflects the state after the most
// recently completed cycle; it is replaced wholesale, never patched.
type SyncCheckpoint struct {
	LastCheck  time.Time
	KnownItems map[string]ItemFingerprint
	UpdatedAt  time.Time
}

// NewSyncCheckpoint returns an empty checkpoint for a first run.
func NewSyncCheckpoint() *SyncCheckpoint {
	return &SyncCheckpoint{
		KnownItems: make(map[string]ItemFingerprint),
	}
}

// Clone returns a deep copy, for callers that need to stamp or mutate a
// checkpoint without touching the original record.
func (c *SyncCheckpoint) Clone() *SyncCheckpoint {
	known := make(map[string]ItemFingerprint, len(c.KnownItems))
	for id, fp := range c.KnownItems {
		known[id] = fp
	}
	return &SyncCheckpoint{
		LastCheck:  c.LastCheck,
		KnownItems: known,
		UpdatedAt:  c.UpdatedAt,
	}
}

// IsEmpty reports whether this checkpoint predates any completed cycle.
func (c *SyncCheckpoint) IsEmpty() bool {
	return len(c.KnownItems) == 0 && c.LastCheck.IsZero()
}

// SourceItem is a document discovered by a source watcher.
type SourceItem struct {
	ID          string
	Name        string
	MimeType    string
	Fingerprint ItemFingerprint
}

// ChangeSet is the ephemeral result of one diff against a checkpoint.
// An item is modified if its fingerprint differs from the known one,
// removed if known but absent from the current listing.
type ChangeSet struct {
	Added    []SourceItem
	Modified []SourceItem
	Removed  []string
}

// Total returns the number of changes of any kind.
func (cs *ChangeSet) Total() int {
	return len(cs.Added) + len(cs.Modified) + len(cs.Removed)
}

// StoredChunk is one embedded slice of a source document. For a given
// SourceID, chunks form a contiguous 0-based sequence with no gaps;
// reprocessing replaces the whole set.
type StoredChunk struct {
	SourceID string
	Index    int
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// TaskStatus is the lifecycle state of a queued insights task.
type TaskStatus int

const (
	// TaskPending means the task is waiting to be claimed.
	TaskPending TaskStatus = iota + 1
	// TaskProcessing means a worker holds the task.
	TaskProcessing
	// TaskCompleted means insight generation finished.
	TaskCompleted
	// TaskFailed means the task exhausted its attempts.
	TaskFailed
)

// String returns the lowercase status name used in logs and the ops API.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskProcessing:
		return "processing"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// QueueTask is one unit of insights work. Attempts increments only on
// failure. NotBefore carries the backoff schedule between attempts so a
// restarted worker honors it.
type QueueTask struct {
	Id         ID
	DocumentID string
	Status     TaskStatus
	Attempts   int
	LastError  string
	NotBefore  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Insight is a structured record extracted from an ingested document.
// Produced only by the insights worker; never touched by the sync side.
type Insight struct {
	Id               ID
	Type             string
	Title            string
	Description      string
	Priority         string
	Status           string
	Confidence       float64
	SourceDocumentID string
	ProjectID        string // empty when the insight is not project-scoped
	CreatedAt        time.Time
}

// CycleStats aggregates the outcome of one sync cycle. It is always
// emitted, even on partial failure, so operators can tell "nothing
// changed" from "everything failed".
type CycleStats struct {
	Processed int
	Deleted   int
	Errors    int
	Duration  time.Duration
}

// QueueStats is a point-in-time summary of the insights queue.
type QueueStats struct {
	Pending          int
	Processing       int
	Completed        int
	Failed           int
	OldestPendingAge time.Duration
}

package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dynamous/ragpipe/core"
)

// Key prefixes for different data types
const (
	checkpointKey      = "sync:chkpt"
	chunkPrefix        = "chunk"
	taskPrefix         = "task"
	taskStatusPrefix   = "taskst"
	taskDocPrefix      = "taskdoc"
	taskIDSeq          = "taskseq"
	insightPrefix      = "insight"
	insightDatePrefix  = "insightd"
	insightDocPrefix   = "insightdoc"
	insightIDSeq       = "insightseq"
	keySeparator       = 0x00
)

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:sourceID<sep>index — index in BigEndian so chunks
// iterate in order within a source prefix.
func makeChunkKey(sourceID string, index int) []byte {
	prefix := makeChunkSourcePrefix(sourceID)
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(index))
	return buf
}

// makeChunkSourcePrefix generates the scan prefix for all chunks of a
// source. Source IDs may contain any byte except NUL (paths, drive IDs),
// so a NUL separator keeps prefixes unambiguous.
func makeChunkSourcePrefix(sourceID string) []byte {
	buf := make([]byte, 0, len(chunkPrefix)+1+len(sourceID)+1)
	buf = append(buf, chunkPrefix...)
	buf = append(buf, ':')
	buf = append(buf, sourceID...)
	buf = append(buf, keySeparator)
	return buf
}

// chunkSourceFromKey extracts the source ID from a chunk key.
func chunkSourceFromKey(key []byte) (string, bool) {
	start := len(chunkPrefix) + 1
	if len(key) < start+1+4 {
		return "", false
	}
	// Strip the 4-byte index and the NUL separator.
	end := len(key) - 5
	if key[end] != keySeparator {
		return "", false
	}
	return string(key[start:end]), true
}

// makeTaskKey generates a key for a queue task by ID.
func makeTaskKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", taskPrefix, id))
}

// makeTaskStatusKey generates a composite key for the status index.
// Format: prefix:status:createdAt:id — BigEndian timestamps so pending
// tasks iterate oldest first.
func makeTaskStatusKey(status core.TaskStatus, createdAt time.Time, id core.ID) []byte {
	prefix := makeTaskStatusPrefix(status)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeTaskStatusPrefix generates the scan prefix for one task status.
func makeTaskStatusPrefix(status core.TaskStatus) []byte {
	return []byte(fmt.Sprintf("%s:%d:", taskStatusPrefix, int(status)))
}

// makeTaskDocKey generates the document→task lookup key.
func makeTaskDocKey(documentID string) []byte {
	buf := make([]byte, 0, len(taskDocPrefix)+1+len(documentID))
	buf = append(buf, taskDocPrefix...)
	buf = append(buf, ':')
	buf = append(buf, documentID...)
	return buf
}

// makeInsightKey generates a key for an insight by ID.
func makeInsightKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", insightPrefix, id))
}

// makeInsightDateKey generates a composite key for the date index.
// Format: prefix:createdAt:id
func makeInsightDateKey(createdAt time.Time, id core.ID) []byte {
	prefix := insightDatePrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeInsightDocKey generates a composite key for the document index.
// Format: prefix:documentID<sep>id
func makeInsightDocKey(documentID string, id core.ID) []byte {
	prefix := makeInsightDocPrefix(documentID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeInsightDocPrefix generates the scan prefix for one document's insights.
func makeInsightDocPrefix(documentID string) []byte {
	buf := make([]byte, 0, len(insightDocPrefix)+1+len(documentID)+1)
	buf = append(buf, insightDocPrefix...)
	buf = append(buf, ':')
	buf = append(buf, documentID...)
	buf = append(buf, keySeparator)
	return buf
}

// marshalID encodes an ID for use as an index value.
func marshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// unmarshalID decodes an index value back to an ID.
func unmarshalID(data []byte) core.ID {
	if len(data) != 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(data))
}

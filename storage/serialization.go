// Copyright 2025 Dynamous Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/dynamous/ragpipe/core"
)

// Persisted values use the MUS format. Serializers are hand-written over
// mus-go primitives; timestamps are stored as Unix microseconds, with the
// zero time mapped to 0 so sentinel values (e.g. QueueTask.NotBefore)
// survive the round trip.

func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]float32, length)
	for i := 0; i < length; i++ {
		var m int
		v[i], m, err = raw.Float32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func sizeVector(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalStringMap(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	for k, v := range m {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v, bs[n:])
	}
	return n
}

func unmarshalStringMap(bs []byte) (m map[string]string, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	m = make(map[string]string, length)
	for i := 0; i < length; i++ {
		var k, v string
		var sz int
		k, sz, err = ord.String.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return nil, n, err
		}
		v, sz, err = ord.String.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

func sizeStringMap(m map[string]string) (size int) {
	size = varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	return size
}

// fingerprintSer serializes core.ItemFingerprint.
type fingerprintSer struct{}

func (fingerprintSer) Marshal(fp core.ItemFingerprint, bs []byte) (n int) {
	n = ord.String.Marshal(fp.SourceID, bs)
	n += ord.String.Marshal(fp.Revision, bs[n:])
	n += varint.Int64.Marshal(fp.Size, bs[n:])
	return n
}

func (fingerprintSer) Unmarshal(bs []byte) (fp core.ItemFingerprint, n int, err error) {
	var sz int
	fp.SourceID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return fp, n, err
	}
	fp.Revision, sz, err = ord.String.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return fp, n, err
	}
	fp.Size, sz, err = varint.Int64.Unmarshal(bs[n:])
	n += sz
	return fp, n, err
}

func (fingerprintSer) Size(fp core.ItemFingerprint) int {
	return ord.String.Size(fp.SourceID) + ord.String.Size(fp.Revision) + varint.Int64.Size(fp.Size)
}

// checkpointSer serializes core.SyncCheckpoint.
type checkpointSer struct{}

func (checkpointSer) Marshal(cp core.SyncCheckpoint, bs []byte) (n int) {
	n = marshalTime(cp.LastCheck, bs)
	n += varint.Int.Marshal(len(cp.KnownItems), bs[n:])
	for id, fp := range cp.KnownItems {
		n += ord.String.Marshal(id, bs[n:])
		n += FingerprintMUS.Marshal(fp, bs[n:])
	}
	n += marshalTime(cp.UpdatedAt, bs[n:])
	return n
}

func (checkpointSer) Unmarshal(bs []byte) (cp core.SyncCheckpoint, n int, err error) {
	var sz int
	cp.LastCheck, n, err = unmarshalTime(bs)
	if err != nil {
		return cp, n, err
	}
	var count int
	count, sz, err = varint.Int.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return cp, n, err
	}
	cp.KnownItems = make(map[string]core.ItemFingerprint, count)
	for i := 0; i < count; i++ {
		var id string
		var fp core.ItemFingerprint
		id, sz, err = ord.String.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return cp, n, err
		}
		fp, sz, err = FingerprintMUS.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return cp, n, err
		}
		cp.KnownItems[id] = fp
	}
	cp.UpdatedAt, sz, err = unmarshalTime(bs[n:])
	n += sz
	return cp, n, err
}

func (checkpointSer) Size(cp core.SyncCheckpoint) (size int) {
	size = sizeTime(cp.LastCheck)
	size += varint.Int.Size(len(cp.KnownItems))
	for id, fp := range cp.KnownItems {
		size += ord.String.Size(id)
		size += FingerprintMUS.Size(fp)
	}
	size += sizeTime(cp.UpdatedAt)
	return size
}

// chunkSer serializes core.StoredChunk.
type chunkSer struct{}

func (chunkSer) Marshal(c core.StoredChunk, bs []byte) (n int) {
	n = ord.String.Marshal(c.SourceID, bs)
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += marshalVector(c.Vector, bs[n:])
	n += marshalStringMap(c.Metadata, bs[n:])
	return n
}

func (chunkSer) Unmarshal(bs []byte) (c core.StoredChunk, n int, err error) {
	var sz int
	c.SourceID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return c, n, err
	}
	c.Index, sz, err = varint.Int.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return c, n, err
	}
	c.Content, sz, err = ord.String.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return c, n, err
	}
	c.Vector, sz, err = unmarshalVector(bs[n:])
	n += sz
	if err != nil {
		return c, n, err
	}
	c.Metadata, sz, err = unmarshalStringMap(bs[n:])
	n += sz
	return c, n, err
}

func (chunkSer) Size(c core.StoredChunk) int {
	return ord.String.Size(c.SourceID) + varint.Int.Size(c.Index) +
		ord.String.Size(c.Content) + sizeVector(c.Vector) + sizeStringMap(c.Metadata)
}

// taskSer serializes core.QueueTask.
type taskSer struct{}

func (taskSer) Marshal(t core.QueueTask, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(t.Id), bs)
	n += ord.String.Marshal(t.DocumentID, bs[n:])
	n += varint.Int.Marshal(int(t.Status), bs[n:])
	n += varint.Int.Marshal(t.Attempts, bs[n:])
	n += ord.String.Marshal(t.LastError, bs[n:])
	n += marshalTime(t.NotBefore, bs[n:])
	n += marshalTime(t.CreatedAt, bs[n:])
	n += marshalTime(t.UpdatedAt, bs[n:])
	return n
}

func (taskSer) Unmarshal(bs []byte) (t core.QueueTask, n int, err error) {
	var sz int
	var id uint64
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return t, n, err
	}
	t.Id = core.ID(id)
	t.DocumentID, sz, err = ord.String.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return t, n, err
	}
	var status int
	status, sz, err = varint.Int.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return t, n, err
	}
	t.Status = core.TaskStatus(status)
	t.Attempts, sz, err = varint.Int.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return t, n, err
	}
	t.LastError, sz, err = ord.String.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return t, n, err
	}
	t.NotBefore, sz, err = unmarshalTime(bs[n:])
	n += sz
	if err != nil {
		return t, n, err
	}
	t.CreatedAt, sz, err = unmarshalTime(bs[n:])
	n += sz
	if err != nil {
		return t, n, err
	}
	t.UpdatedAt, sz, err = unmarshalTime(bs[n:])
	n += sz
	return t, n, err
}

func (taskSer) Size(t core.QueueTask) int {
	return varint.Uint64.Size(uint64(t.Id)) + ord.String.Size(t.DocumentID) +
		varint.Int.Size(int(t.Status)) + varint.Int.Size(t.Attempts) +
		ord.String.Size(t.LastError) + sizeTime(t.NotBefore) +
		sizeTime(t.CreatedAt) + sizeTime(t.UpdatedAt)
}

// insightSer serializes core.Insight.
type insightSer struct{}

func (insightSer) Marshal(in core.Insight, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(in.Id), bs)
	n += ord.String.Marshal(in.Type, bs[n:])
	n += ord.String.Marshal(in.Title, bs[n:])
	n += ord.String.Marshal(in.Description, bs[n:])
	n += ord.String.Marshal(in.Priority, bs[n:])
	n += ord.String.Marshal(in.Status, bs[n:])
	n += raw.Float64.Marshal(in.Confidence, bs[n:])
	n += ord.String.Marshal(in.SourceDocumentID, bs[n:])
	n += ord.String.Marshal(in.ProjectID, bs[n:])
	n += marshalTime(in.CreatedAt, bs[n:])
	return n
}

func (insightSer) Unmarshal(bs []byte) (in core.Insight, n int, err error) {
	var sz int
	var id uint64
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return in, n, err
	}
	in.Id = core.ID(id)
	for _, field := range []*string{
		&in.Type, &in.Title, &in.Description, &in.Priority, &in.Status,
	} {
		*field, sz, err = ord.String.Unmarshal(bs[n:])
		n += sz
		if err != nil {
			return in, n, err
		}
	}
	in.Confidence, sz, err = raw.Float64.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return in, n, err
	}
	in.SourceDocumentID, sz, err = ord.String.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return in, n, err
	}
	in.ProjectID, sz, err = ord.String.Unmarshal(bs[n:])
	n += sz
	if err != nil {
		return in, n, err
	}
	in.CreatedAt, sz, err = unmarshalTime(bs[n:])
	n += sz
	return in, n, err
}

func (insightSer) Size(in core.Insight) int {
	return varint.Uint64.Size(uint64(in.Id)) + ord.String.Size(in.Type) +
		ord.String.Size(in.Title) + ord.String.Size(in.Description) +
		ord.String.Size(in.Priority) + ord.String.Size(in.Status) +
		raw.Float64.Size(in.Confidence) + ord.String.Size(in.SourceDocumentID) +
		ord.String.Size(in.ProjectID) + sizeTime(in.CreatedAt)
}

// Serializer instances for persisted types.
var (
	FingerprintMUS fingerprintSer
	CheckpointMUS  checkpointSer
	ChunkMUS       chunkSer
	TaskMUS        taskSer
	InsightMUS     insightSer
)

// MarshalCheckpoint serializes a SyncCheckpoint to bytes.
func MarshalCheckpoint(checkpoint *core.SyncCheckpoint) []byte {
	buf := make([]byte, CheckpointMUS.Size(*checkpoint))
	CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a SyncCheckpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.SyncCheckpoint, error) {
	checkpoint, _, err := CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if checkpoint.KnownItems == nil {
		checkpoint.KnownItems = make(map[string]core.ItemFingerprint)
	}
	return &checkpoint, nil
}

// MarshalChunk serializes a StoredChunk to bytes.
func MarshalChunk(chunk *core.StoredChunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a StoredChunk from bytes.
func UnmarshalChunk(data []byte) (*core.StoredChunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// MarshalTask serializes a QueueTask to bytes.
func MarshalTask(task *core.QueueTask) []byte {
	buf := make([]byte, TaskMUS.Size(*task))
	TaskMUS.Marshal(*task, buf)
	return buf
}

// UnmarshalTask deserializes a QueueTask from bytes.
func UnmarshalTask(data []byte) (*core.QueueTask, error) {
	task, _, err := TaskMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// MarshalInsight serializes an Insight to bytes.
func MarshalInsight(insight *core.Insight) []byte {
	buf := make([]byte, InsightMUS.Size(*insight))
	InsightMUS.Marshal(*insight, buf)
	return buf
}

// UnmarshalInsight deserializes an Insight from bytes.
func UnmarshalInsight(data []byte) (*core.Insight, error) {
	insight, _, err := InsightMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &insight, nil
}

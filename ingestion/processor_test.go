package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/ai/mock"
	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
	"github.com/dynamous/ragpipe/storage/badger"
)

// fakeFetcher serves scripted content by item ID.
type fakeFetcher struct {
	content map[string][]byte
	fail    map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, item core.SourceItem) ([]byte, error) {
	if err, ok := f.fail[item.ID]; ok {
		return nil, err
	}
	content, ok := f.content[item.ID]
	if !ok {
		return nil, fmt.Errorf("unknown item %s", item.ID)
	}
	return content, nil
}

func textItem(id, content string) (core.SourceItem, []byte) {
	return core.SourceItem{
		ID:       id,
		Name:     id,
		MimeType: "text/plain",
		Fingerprint: core.ItemFingerprint{
			SourceID: id,
			Revision: core.ContentHash([]byte(content)),
			Size:     int64(len(content)),
		},
	}, []byte(content)
}

func newTestProcessor(t *testing.T, fetcher *fakeFetcher) (*Processor, *badger.Stores) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	proc, err := NewProcessor(fetcher, stores.Chunks, stores.Queue, mock.NewMockEmbedder(),
		WithChunking(100, 20),
		WithEmbedRetry(3, time.Millisecond))
	require.NoError(t, err)
	return proc, stores
}

func TestNewProcessor_Validation(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	fetcher := &fakeFetcher{}
	embedder := mock.NewMockEmbedder()

	_, err = NewProcessor(nil, stores.Chunks, stores.Queue, embedder)
	assert.ErrorIs(t, err, ErrFetcherRequired)

	_, err = NewProcessor(fetcher, nil, stores.Queue, embedder)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewProcessor(fetcher, stores.Chunks, nil, embedder)
	assert.ErrorIs(t, err, ErrQueueRequired)

	_, err = NewProcessor(fetcher, stores.Chunks, stores.Queue, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestProcessor_ProcessStoresChunksAndEnqueues(t *testing.T) {
	item, content := textItem("docs/a.txt", "The quick brown fox jumps over the lazy dog. Again and again, for good measure, with more words so the splitter has something to do.")
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: content}}
	proc, stores := newTestProcessor(t, fetcher)
	ctx := context.Background()

	count, err := proc.Process(ctx, item)
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	chunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, chunks, count)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Content)
		assert.NotEmpty(t, chunk.Vector)
		assert.Equal(t, item.Name, chunk.Metadata["name"])
	}

	task, err := stores.Queue.GetTaskByDocument(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskPending, task.Status)
}

func TestProcessor_ReprocessIsIdempotent(t *testing.T) {
	item, content := textItem("docs/a.txt", "Stable content that does not change between cycles but is long enough to produce several chunks when split with a small chunk size setting.")
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: content}}
	proc, stores := newTestProcessor(t, fetcher)
	ctx := context.Background()

	first, err := proc.Process(ctx, item)
	require.NoError(t, err)
	firstChunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)

	second, err := proc.Process(ctx, item)
	require.NoError(t, err)
	secondChunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, secondChunks, len(firstChunks))
	for i := range firstChunks {
		assert.Equal(t, firstChunks[i].Content, secondChunks[i].Content)
		assert.Equal(t, firstChunks[i].Index, secondChunks[i].Index)
	}

	// Still exactly one queue task for the document.
	stats, err := stores.Queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}

func TestProcessor_UnsupportedFormat(t *testing.T) {
	item := core.SourceItem{
		ID:       "docs/image.png",
		Name:     "image.png",
		MimeType: "image/png",
		Fingerprint: core.ItemFingerprint{
			SourceID: "docs/image.png",
			Revision: "r1",
			Size:     4,
		},
	}
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: {1, 2, 3, 4}}}
	proc, stores := newTestProcessor(t, fetcher)
	ctx := context.Background()

	_, err := proc.Process(ctx, item)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// Nothing stored, nothing enqueued.
	chunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	_, err = stores.Queue.GetTaskByDocument(ctx, item.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessor_HTMLConversion(t *testing.T) {
	html := "<html><body><h1>Release plan</h1><p>Ship the beta in June.</p></body></html>"
	item := core.SourceItem{
		ID:       "docs/plan.html",
		Name:     "plan.html",
		MimeType: "text/html",
		Fingerprint: core.ItemFingerprint{
			SourceID: "docs/plan.html",
			Revision: core.ContentHash([]byte(html)),
			Size:     int64(len(html)),
		},
	}
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: []byte(html)}}
	proc, stores := newTestProcessor(t, fetcher)
	ctx := context.Background()

	count, err := proc.Process(ctx, item)
	require.NoError(t, err)
	require.Greater(t, count, 0)

	chunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)
	assert.Contains(t, chunks[0].Content, "Release plan")
	assert.NotContains(t, chunks[0].Content, "<h1>")
}

func TestProcessor_EmptyDocumentClearsChunks(t *testing.T) {
	item, content := textItem("docs/a.txt", "some initial content for the first pass of processing")
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: content}}
	proc, stores := newTestProcessor(t, fetcher)
	ctx := context.Background()

	_, err := proc.Process(ctx, item)
	require.NoError(t, err)

	fetcher.content[item.ID] = []byte("   \n  ")
	count, err := proc.Process(ctx, item)
	require.NoError(t, err)
	assert.Zero(t, count)

	chunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcessor_EmbedFailureRetriesThenFails(t *testing.T) {
	item, content := textItem("docs/a.txt", "content to embed")
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: content}}

	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := mock.NewMockEmbedder()
	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		return nil, errors.New("embedding service down")
	}

	proc, err := NewProcessor(fetcher, stores.Chunks, stores.Queue, embedder,
		WithEmbedRetry(3, time.Millisecond))
	require.NoError(t, err)

	_, err = proc.Process(context.Background(), item)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessor_Remove(t *testing.T) {
	item, content := textItem("docs/a.txt", "content that will be removed later on")
	fetcher := &fakeFetcher{content: map[string][]byte{item.ID: content}}
	proc, stores := newTestProcessor(t, fetcher)
	ctx := context.Background()

	_, err := proc.Process(ctx, item)
	require.NoError(t, err)

	require.NoError(t, proc.Remove(ctx, item.ID))

	chunks, err := stores.Chunks.GetChunks(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// Removing an unknown document is not an error.
	assert.NoError(t, proc.Remove(ctx, "docs/never-existed.txt"))
}

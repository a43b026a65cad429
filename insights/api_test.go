package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage/badger"
)

func newTestAPI(t *testing.T) (*API, *Queue, *badger.Stores) {
	t.Helper()
	queue, stores := newTestQueue(t)
	api, err := NewAPI(queue, stores.Insights)
	require.NoError(t, err)
	return api, queue, stores
}

func doRequest(t *testing.T, handler http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	body := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestAPI_Health(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec, body := doRequest(t, api.Router(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_QueueStats(t *testing.T) {
	api, queue, _ := newTestAPI(t)
	ctx := context.Background()

	_, _, err := queue.Enqueue(ctx, "docs/a.txt")
	require.NoError(t, err)
	_, _, err = queue.Enqueue(ctx, "docs/b.txt")
	require.NoError(t, err)
	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Complete(ctx, claimed.Id))

	rec, body := doRequest(t, api.Router(), http.MethodGet, "/queue/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["pending"])
	assert.EqualValues(t, 0, body["processing"])
	assert.EqualValues(t, 1, body["completed"])
	assert.EqualValues(t, 0, body["failed"])
	assert.Contains(t, body, "oldest_pending_seconds")
}

func TestAPI_Retroactive(t *testing.T) {
	api, _, stores := newTestAPI(t)

	storeChunks(t, stores, "docs/old.txt")
	storeChunks(t, stores, "docs/older.txt")

	rec, body := doRequest(t, api.Router(), http.MethodPost, "/queue/retroactive")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["enqueued"])

	// Second call is a no-op; the tasks already exist.
	rec, body = doRequest(t, api.Router(), http.MethodPost, "/queue/retroactive")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["enqueued"])
}

func TestAPI_ResetFailed(t *testing.T) {
	api, queue, _ := newTestAPI(t)
	ctx := context.Background()

	queue.maxAttempts = 1
	_, _, err := queue.Enqueue(ctx, "docs/broken.txt")
	require.NoError(t, err)
	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.Fail(ctx, claimed, assert.AnError))

	rec, body := doRequest(t, api.Router(), http.MethodPost, "/queue/reset-failed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["reset"])
}

func TestAPI_RecentInsights(t *testing.T) {
	api, _, stores := newTestAPI(t)
	ctx := context.Background()

	_, err := stores.Insights.AddInsights(ctx,
		&core.Insight{
			Type:             "action_item",
			Title:            "Fix the uploader",
			Description:      "The uploader drops large files.",
			Priority:         "high",
			Status:           "new",
			Confidence:       0.9,
			SourceDocumentID: "docs/a.txt",
		},
		&core.Insight{
			Type:             "decision",
			Title:            "Ship weekly",
			Description:      "Releases move to a weekly cadence.",
			Priority:         "medium",
			Status:           "new",
			Confidence:       0.8,
			SourceDocumentID: "docs/b.txt",
		})
	require.NoError(t, err)

	rec, body := doRequest(t, api.Router(), http.MethodGet, "/insights/recent")
	assert.Equal(t, http.StatusOK, rec.Code)
	records, ok := body["insights"].([]any)
	require.True(t, ok)
	assert.Len(t, records, 2)

	rec, body = doRequest(t, api.Router(), http.MethodGet, "/insights/recent?limit=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	records, ok = body["insights"].([]any)
	require.True(t, ok)
	assert.Len(t, records, 1)

	rec, _ = doRequest(t, api.Router(), http.MethodGet, "/insights/recent?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, api.Router(), http.MethodGet, "/insights/recent?limit=-3")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/core"
)

func makeTestInsight(doc string, n int) *core.Insight {
	return &core.Insight{
		Type:             "action_item",
		Title:            fmt.Sprintf("insight %d", n),
		Description:      "follow up on the migration plan",
		Priority:         "high",
		Status:           "new",
		Confidence:       0.9,
		SourceDocumentID: doc,
	}
}

func TestInsightRepository_AddAndGetByDocument(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	stored, err := stores.Insights.AddInsights(ctx,
		makeTestInsight("docs/a.txt", 1),
		makeTestInsight("docs/a.txt", 2),
		makeTestInsight("docs/b.txt", 3),
	)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, insight := range stored {
		assert.NotZero(t, insight.Id)
		assert.False(t, insight.CreatedAt.IsZero())
	}

	forA, err := stores.Insights.GetInsightsByDocument(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	forB, err := stores.Insights.GetInsightsByDocument(ctx, "docs/b.txt")
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, "insight 3", forB[0].Title)

	none, err := stores.Insights.GetInsightsByDocument(ctx, "docs/unknown.txt")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInsightRepository_AddValidates(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	insight := makeTestInsight("docs/a.txt", 1)
	insight.Title = ""
	_, err = stores.Insights.AddInsights(context.Background(), insight)
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
}

func TestInsightRepository_GetRecent(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	recent, err := stores.Insights.GetRecentInsights(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	// Explicit timestamps pin the expected ordering.
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		insight := makeTestInsight("docs/a.txt", i)
		insight.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := stores.Insights.AddInsights(ctx, insight)
		require.NoError(t, err)
	}

	recent, err = stores.Insights.GetRecentInsights(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "insight 5", recent[0].Title)
	assert.Equal(t, "insight 4", recent[1].Title)
	assert.Equal(t, "insight 3", recent[2].Title)

	recent, err = stores.Insights.GetRecentInsights(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}

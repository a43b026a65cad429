package mock

import (
	"context"
	"strings"

	"github.com/dynamous/ragpipe/ai"
)

// MockInsightGenerator is a test double for ai.InsightGenerator.
// It allows custom behavior injection via function fields.
type MockInsightGenerator struct {
	// GenerateInsightsFunc is called by GenerateInsights if set.
	// If nil, uses default line-based extraction.
	GenerateInsightsFunc func(ctx context.Context, title, content string) ([]ai.GeneratedInsight, error)

	callCount int
}

// NewMockInsightGenerator creates a mock generator with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockInsightGenerator() *MockInsightGenerator {
	return &MockInsightGenerator{}
}

// GenerateInsights extracts simple mock insights from content.
// Default behavior: each line starting with "TODO" or "DECISION" becomes
// one insight, so tests can script outcomes via document content.
func (m *MockInsightGenerator) GenerateInsights(ctx context.Context, title, content string) ([]ai.GeneratedInsight, error) {
	m.callCount++

	if m.GenerateInsightsFunc != nil {
		return m.GenerateInsightsFunc(ctx, title, content)
	}

	insights := make([]ai.GeneratedInsight, 0)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "TODO"):
			insights = append(insights, ai.GeneratedInsight{
				Type:        "action_item",
				Title:       strings.TrimSpace(strings.TrimPrefix(line, "TODO:")),
				Description: line,
				Priority:    "medium",
				Confidence:  0.9,
			})
		case strings.HasPrefix(line, "DECISION"):
			insights = append(insights, ai.GeneratedInsight{
				Type:        "decision",
				Title:       strings.TrimSpace(strings.TrimPrefix(line, "DECISION:")),
				Description: line,
				Priority:    "high",
				Confidence:  0.95,
			})
		}
	}
	return insights, nil
}

// CallCount returns the number of times GenerateInsights was called.
func (m *MockInsightGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockInsightGenerator) Reset() {
	m.callCount = 0
	m.GenerateInsightsFunc = nil
}

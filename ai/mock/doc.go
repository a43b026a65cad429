// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder,
// ai.InsightGenerator, and ai.AIProvider for use in unit tests. The mocks
// allow tests to run without external AI service dependencies and enable
// controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockGen := mock.NewMockInsightGenerator()
//	mockGen.GenerateInsightsFunc = func(ctx context.Context, title, content string) ([]ai.GeneratedInsight, error) {
//	    return nil, errors.New("llm unavailable")
//	}
//
//	// Check call counts
//	count := mockGen.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockInsightGenerator: Turns TODO/DECISION lines into insights
//   - MockProvider: Aggregates mock embedder and generator
package mock

package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// InsightGenerator extracts structured insights from document text.
// Implementations must be thread-safe for concurrent use.
type InsightGenerator interface {
	// GenerateInsights analyzes a document and extracts actionable insights
	// with their types, priorities and confidence scores.
	// Returns an empty slice if the document yields no insights.
	// Returns an error if insight generation fails.
	GenerateInsights(ctx context.Context, title, content string) ([]GeneratedInsight, error)
}

// GeneratedInsight is one structured finding extracted from a document.
type GeneratedInsight struct {
	// Type categorizes the insight (e.g., "action_item", "risk").
	// Must match one of the predefined insight types.
	Type string

	// Title is a short human-readable summary, one line.
	Title string

	// Description expands the title with the relevant context from the
	// document.
	Description string

	// Priority is the urgency bucket: "critical", "high", "medium" or "low".
	Priority string

	// Confidence is the model's certainty in this insight, 0.0 to 1.0.
	// Generators filter out insights below their configured minimum.
	Confidence float64
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and InsightGenerator instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// InsightGenerator returns the insight generation service.
	// The returned InsightGenerator is safe for concurrent use.
	InsightGenerator() InsightGenerator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

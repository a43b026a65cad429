package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynamous/ragpipe/ai"
)

func TestNewProvider(t *testing.T) {
	t.Run("wires embedder and generator from one config", func(t *testing.T) {
		provider, err := NewProvider(ai.NewConfig())
		require.NoError(t, err)

		assert.NotNil(t, provider.Embedder())
		assert.NotNil(t, provider.InsightGenerator())
		assert.NoError(t, provider.Close())
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := NewProvider(ai.NewConfig(ai.WithMinConfidence(1.5)))
		require.Error(t, err)
	})

	t.Run("rejects missing models", func(t *testing.T) {
		_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModel("")))
		require.Error(t, err)
	})
}

func TestStandaloneConstructors(t *testing.T) {
	cfg := ai.NewConfig()

	embedder, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.NotNil(t, embedder)

	generator, err := NewInsightGenerator(cfg)
	require.NoError(t, err)
	assert.NotNil(t, generator)
}

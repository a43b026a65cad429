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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/dynamous/ragpipe/ai"
	"github.com/dynamous/ragpipe/core"
	"github.com/dynamous/ragpipe/storage"
	"github.com/dynamous/ragpipe/watcher"
)

const (
	defaultChunkSize       = 1500
	defaultChunkOverlap    = 200
	defaultEmbedAttempts   = 3
	defaultEmbedRetryDelay = 2 * time.Second
)

// Processor turns one source document into stored, embedded chunks and an
// insights task. Processing is idempotent: reprocessing unchanged content
// replaces the chunk set with an identical one and leaves any live insights
// task alone.
type Processor struct {
	fetcher   watcher.ContentFetcher
	chunks    storage.ChunkRepository
	queue     storage.QueueRepository
	embedder  ai.Embedder
	splitter  textsplitter.TextSplitter
	converter *textConverter
	logger    *slog.Logger

	embedAttempts   int
	embedRetryDelay time.Duration
}

// ProcessorOption is a functional option for configuring a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithChunking sets the splitter chunk size and overlap in characters.
func WithChunking(size, overlap int) ProcessorOption {
	return func(p *Processor) {
		p.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		)
	}
}

// WithEmbedRetry sets the retry policy for embedding calls.
func WithEmbedRetry(attempts int, baseDelay time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.embedAttempts = attempts
		p.embedRetryDelay = baseDelay
	}
}

// NewProcessor creates a document processor.
func NewProcessor(fetcher watcher.ContentFetcher, chunks storage.ChunkRepository, queue storage.QueueRepository, embedder ai.Embedder, opts ...ProcessorOption) (*Processor, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Processor{
		fetcher:  fetcher,
		chunks:   chunks,
		queue:    queue,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(defaultChunkSize),
			textsplitter.WithChunkOverlap(defaultChunkOverlap),
		),
		converter:       newTextConverter(),
		logger:          slog.Default().With("component", "processor"),
		embedAttempts:   defaultEmbedAttempts,
		embedRetryDelay: defaultEmbedRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process ingests one document: fetch, convert, chunk, embed, replace the
// stored chunk set and enqueue an insights task. Returns the number of
// chunks stored.
func (p *Processor) Process(ctx context.Context, item core.SourceItem) (int, error) {
	if err := core.ValidateSourceItem(&item); err != nil {
		return 0, err
	}

	content, err := p.fetcher.Fetch(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", item.ID, err)
	}

	text, err := p.converter.toText(item.MimeType, content)
	if err != nil {
		return 0, err
	}

	if strings.TrimSpace(text) == "" {
		// A document that converted to nothing has nothing to index or
		// analyze; drop any chunks from a previous non-empty version.
		p.logger.Debug("document is empty after conversion", "item", item.ID)
		if _, err := p.chunks.DeleteChunks(ctx, item.ID); err != nil {
			return 0, err
		}
		return 0, nil
	}

	parts, err := p.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("split %s: %w", item.ID, err)
	}

	vectors, err := p.embedParts(ctx, parts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", item.ID, err)
	}
	if len(vectors) != len(parts) {
		return 0, fmt.Errorf("embed %s: expected %d vectors, received %d", item.ID, len(parts), len(vectors))
	}

	chunks := make([]*core.StoredChunk, len(parts))
	for i, part := range parts {
		chunks[i] = &core.StoredChunk{
			SourceID: item.ID,
			Index:    i,
			Content:  part,
			Vector:   vectors[i],
			Metadata: map[string]string{
				"name":     item.Name,
				"mime":     item.MimeType,
				"revision": item.Fingerprint.Revision,
			},
		}
	}

	if err := p.chunks.ReplaceChunks(ctx, item.ID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", item.ID, err)
	}

	if _, _, err := p.queue.Enqueue(ctx, item.ID); err != nil {
		return 0, fmt.Errorf("enqueue insights task for %s: %w", item.ID, err)
	}

	p.logger.Info("document processed", "item", item.ID, "chunks", len(chunks))
	return len(chunks), nil
}

// Remove deletes the stored chunks of a document that disappeared from
// the source.
func (p *Processor) Remove(ctx context.Context, sourceID string) error {
	deleted, err := p.chunks.DeleteChunks(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("delete chunks for %s: %w", sourceID, err)
	}
	p.logger.Info("document removed", "item", sourceID, "chunks", deleted)
	return nil
}

// embedParts generates embeddings with retry; embedding services are the
// flakiest dependency in the pipeline.
func (p *Processor) embedParts(ctx context.Context, parts []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedTexts(ctx, parts)
		return embedErr
	}, p.embedAttempts, p.embedRetryDelay)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

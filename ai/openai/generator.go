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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dynamous/ragpipe/ai"
)

// InsightGenerator implements ai.InsightGenerator using OpenAI-compatible chat APIs.
type InsightGenerator struct {
	client        llms.Model
	minConfidence float64
	logger        *slog.Logger
}

// insight is an internal type used for JSON unmarshaling.
// It matches the structure expected from the LLM.
type insight struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Confidence  float64 `json:"confidence"`
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	Insights []insight `json:"insights"`
}

// newInsightGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newInsightGenerator(config *ai.Config) (*InsightGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't
	// require authentication.
	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken("none"),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &InsightGenerator{
		client:        client,
		minConfidence: config.MinConfidence,
		logger:        slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewInsightGenerator creates a new insight generator using the provided configuration.
//
// Returns ai.InsightGenerator interface to enforce abstraction.
func NewInsightGenerator(config *ai.Config) (ai.InsightGenerator, error) {
	return newInsightGenerator(config)
}

// GenerateInsights extracts structured insights from a document using an LLM.
// It applies confidence filtering and returns only insights above the minimum
// threshold, highest confidence first.
func (g *InsightGenerator) GenerateInsights(ctx context.Context, title, content string) ([]ai.GeneratedInsight, error) {
	content = truncateForPrompt(content)

	systemPrompt := buildSystemPrompt()
	userPrompt := fmt.Sprintf("Document: %s\n\n%s", title, content)
	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userPrompt),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result analysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := g.client.GenerateContent(ctx, messages, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			g.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			g.logger.Debug("no choices returned from model")
			return []ai.GeneratedInsight{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			g.logger.Warn("error parsing generator response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		g.logger.Error("failed to parse generator response after retries", "err", lastErr)
		return nil, lastErr
	}

	// Filter by confidence and normalize fields
	generated := make([]ai.GeneratedInsight, 0, len(result.Insights))
	for _, in := range result.Insights {
		if in.Confidence < g.minConfidence {
			continue
		}
		if in.Title == "" {
			continue
		}
		generated = append(generated, ai.GeneratedInsight{
			Type:        normalizeInsightType(in.Type),
			Title:       in.Title,
			Description: in.Description,
			Priority:    normalizePriority(in.Priority),
			Confidence:  in.Confidence,
		})
	}

	// Sort by confidence (descending)
	slices.SortFunc(generated, func(a, b ai.GeneratedInsight) int {
		if a.Confidence == b.Confidence {
			return 0
		}
		if a.Confidence < b.Confidence {
			return 1
		}
		return -1
	})

	g.logger.Debug("generated insights",
		"total", len(result.Insights),
		"filtered", len(generated))

	return generated, nil
}

// normalizeInsightType maps model output to a known insight type,
// defaulting to action_item for anything unrecognized.
func normalizeInsightType(t string) string {
	t = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), " ", "_")
	if ai.ValidInsightType(t) {
		return t
	}
	return "action_item"
}

// normalizePriority maps model output to a known priority, defaulting
// to medium for anything unrecognized.
func normalizePriority(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if ai.ValidPriority(p) {
		return p
	}
	return "medium"
}

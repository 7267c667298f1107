// Copyright 2025 Momentum Labs
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

package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/logger"
)

const expansionInstruction = `Rewrite the media library search phrase into diverse alternative phrasings
that could match the same assets: synonyms, broader and narrower terms,
visual descriptions. Return a JSON object: {"variants": ["..."]}.
Do not change the meaning of the search.`

var expansionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"variants": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"variants"},
}

// Expander produces up to K diverse variants of a search phrase via an
// auxiliary LLM call. Failures and deadline overruns degrade to the
// original phrase alone.
type Expander struct {
	llm      llms.Provider
	limit    int
	deadline time.Duration
	logger   *slog.Logger
}

func NewExpander(llm llms.Provider, limit int, deadline time.Duration) *Expander {
	if limit <= 0 {
		limit = 5
	}
	if deadline <= 0 {
		deadline = 3 * time.Second
	}
	return &Expander{llm: llm, limit: limit, deadline: deadline, logger: logger.GetLogger()}
}

// Expand returns the original query first, followed by up to limit-1
// distinct rewrites.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	queries := []string{query}
	if e.llm == nil || e.limit <= 1 {
		return queries
	}

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	messages := []llms.Message{
		{Role: "system", Content: expansionInstruction},
		{Role: "user", Content: query},
	}
	raw, err := e.llm.GenerateStructured(ctx, messages, &llms.StructuredOutputConfig{
		Format: "json",
		Schema: expansionSchema,
	})
	if err != nil {
		e.logger.Debug("query expansion degraded to original", "query", query, "error", err)
		return queries
	}

	var parsed struct {
		Variants []string `json:"variants"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		e.logger.Debug("query expansion output unparseable", "query", query, "error", err)
		return queries
	}

	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	for _, variant := range parsed.Variants {
		variant = strings.TrimSpace(variant)
		key := strings.ToLower(variant)
		if variant == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, variant)
		if len(queries) >= e.limit {
			break
		}
	}
	return queries
}

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
	"sort"
	"sync"

	"github.com/momentumhq/momentum-agent/pkg/observability"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/tenant"

	"go.opentelemetry.io/otel/attribute"
)

// Hit is one media search result with its score in [0,1] where the
// provider supplies one.
type Hit struct {
	Item  protocol.MediaLibraryItem `json:"item"`
	Score float64                   `json:"score"`
}

// SearchMedia runs the brand's configured search path. The vector path
// fans out expanded query variants in parallel and merges hits by best
// score; any failure, or a fallback-configured tenant, lands on the text
// matcher over the document DB.
func (m *Manager) SearchMedia(ctx context.Context, brandID, query string, k int) ([]Hit, error) {
	ctx, span := observability.GetTracer(observability.DefaultServiceName).Start(ctx, observability.SpanIndexOp)
	span.SetAttributes(
		attribute.String(observability.AttrBrandID, brandID),
	)
	defer span.End()

	if k <= 0 {
		k = 10
	}

	if m.SearchMethod(ctx, brandID) == tenant.SearchMethodVector {
		desc, err := m.Status(ctx, brandID)
		if err == nil && desc.State == IndexActive {
			hits, err := m.vectorSearch(ctx, brandID, query, k)
			if err == nil {
				return hits, nil
			}
			m.logger.Warn("vector search failed, using text fallback",
				"brand_id", brandID, "error", err)
		}
	}

	return m.fallbackSearch(ctx, brandID, query, k)
}

func (m *Manager) vectorSearch(ctx context.Context, brandID, query string, k int) ([]Hit, error) {
	collection := m.backingName(ctx, brandID)

	queries := []string{query}
	if m.expander != nil {
		queries = m.expander.Expand(ctx, query)
	}

	vectors, err := m.embedder.Embed(ctx, queries)
	if err != nil {
		return nil, err
	}

	type queryResult struct {
		hits map[string]float64
		err  error
	}

	results := make([]queryResult, len(vectors))
	var wg sync.WaitGroup
	for i, vec := range vectors {
		wg.Add(1)
		go func(i int, vec []float32) {
			defer wg.Done()
			hits, err := m.vectors.Search(ctx, collection, vec, k, nil)
			if err != nil {
				results[i] = queryResult{err: err}
				return
			}
			scores := make(map[string]float64, len(hits))
			for _, hit := range hits {
				scores[hit.ID] = float64(hit.Score)
			}
			results[i] = queryResult{hits: scores}
		}(i, vec)
	}
	wg.Wait()

	// Merge by best score across variants. The search succeeds if any
	// variant succeeded.
	best := make(map[string]float64)
	var lastErr error
	succeeded := false
	for _, res := range results {
		if res.err != nil {
			lastErr = res.err
			continue
		}
		succeeded = true
		for id, score := range res.hits {
			if score > best[id] {
				best[id] = score
			}
		}
	}
	if !succeeded {
		return nil, lastErr
	}

	hits := make([]Hit, 0, len(best))
	for id, score := range best {
		item, err := m.library.Get(ctx, brandID, id)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{Item: *item, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Manager) fallbackSearch(ctx context.Context, brandID, query string, k int) ([]Hit, error) {
	items, err := m.library.List(ctx, brandID)
	if err != nil {
		return nil, err
	}

	matches := FallbackSearch(items, query, DefaultFallbackConfig())
	hits := make([]Hit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, Hit{Item: match.Item, Score: match.Score})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

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
	"fmt"
	"strings"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/vector"
)

// ProgressFunc receives reindex progress in [0,100] with a short message.
type ProgressFunc func(progress int, message string)

// ReindexResult summarises a reindex run.
type ReindexResult struct {
	Total     int      `json:"total"`
	Indexed   int      `json:"indexed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
	Simulated bool     `json:"simulated,omitempty"`
}

// Reindex loads every library item for the brand and upserts them into
// the vector index in fixed-size batches. A failing batch records its
// item IDs and processing continues; the run fails only when every batch
// failed. Tenants on the fallback text index skip the upserts and merely
// report progress.
func (m *Manager) Reindex(ctx context.Context, brandID string, progress ProgressFunc) (ReindexResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	items, err := m.library.List(ctx, brandID)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("failed to load media library: %w", err)
	}

	total := len(items)
	if total == 0 {
		progress(100, "media library is empty")
		return ReindexResult{}, nil
	}

	simulate := m.SearchMethod(ctx, brandID) == SearchMethodFallback
	collection := m.backingName(ctx, brandID)

	result := ReindexResult{Total: total, Simulated: simulate}
	batchSize := m.cfg.ReindexBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	processed := 0
	succeededBatches := 0
	failedBatches := 0
	for start := 0; start < total; start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		batch := items[start:end]

		if simulate {
			processed += len(batch)
			result.Indexed += len(batch)
			succeededBatches++
			progress(processed*100/total, fmt.Sprintf("processed %d of %d items", processed, total))
			continue
		}

		if err := m.upsertBatch(ctx, collection, batch); err != nil {
			m.logger.Warn("reindex batch failed",
				"brand_id", brandID, "from", start, "to", end, "error", err)
			for _, item := range batch {
				result.FailedIDs = append(result.FailedIDs, item.MediaID)
			}
			failedBatches++
		} else {
			result.Indexed += len(batch)
			succeededBatches++
		}

		processed += len(batch)
		progress(processed*100/total, fmt.Sprintf("processed %d of %d items", processed, total))
	}

	if succeededBatches == 0 && failedBatches > 0 {
		return result, fmt.Errorf("all %d reindex batches failed for brand %s", failedBatches, brandID)
	}

	if !simulate {
		m.refreshDescriptor(ctx, brandID, collection)
	}
	return result, nil
}

func (m *Manager) upsertBatch(ctx context.Context, collection string, items []protocol.MediaLibraryItem) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = itemEmbeddingText(item)
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	docs := make([]vector.Doc, len(items))
	for i, item := range items {
		docs[i] = vector.Doc{
			ID:     item.MediaID,
			Vector: vectors[i],
			Metadata: map[string]any{
				"media_id":    item.MediaID,
				"brand_id":    item.BrandID,
				"kind":        string(item.Kind),
				"title":       item.Title,
				"storage_uri": item.StorageURI,
			},
		}
	}
	return m.vectors.Upsert(ctx, collection, docs)
}

// IndexItem upserts a single library item, used on registration when
// autoIndex is enabled. Fallback-configured tenants are a no-op.
func (m *Manager) IndexItem(ctx context.Context, item protocol.MediaLibraryItem) error {
	if m.SearchMethod(ctx, item.BrandID) == SearchMethodFallback {
		return nil
	}
	collection := m.backingName(ctx, item.BrandID)
	return m.upsertBatch(ctx, collection, []protocol.MediaLibraryItem{item})
}

// refreshDescriptor records the post-reindex document count.
func (m *Manager) refreshDescriptor(ctx context.Context, brandID, collection string) {
	desc, err := m.Status(ctx, brandID)
	if err != nil {
		return
	}
	if count, err := m.vectors.Count(ctx, collection); err == nil {
		desc.DocCount = count
	}
	desc.LastReindexedAt = time.Now()
	if err := m.saveDescriptor(ctx, desc); err != nil {
		m.logger.Warn("failed to update index descriptor", "brand_id", brandID, "error", err)
	}
}

// itemEmbeddingText concatenates the searchable fields for embedding.
func itemEmbeddingText(item protocol.MediaLibraryItem) string {
	parts := []string{item.Title, item.Description}
	parts = append(parts, item.Tags...)
	parts = append(parts, item.VisionDescription)
	parts = append(parts, item.VisionKeywords...)
	parts = append(parts, item.VisionCategories...)
	parts = append(parts, item.EnhancedSearchText)

	var nonEmpty []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

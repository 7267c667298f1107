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

package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/search"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

const visionEnrichmentInstruction = `Analyze this image for a searchable media library. Return a JSON object:
{"description": "<one detailed paragraph>",
 "keywords": ["..."],
 "categories": ["..."],
 "searchText": "<a dense search string combining everything notable>"}`

var visionEnrichmentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description": map[string]any{"type": "string"},
		"keywords":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"categories":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"searchText":  map[string]any{"type": "string"},
	},
	"required": []string{"description"},
}

// IndexMediaItemTool enriches a library item with vision analysis and
// upserts it into the brand's search index.
type IndexMediaItemTool struct {
	library *search.Library
	manager *search.Manager
	llm     llms.Provider
	fetcher *storage.Fetcher
}

func NewIndexMediaItemTool(library *search.Library, manager *search.Manager, llm llms.Provider, fetcher *storage.Fetcher) *IndexMediaItemTool {
	return &IndexMediaItemTool{library: library, manager: manager, llm: llm, fetcher: fetcher}
}

func (t *IndexMediaItemTool) Name() string { return "indexMediaItem" }

func (t *IndexMediaItemTool) Description() string {
	return "Analyze a media library item with vision and make it findable by semantic search."
}

func (t *IndexMediaItemTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "mediaId", Type: "string", Description: "The library item to index", Required: true},
	}
}

func (t *IndexMediaItemTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	mediaID := stringArg(args, "mediaId")

	item, err := t.library.Get(ctx, tc.BrandID, mediaID)
	if err != nil {
		return Errorf("media item %s not found: %v", mediaID, err), nil
	}

	if item.Kind == "image" {
		if err := t.enrich(ctx, item); err != nil {
			// Enrichment is best-effort; the item still gets indexed on
			// its title, description, and tags.
			return t.finish(ctx, item, "indexed without vision enrichment: "+err.Error())
		}
		if err := t.library.Update(ctx, item); err != nil {
			return Errorf("failed to save enriched item: %v", err), nil
		}
	}
	return t.finish(ctx, item, "indexed")
}

func (t *IndexMediaItemTool) finish(ctx context.Context, item *protocol.MediaLibraryItem, note string) (ToolResult, error) {
	if err := t.manager.IndexItem(ctx, *item); err != nil {
		return Errorf("failed to index media item: %v", err), nil
	}
	result := Success("Media item " + item.MediaID + " " + note + ".")
	result.Data = map[string]any{"mediaId": item.MediaID}
	return result, nil
}

func (t *IndexMediaItemTool) enrich(ctx context.Context, item *protocol.MediaLibraryItem) error {
	data, contentType, err := t.fetcher.Fetch(ctx, item.StorageURI)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "image/png"
	}

	message := llms.Message{
		Role:    "user",
		Content: visionEnrichmentInstruction,
		Parts: []llms.ContentPart{{
			Type:      llms.ContentPartTypeInline,
			MediaType: contentType,
			Data:      base64.StdEncoding.EncodeToString(data),
		}},
	}
	raw, err := t.llm.GenerateStructured(ctx, []llms.Message{message}, &llms.StructuredOutputConfig{
		Format: "json",
		Schema: visionEnrichmentSchema,
	})
	if err != nil {
		return err
	}

	var parsed struct {
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
		Categories  []string `json:"categories"`
		SearchText  string   `json:"searchText"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return err
	}

	item.VisionDescription = strings.TrimSpace(parsed.Description)
	item.VisionKeywords = parsed.Keywords
	item.VisionCategories = parsed.Categories
	item.EnhancedSearchText = strings.TrimSpace(parsed.SearchText)
	return nil
}

var _ Tool = (*IndexMediaItemTool)(nil)

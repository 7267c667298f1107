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
	"fmt"
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/search"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// SearchMediaLibraryTool runs semantic search over the brand's media
// library, falling back to text matching when no index is active.
type SearchMediaLibraryTool struct {
	manager *search.Manager
}

func NewSearchMediaLibraryTool(manager *search.Manager) *SearchMediaLibraryTool {
	return &SearchMediaLibraryTool{manager: manager}
}

func (t *SearchMediaLibraryTool) Name() string { return "searchMediaLibrary" }

func (t *SearchMediaLibraryTool) Description() string {
	return "Find assets in the brand's media library by meaning: describe what the asset shows or is called."
}

func (t *SearchMediaLibraryTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "query", Type: "string", Description: "What to look for", Required: true},
		{Name: "limit", Type: "integer", Description: "Maximum results (default 10)"},
	}
}

func (t *SearchMediaLibraryTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	query := stringArg(args, "query")
	limit := intArg(args, "limit", 10)

	hits, err := t.manager.SearchMedia(ctx, tc.BrandID, query, limit)
	if err != nil {
		return Errorf("media search failed: %v", err), nil
	}
	if len(hits) == 0 {
		return Success("No media library items matched: " + query), nil
	}

	var sb strings.Builder
	var imageURLs []string
	for i, hit := range hits {
		fmt.Fprintf(&sb, "%d. %s (%s, score %.2f)\n   %s\n",
			i+1, hit.Item.Title, hit.Item.Kind, hit.Score, hit.Item.StorageURI)
		if hit.Item.Kind == "image" {
			imageURLs = append(imageURLs, hit.Item.StorageURI)
		}
	}

	result := Success(sb.String())
	result.Message = fmt.Sprintf("Found %d matching items.", len(hits))
	result.ImageURLs = imageURLs
	result.Data = map[string]any{"hits": hits}
	return result, nil
}

var _ Tool = (*SearchMediaLibraryTool)(nil)

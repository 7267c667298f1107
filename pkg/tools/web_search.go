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
	"github.com/momentumhq/momentum-agent/pkg/tenant"
	"github.com/momentumhq/momentum-agent/pkg/websearch"
)

// WebSearchTool queries the web search provider.
type WebSearchTool struct {
	searcher websearch.Searcher
}

func NewWebSearchTool(searcher websearch.Searcher) *WebSearchTool {
	return &WebSearchTool{searcher: searcher}
}

func (t *WebSearchTool) Name() string { return "webSearch" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, URLs, and snippets."
}

func (t *WebSearchTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "query", Type: "string", Description: "The search query", Required: true},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	query := stringArg(args, "query")
	results, err := t.searcher.Search(ctx, query)
	if err != nil {
		return Errorf("web search failed: %v", err), nil
	}
	if len(results) == 0 {
		return Success("No results found for: " + query), nil
	}

	var sb strings.Builder
	for i, hit := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, hit.Title, hit.URL)
		if hit.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", hit.Snippet)
		}
	}

	result := Success(sb.String())
	result.Message = fmt.Sprintf("Found %d results.", len(results))
	result.Data = map[string]any{"results": results}
	return result, nil
}

var _ Tool = (*WebSearchTool)(nil)

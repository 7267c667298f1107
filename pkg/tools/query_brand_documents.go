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
	"sort"
	"strings"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/search"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// BrandDocument is an indexed text document in the brand's corpus,
// typically produced by the website crawler.
type BrandDocument struct {
	DocID     string    `json:"doc_id"`
	BrandID   string    `json:"brand_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func brandDocPath(brandID, docID string) string {
	return fmt.Sprintf("brands/%s/documents/%s", brandID, docID)
}

func brandDocPrefix(brandID string) string {
	return fmt.Sprintf("brands/%s/documents", brandID)
}

// QueryBrandDocumentsTool retrieves passages from the brand's document
// corpus by token overlap.
type QueryBrandDocumentsTool struct {
	docs storage.DocumentDB
}

func NewQueryBrandDocumentsTool(docs storage.DocumentDB) *QueryBrandDocumentsTool {
	return &QueryBrandDocumentsTool{docs: docs}
}

func (t *QueryBrandDocumentsTool) Name() string { return "queryBrandDocuments" }

func (t *QueryBrandDocumentsTool) Description() string {
	return "Search the brand's indexed documents (crawled pages, notes) for passages relevant to a question."
}

func (t *QueryBrandDocumentsTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "query", Type: "string", Description: "The question or topic", Required: true},
		{Name: "limit", Type: "integer", Description: "Maximum documents to return (default 3)"},
	}
}

func (t *QueryBrandDocumentsTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	query := stringArg(args, "query")
	limit := intArg(args, "limit", 3)

	paths, err := t.docs.List(ctx, brandDocPrefix(tc.BrandID))
	if err != nil {
		return Errorf("failed to list brand documents: %v", err), nil
	}

	queryTokens := search.Tokenize(query)
	type scored struct {
		doc   BrandDocument
		score float64
	}
	var matches []scored
	for _, path := range paths {
		var doc BrandDocument
		if err := t.docs.Get(ctx, path, &doc); err != nil {
			continue
		}
		score := tokenOverlap(queryTokens, search.Tokenize(doc.Title+" "+doc.Text))
		if score > 0 {
			matches = append(matches, scored{doc: doc, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if len(matches) == 0 {
		return Success("No brand documents matched: " + query), nil
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}

	var sb strings.Builder
	for i, match := range matches {
		fmt.Fprintf(&sb, "## %s\n%s\n", match.doc.Title, excerpt(match.doc.Text, 800))
		if match.doc.SourceURL != "" {
			fmt.Fprintf(&sb, "Source: %s\n", match.doc.SourceURL)
		}
		if i < len(matches)-1 {
			sb.WriteString("\n")
		}
	}

	result := Success(sb.String())
	result.Message = fmt.Sprintf("Found %d relevant documents.", len(matches))
	return result, nil
}

func tokenOverlap(query, doc []string) float64 {
	if len(query) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(doc))
	for _, token := range doc {
		docSet[search.Singularize(token)] = true
	}
	matched := 0
	for _, token := range query {
		if docSet[search.Singularize(token)] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func excerpt(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "…"
}

var _ Tool = (*QueryBrandDocumentsTool)(nil)

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
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/momentumhq/momentum-agent/pkg/httpclient"
	"github.com/momentumhq/momentum-agent/pkg/jobs"
	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]*>`)
	titleRe       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// CrawlWebsiteTool fetches a page, extracts its text, and stores it in
// the brand's document corpus for retrieval. The crawl is tracked as a
// job for callers that poll.
type CrawlWebsiteTool struct {
	docs       storage.DocumentDB
	tracker    *jobs.Tracker
	httpClient *httpclient.Client
}

func NewCrawlWebsiteTool(docs storage.DocumentDB, tracker *jobs.Tracker) *CrawlWebsiteTool {
	return &CrawlWebsiteTool{docs: docs, tracker: tracker, httpClient: httpclient.New()}
}

func (t *CrawlWebsiteTool) Name() string { return "crawlWebsite" }

func (t *CrawlWebsiteTool) Description() string {
	return "Fetch a web page, extract its text, and add it to the brand's document corpus so it becomes searchable."
}

func (t *CrawlWebsiteTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "url", Type: "string", Description: "The page URL to crawl", Required: true},
	}
}

func (t *CrawlWebsiteTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	pageURL := stringArg(args, "url")

	job, err := t.tracker.Create(ctx, "", jobs.KindCrawl)
	if err != nil {
		return Errorf("failed to create crawl job: %v", err), nil
	}

	title, text, err := t.fetchPage(ctx, pageURL)
	if err != nil {
		_ = t.tracker.Fail(ctx, job.JobID, err.Error())
		return Errorf("crawl failed: %v", err), nil
	}

	doc := BrandDocument{
		DocID:     uuid.NewString(),
		BrandID:   tc.BrandID,
		Title:     title,
		Text:      text,
		SourceURL: pageURL,
		CreatedAt: time.Now(),
	}
	if err := t.docs.Set(ctx, brandDocPath(tc.BrandID, doc.DocID), doc); err != nil {
		_ = t.tracker.Fail(ctx, job.JobID, err.Error())
		return Errorf("failed to store crawled page: %v", err), nil
	}
	_ = t.tracker.Complete(ctx, job.JobID, map[string]any{"docId": doc.DocID})

	result := Success(fmt.Sprintf("Crawled %q (%d characters) into the brand corpus.", title, len(text)))
	result.Data = map[string]any{"jobId": job.JobID, "docId": doc.DocID}
	return result, nil
}

func (t *CrawlWebsiteTool) fetchPage(ctx context.Context, pageURL string) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", err
	}

	html := string(body)
	if match := titleRe.FindStringSubmatch(html); match != nil {
		title = strings.TrimSpace(match[1])
	}
	if title == "" {
		title = pageURL
	}

	stripped := scriptStyleRe.ReplaceAllString(html, " ")
	stripped = tagRe.ReplaceAllString(stripped, " ")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(stripped, " "))
	return title, text, nil
}

var _ Tool = (*CrawlWebsiteTool)(nil)

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

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// AnalyzeImageTool describes an image with the vision-capable text
// model.
type AnalyzeImageTool struct {
	llm     llms.Provider
	fetcher *storage.Fetcher
}

func NewAnalyzeImageTool(llm llms.Provider, fetcher *storage.Fetcher) *AnalyzeImageTool {
	return &AnalyzeImageTool{llm: llm, fetcher: fetcher}
}

func (t *AnalyzeImageTool) Name() string { return "analyzeImage" }

func (t *AnalyzeImageTool) Description() string {
	return "Describe the contents of an image: subjects, style, colors, text, and composition."
}

func (t *AnalyzeImageTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "imageUrl", Type: "string", Description: "URL of the image to analyze", Required: true},
		{Name: "question", Type: "string", Description: "Optional specific question about the image"},
	}
}

func (t *AnalyzeImageTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	url := stringArg(args, "imageUrl")
	data, contentType, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return Errorf("failed to fetch image %s: %v", url, err), nil
	}
	if contentType == "" {
		contentType = "image/png"
	}

	question := stringArg(args, "question")
	if question == "" {
		question = "Describe this image in detail: subjects, style, colors, visible text, and composition."
	}

	llm := t.llm
	if tc.Settings.TextModel != "" {
		llm = llm.WithModel(tc.Settings.TextModel)
	}

	message := llms.Message{
		Role:    "user",
		Content: question,
		Parts: []llms.ContentPart{{
			Type:      llms.ContentPartTypeInline,
			MediaType: contentType,
			Data:      base64.StdEncoding.EncodeToString(data),
		}},
	}
	text, _, _, err := llm.Generate(ctx, []llms.Message{message}, nil)
	if err != nil {
		return Errorf("image analysis failed: %v", err), nil
	}
	return Success(text), nil
}

var _ Tool = (*AnalyzeImageTool)(nil)

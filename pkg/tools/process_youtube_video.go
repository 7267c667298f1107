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
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// ProcessYoutubeVideoTool summarises a YouTube video by passing its URL
// to the multimodal text model as a file part.
type ProcessYoutubeVideoTool struct {
	llm llms.Provider
}

func NewProcessYoutubeVideoTool(llm llms.Provider) *ProcessYoutubeVideoTool {
	return &ProcessYoutubeVideoTool{llm: llm}
}

func (t *ProcessYoutubeVideoTool) Name() string { return "processYoutubeVideo" }

func (t *ProcessYoutubeVideoTool) Description() string {
	return "Watch a YouTube video and answer a question about it or summarise its content."
}

func (t *ProcessYoutubeVideoTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "videoUrl", Type: "string", Description: "The YouTube URL", Required: true},
		{Name: "question", Type: "string", Description: "Optional question about the video"},
	}
}

func (t *ProcessYoutubeVideoTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	videoURL := stringArg(args, "videoUrl")
	if !strings.Contains(videoURL, "youtube.com") && !strings.Contains(videoURL, "youtu.be") {
		return Errorf("not a YouTube URL: %s", videoURL), nil
	}

	question := stringArg(args, "question")
	if question == "" {
		question = "Summarise this video: key points, tone, and anything notable for a marketing team."
	}

	llm := t.llm
	if tc.Settings.TextModel != "" {
		llm = llm.WithModel(tc.Settings.TextModel)
	}

	message := llms.Message{
		Role:    "user",
		Content: question,
		Parts: []llms.ContentPart{{
			Type:      llms.ContentPartTypeFile,
			MediaType: "video/*",
			FileURI:   videoURL,
		}},
	}
	text, _, _, err := llm.Generate(ctx, []llms.Message{message}, nil)
	if err != nil {
		return Errorf("video processing failed: %v", err), nil
	}
	return Success(text), nil
}

var _ Tool = (*ProcessYoutubeVideoTool)(nil)

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

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// GenerateTextTool produces standalone copy (captions, descriptions,
// post text) with the tenant's text model.
type GenerateTextTool struct {
	llm llms.Provider
}

func NewGenerateTextTool(llm llms.Provider) *GenerateTextTool {
	return &GenerateTextTool{llm: llm}
}

func (t *GenerateTextTool) Name() string { return "generateText" }

func (t *GenerateTextTool) Description() string {
	return "Generate standalone marketing or descriptive text for a given prompt. Use for captions, titles, and post copy."
}

func (t *GenerateTextTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "prompt", Type: "string", Description: "What to write", Required: true},
		{Name: "tone", Type: "string", Description: "Optional tone, e.g. playful, formal"},
	}
}

func (t *GenerateTextTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	prompt := stringArg(args, "prompt")
	if tone := stringArg(args, "tone"); tone != "" {
		prompt = "Write in a " + tone + " tone.\n\n" + prompt
	}
	if tc.TeamContext != "" {
		prompt = "Brand context:\n" + tc.TeamContext + "\n\n" + prompt
	}

	llm := t.llm
	if tc.Settings.TextModel != "" {
		llm = llm.WithModel(tc.Settings.TextModel)
	}

	text, _, _, err := llm.Generate(ctx, []llms.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return Errorf("text generation failed: %v", err), nil
	}
	return Success(text), nil
}

var _ Tool = (*GenerateTextTool)(nil)

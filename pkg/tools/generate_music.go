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

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/media"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// GenerateMusicTool produces instrumental audio from a text prompt.
type GenerateMusicTool struct {
	gen     media.MusicGenerator
	objects storage.ObjectStore
}

func NewGenerateMusicTool(gen media.MusicGenerator, objects storage.ObjectStore) *GenerateMusicTool {
	return &GenerateMusicTool{gen: gen, objects: objects}
}

func (t *GenerateMusicTool) Name() string { return "generateMusic" }

func (t *GenerateMusicTool) Description() string {
	return "Generate instrumental music from a text description of genre, mood, and instrumentation."
}

func (t *GenerateMusicTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "prompt", Type: "string", Description: "Genre, mood, and instrumentation", Required: true},
		{Name: "negativeTags", Type: "string", Description: "Styles or instruments to avoid"},
		{Name: "durationSeconds", Type: "integer", Description: "Target duration in seconds"},
	}
}

func (t *GenerateMusicTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	payloads, err := t.gen.Generate(ctx, media.MusicRequest{
		Prompt:       stringArg(args, "prompt"),
		Model:        tc.Settings.MusicModel,
		NegativeTags: stringArg(args, "negativeTags"),
		DurationSecs: intArg(args, "durationSeconds", 0),
	})
	if err != nil {
		return Errorf("music generation failed: %v", err), nil
	}

	urls, err := storePayloads(ctx, t.objects, payloads, "generated/music")
	if err != nil {
		return Errorf("failed to store generated music: %v", err), nil
	}

	result := Success(fmt.Sprintf("Generated %d track(s).", len(urls)))
	result.MusicURLs = urls
	return result, nil
}

var _ Tool = (*GenerateMusicTool)(nil)

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

// EditOrComposeImageTool edits an existing image or composes several
// source images into one, guided by a text instruction.
type EditOrComposeImageTool struct {
	gen     media.ImageGenerator
	objects storage.ObjectStore
	fetcher *storage.Fetcher
}

func NewEditOrComposeImageTool(gen media.ImageGenerator, objects storage.ObjectStore, fetcher *storage.Fetcher) *EditOrComposeImageTool {
	return &EditOrComposeImageTool{gen: gen, objects: objects, fetcher: fetcher}
}

func (t *EditOrComposeImageTool) Name() string { return "editOrComposeImage" }

func (t *EditOrComposeImageTool) Description() string {
	return "Edit an existing image or combine multiple images according to an instruction. Provide the source image URL(s)."
}

func (t *EditOrComposeImageTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "prompt", Type: "string", Description: "The edit or composition instruction", Required: true},
		{Name: "imageUrl", Type: "string", Description: "URL of the primary source image", Required: true},
		{Name: "additionalImageUrls", Type: "array", Description: "Further source images for composition",
			Items: map[string]any{"type": "string"}},
	}
}

func (t *EditOrComposeImageTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	sourceURLs := append([]string{stringArg(args, "imageUrl")}, stringSliceArg(args, "additionalImageUrls")...)

	inputs := make([]media.InputMedia, 0, len(sourceURLs))
	for _, url := range sourceURLs {
		data, contentType, err := t.fetcher.Fetch(ctx, url)
		if err != nil {
			return Errorf("failed to fetch source image %s: %v", url, err), nil
		}
		inputs = append(inputs, media.InputMedia{URI: url, Bytes: data, MimeType: contentType})
	}

	payloads, err := t.gen.Generate(ctx, media.ImageRequest{
		Prompt:      stringArg(args, "prompt"),
		Model:       tc.Settings.ImageModel,
		InputImages: inputs,
	})
	if err != nil {
		return Errorf("image edit failed: %v", err), nil
	}

	urls, err := storePayloads(ctx, t.objects, payloads, "generated/images")
	if err != nil {
		return Errorf("failed to store edited images: %v", err), nil
	}

	result := Success(fmt.Sprintf("Edited image ready (%d output(s)).", len(urls)))
	result.ImageURLs = urls
	return result, nil
}

var _ Tool = (*EditOrComposeImageTool)(nil)

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

// GenerateImageTool creates images from a text prompt and stores them in
// the object store.
type GenerateImageTool struct {
	gen     media.ImageGenerator
	objects storage.ObjectStore
}

func NewGenerateImageTool(gen media.ImageGenerator, objects storage.ObjectStore) *GenerateImageTool {
	return &GenerateImageTool{gen: gen, objects: objects}
}

func (t *GenerateImageTool) Name() string { return "generateImage" }

func (t *GenerateImageTool) Description() string {
	return "Generate one or more images from a text prompt. Returns public URLs for the generated images."
}

func (t *GenerateImageTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "prompt", Type: "string", Description: "The image description", Required: true},
		{Name: "aspectRatio", Type: "string", Description: "Aspect ratio such as 1:1, 16:9, 9:16", Enum: []string{"1:1", "16:9", "9:16", "4:3", "3:4"}},
		{Name: "count", Type: "integer", Description: "Number of images to generate (1-4)"},
	}
}

func (t *GenerateImageTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	count := intArg(args, "count", 1)
	if count < 1 {
		count = 1
	}
	if count > 4 {
		count = 4
	}

	payloads, err := t.gen.Generate(ctx, media.ImageRequest{
		Prompt:      stringArg(args, "prompt"),
		Model:       tc.Settings.ImageModel,
		AspectRatio: stringArg(args, "aspectRatio"),
		Count:       count,
	})
	if err != nil {
		return Errorf("image generation failed: %v", err), nil
	}

	urls, err := storePayloads(ctx, t.objects, payloads, "generated/images")
	if err != nil {
		return Errorf("failed to store generated images: %v", err), nil
	}

	result := Success(fmt.Sprintf("Generated %d image(s).", len(urls)))
	result.ImageURLs = urls
	return result, nil
}

// storePayloads uploads generated payloads and returns their URLs.
// Payloads that already carry a provider URI are passed through.
func storePayloads(ctx context.Context, objects storage.ObjectStore, payloads []media.Payload, folder string) ([]string, error) {
	urls := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		if payload.URI != "" {
			urls = append(urls, payload.URI)
			continue
		}
		uri, err := objects.Put(ctx, payload.Bytes, payload.MimeType, folder)
		if err != nil {
			return nil, err
		}
		urls = append(urls, uri)
	}
	return urls, nil
}

var _ Tool = (*GenerateImageTool)(nil)

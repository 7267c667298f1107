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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// stubTool is a configurable tool for registry tests.
type stubTool struct {
	name   string
	params []llms.Parameter
	result ToolResult
	err    error
	called bool
}

func (s *stubTool) Name() string                 { return s.name }
func (s *stubTool) Description() string          { return "stub tool" }
func (s *stubTool) Parameters() []llms.Parameter { return s.params }

func (s *stubTool) Execute(_ context.Context, _ tenant.Context, _ map[string]any) (ToolResult, error) {
	s.called = true
	return s.result, s.err
}

func call(name string, args map[string]any) *protocol.ToolCall {
	return &protocol.ToolCall{ID: "call_1", Name: name, Arguments: args}
}

func TestDispatchUnknownTool(t *testing.T) {
	reg := NewRegistry()

	result := reg.Dispatch(context.Background(), tenant.Context{BrandID: "b1"}, call("nope", nil))
	assert.True(t, result.IsError())
	assert.Contains(t, result.Message, "unknown tool")
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	reg := NewRegistry()
	tool := &stubTool{
		name:   "generateImage",
		params: []llms.Parameter{{Name: "prompt", Type: "string", Required: true}},
		result: Success("done"),
	}
	require.NoError(t, reg.Add(tool))

	t.Run("absent", func(t *testing.T) {
		result := reg.Dispatch(context.Background(), tenant.Context{}, call("generateImage", map[string]any{}))
		assert.True(t, result.IsError())
		assert.Contains(t, result.Message, "prompt")
		assert.False(t, tool.called, "the tool never runs on invalid arguments")
	})

	t.Run("empty string counts as missing", func(t *testing.T) {
		result := reg.Dispatch(context.Background(), tenant.Context{}, call("generateImage", map[string]any{"prompt": ""}))
		assert.True(t, result.IsError())
	})
}

func TestDispatchExecutionErrorBecomesResult(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&stubTool{name: "crawlWebsite", err: errors.New("dns failure")}))

	result := reg.Dispatch(context.Background(), tenant.Context{}, call("crawlWebsite", nil))
	assert.True(t, result.IsError())
	assert.Contains(t, result.Message, "dns failure")
}

func TestDispatchDefaultsEmptyStatusToSuccess(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&stubTool{name: "generateText", result: ToolResult{Content: "hello"}}))

	result := reg.Dispatch(context.Background(), tenant.Context{}, call("generateText", nil))
	assert.Equal(t, StatusSuccess, result.Status)
	assert.False(t, result.IsError())
}

func TestDispatchNormalizesMediaDuality(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&stubTool{
		name: "generateImage",
		result: ToolResult{
			Status:    StatusSuccess,
			ImageURLs: []string{"mem://a.png", "mem://b.png"},
			VideoURL:  "mem://v.mp4",
		},
	}))

	result := reg.Dispatch(context.Background(), tenant.Context{}, call("generateImage", nil))
	assert.Equal(t, "mem://a.png", result.ImageURL, "singular mirrors the first plural entry")
	assert.Equal(t, []string{"mem://v.mp4"}, result.VideoURLs, "plural is backfilled from singular")
}

func TestResultPayloadCarriesBothForms(t *testing.T) {
	result := ToolResult{
		Status:   StatusSuccess,
		Content:  "made one image",
		ImageURL: "mem://a.png",
		Data:     map[string]any{"jobId": "j-1"},
	}
	result.NormalizeMedia()

	payload := result.Payload()
	assert.Equal(t, "mem://a.png", payload["imageUrl"])
	assert.Equal(t, []string{"mem://a.png"}, payload["imageUrls"])
	assert.Equal(t, "j-1", payload["jobId"])
	assert.Equal(t, StatusSuccess, payload["status"])
	assert.NotContains(t, payload, "videoUrl")
}

func TestDefinitionsSortedByName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Add(&stubTool{name: "webSearch"}))
	require.NoError(t, reg.Add(&stubTool{name: "analyzeImage"}))
	require.NoError(t, reg.Add(&stubTool{name: "generateImage"}))

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "analyzeImage", defs[0].Name)
	assert.Equal(t, "generateImage", defs[1].Name)
	assert.Equal(t, "webSearch", defs[2].Name)
}

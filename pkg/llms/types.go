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

// Package llms defines the LLM capability port and its Gemini
// implementation.
package llms

import (
	"context"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

type ContentPartType string

const (
	ContentPartTypeText   ContentPartType = "text"
	ContentPartTypeInline ContentPartType = "inline_data"
	ContentPartTypeFile   ContentPartType = "file_data"
)

// ContentPart is one piece of multimodal message content. Inline parts
// carry base64 data; file parts carry a fetchable URI.
type ContentPart struct {
	Type      ContentPartType `json:"type"`
	Text      string          `json:"text,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	Data      string          `json:"data,omitempty"`
	FileURI   string          `json:"file_uri,omitempty"`
}

// Message is a provider-neutral chat message.
type Message struct {
	// Role is one of system, user, assistant, tool.
	Role    string
	Content string

	// Parts carries additional multimodal content for user messages.
	Parts []ContentPart

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []*protocol.ToolCall

	// Name and ToolCallID identify the invocation a tool message answers.
	Name       string
	ToolCallID string
}

// ToolDefinition is a tool schema as presented to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// StreamChunk is one unit of a streaming generation.
type StreamChunk struct {
	Type     string // "text", "tool_call", "done", "error"
	Text     string
	ToolCall *protocol.ToolCall
	Tokens   int
	Error    error
}

// StructuredOutputConfig requests JSON-constrained output.
type StructuredOutputConfig struct {
	Format string `json:"format,omitempty"`
	Schema any    `json:"schema,omitempty"`
}

// Provider is the LLM capability port.
type Provider interface {
	// Generate performs a non-streaming request.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (text string, toolCalls []*protocol.ToolCall, tokens int, err error)

	// GenerateStreaming returns a channel of chunks. The channel is closed
	// after a terminal "done" or "error" chunk.
	GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)

	// GenerateStructured constrains output to the given schema.
	GenerateStructured(ctx context.Context, messages []Message, cfg *StructuredOutputConfig) (string, error)

	// CountTokens returns the prompt token count for the given history.
	CountTokens(ctx context.Context, messages []Message) (int, error)

	// WithModel returns a provider bound to a different model identifier.
	// Used for per-request model overrides.
	WithModel(model string) Provider

	GetModelName() string

	Close() error
}

// ConvertParameters compiles a flat parameter list into a JSON schema map.
func ConvertParameters(params []Parameter) map[string]any {
	properties := make(map[string]any)
	required := []string{}

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Items != nil {
			prop["items"] = p.Items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Parameter describes one tool argument for schema conversion.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
	Items       map[string]any
}

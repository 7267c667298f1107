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

package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/httpclient"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// GeminiProvider implements Provider over the Gemini generateContent API.
type GeminiProvider struct {
	cfg        config.GeminiConfig
	model      string
	httpClient *httpclient.Client
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiToolSet         `json:"tools,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   any      `json:"responseSchema,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart is a free-form part: text, functionCall, functionResponse,
// inlineData or fileData.
type geminiPart map[string]any

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         map[string]any              `json:"googleSearch,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
	Error         *geminiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiCountResponse struct {
	TotalTokens int          `json:"totalTokens"`
	Error       *geminiError `json:"error,omitempty"`
}

// NewGeminiProvider creates a Gemini provider for the given model.
func NewGeminiProvider(cfg config.GeminiConfig, model string) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	return &GeminiProvider{
		cfg:   cfg,
		model: model,
		httpClient: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseGoogleHeaders),
		),
	}, nil
}

func (p *GeminiProvider) WithModel(model string) Provider {
	if model == "" || model == p.model {
		return p
	}
	clone := *p
	clone.model = model
	return &clone
}

func (p *GeminiProvider) GetModelName() string { return p.model }

func (p *GeminiProvider) Close() error { return nil }

func (p *GeminiProvider) endpoint(verb string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", p.cfg.Host, p.model, verb, p.cfg.APIKey)
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []*protocol.ToolCall, int, error) {
	req := p.buildRequest(messages, tools, nil)

	var geminiResp geminiResponse
	if err := p.post(ctx, p.endpoint("generateContent"), req, &geminiResp); err != nil {
		return "", nil, 0, err
	}
	if geminiResp.Error != nil {
		return "", nil, 0, fmt.Errorf("gemini API error: %s", geminiResp.Error.Message)
	}

	return parseGeminiResponse(&geminiResp)
}

func (p *GeminiProvider) GenerateStructured(ctx context.Context, messages []Message, cfg *StructuredOutputConfig) (string, error) {
	req := p.buildRequest(messages, nil, cfg)

	var geminiResp geminiResponse
	if err := p.post(ctx, p.endpoint("generateContent"), req, &geminiResp); err != nil {
		return "", err
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("gemini API error: %s", geminiResp.Error.Message)
	}

	text, _, _, err := parseGeminiResponse(&geminiResp)
	return text, err
}

func (p *GeminiProvider) CountTokens(ctx context.Context, messages []Message) (int, error) {
	req := geminiRequest{Contents: convertMessages(messages)}

	var countResp geminiCountResponse
	if err := p.post(ctx, p.endpoint("countTokens"), req, &countResp); err != nil {
		return 0, err
	}
	if countResp.Error != nil {
		return 0, fmt.Errorf("gemini API error: %s", countResp.Error.Message)
	}
	return countResp.TotalTokens, nil
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	req := p.buildRequest(messages, tools, nil)
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s&alt=sse",
		p.cfg.Host, p.model, p.cfg.APIKey)

	chunks := make(chan StreamChunk, 10)

	go func() {
		defer close(chunks)

		reqBody, err := json.Marshal(req)
		if err != nil {
			chunks <- StreamChunk{Type: "error", Error: err}
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			chunks <- StreamChunk{Type: "error", Error: err}
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			chunks <- StreamChunk{Type: "error", Error: fmt.Errorf("gemini request failed: %w", err)}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			chunks <- StreamChunk{Type: "error", Error: fmt.Errorf("gemini API error (HTTP %d): %s", resp.StatusCode, string(bodyBytes))}
			return
		}

		parseGeminiStream(ctx, resp.Body, chunks)
	}()

	return chunks, nil
}

func (p *GeminiProvider) post(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse gemini response: %w", err)
	}
	return nil
}

func (p *GeminiProvider) buildRequest(messages []Message, tools []ToolDefinition, structCfg *StructuredOutputConfig) *geminiRequest {
	req := &geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: p.cfg.MaxTokens,
		},
	}

	// Gemini has no system role; the system message rides as
	// systemInstruction, the rest as contents.
	var rest []Message
	for _, msg := range messages {
		if msg.Role == "system" && req.SystemInstruction == nil {
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{"text": msg.Content}},
			}
			continue
		}
		rest = append(rest, msg)
	}
	req.Contents = convertMessages(rest)

	if p.cfg.Temp > 0 {
		temp := p.cfg.Temp
		req.GenerationConfig.Temperature = &temp
	}

	if structCfg != nil && structCfg.Format == "json" {
		req.GenerationConfig.ResponseMimeType = "application/json"
		if structCfg.Schema != nil {
			req.GenerationConfig.ResponseSchema = structCfg.Schema
		}
	}

	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		req.Tools = []geminiToolSet{{FunctionDeclarations: decls}}
	}

	return req
}

func convertMessages(messages []Message) []geminiContent {
	var contents []geminiContent

	for _, msg := range messages {
		role := msg.Role
		switch role {
		case "assistant":
			role = "model"
		case "system":
			role = "user"
		}

		var parts []geminiPart

		if msg.Content != "" {
			parts = append(parts, geminiPart{"text": msg.Content})
		}

		for _, cp := range msg.Parts {
			switch cp.Type {
			case ContentPartTypeText:
				parts = append(parts, geminiPart{"text": cp.Text})
			case ContentPartTypeInline:
				parts = append(parts, geminiPart{
					"inlineData": map[string]any{
						"mimeType": cp.MediaType,
						"data":     cp.Data,
					},
				})
			case ContentPartTypeFile:
				parts = append(parts, geminiPart{
					"fileData": map[string]any{
						"mimeType": cp.MediaType,
						"fileUri":  cp.FileURI,
					},
				})
			}
		}

		for _, tc := range msg.ToolCalls {
			parts = append(parts, geminiPart{
				"functionCall": map[string]any{
					"name": tc.Name,
					"args": tc.Arguments,
				},
			})
		}

		if msg.Role == "tool" {
			parts = append(parts, geminiPart{
				"functionResponse": map[string]any{
					"name": msg.Name,
					"response": map[string]any{
						"content": msg.Content,
					},
				},
			})
			role = "user"
		}

		if len(parts) > 0 {
			contents = append(contents, geminiContent{Role: role, Parts: parts})
		}
	}

	return contents
}

func parseGeminiResponse(resp *geminiResponse) (string, []*protocol.ToolCall, int, error) {
	if len(resp.Candidates) == 0 {
		return "", nil, 0, fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	var textParts []string
	var toolCalls []*protocol.ToolCall

	for _, part := range candidate.Content.Parts {
		if text, ok := part["text"].(string); ok {
			textParts = append(textParts, text)
		}
		if fc, ok := part["functionCall"].(map[string]any); ok {
			name, _ := fc["name"].(string)
			args, _ := fc["args"].(map[string]any)
			toolCalls = append(toolCalls, protocol.NewToolCall(name, args))
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = resp.UsageMetadata.TotalTokenCount
	}

	return strings.Join(textParts, ""), toolCalls, tokens, nil
}

func parseGeminiStream(ctx context.Context, body io.Reader, chunks chan<- StreamChunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	totalTokens := 0

	for scanner.Scan() {
		if ctx.Err() != nil {
			chunks <- StreamChunk{Type: "error", Error: ctx.Err()}
			return
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var resp geminiResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		if resp.Error != nil {
			chunks <- StreamChunk{Type: "error", Error: fmt.Errorf("%s", resp.Error.Message)}
			return
		}

		if len(resp.Candidates) > 0 {
			for _, part := range resp.Candidates[0].Content.Parts {
				if text, ok := part["text"].(string); ok {
					chunks <- StreamChunk{Type: "text", Text: text}
				}
				if fc, ok := part["functionCall"].(map[string]any); ok {
					name, _ := fc["name"].(string)
					args, _ := fc["args"].(map[string]any)
					chunks <- StreamChunk{Type: "tool_call", ToolCall: protocol.NewToolCall(name, args)}
				}
			}
		}

		if resp.UsageMetadata != nil {
			totalTokens = resp.UsageMetadata.TotalTokenCount
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- StreamChunk{Type: "error", Error: err}
		return
	}

	chunks <- StreamChunk{Type: "done", Tokens: totalTokens}
}

var _ Provider = (*GeminiProvider)(nil)

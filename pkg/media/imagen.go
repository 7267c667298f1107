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

package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/httpclient"
)

// ImagenGenerator implements ImageGenerator over the Imagen predict API.
// Edit and compose requests fall through to the Gemini image model, which
// accepts input images as inline parts.
type ImagenGenerator struct {
	cfg        config.GeminiConfig
	model      string
	httpClient *httpclient.Client
}

func NewImagenGenerator(cfg config.GeminiConfig, model string) (*ImagenGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "imagen-4.0-generate-001"
	}
	return &ImagenGenerator{cfg: cfg, model: model, httpClient: httpclient.New()}, nil
}

type imagenPredictRequest struct {
	Instances  []imagenInstance  `json:"instances"`
	Parameters *imagenParameters `json:"parameters,omitempty"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type imagenPredictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *ImagenGenerator) Generate(ctx context.Context, req ImageRequest) ([]Payload, error) {
	if len(req.InputImages) > 0 {
		return g.generateWithInputs(ctx, req)
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}

	predictReq := imagenPredictRequest{
		Instances: []imagenInstance{{Prompt: req.Prompt}},
		Parameters: &imagenParameters{
			SampleCount: count,
			AspectRatio: req.AspectRatio,
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predict?key=%s", g.cfg.Host, model, g.cfg.APIKey)

	var predictResp imagenPredictResponse
	if err := postJSON(ctx, g.httpClient, url, predictReq, &predictResp); err != nil {
		return nil, err
	}
	if predictResp.Error != nil {
		return nil, fmt.Errorf("imagen API error: %s", predictResp.Error.Message)
	}
	if len(predictResp.Predictions) == 0 {
		return nil, fmt.Errorf("imagen returned no predictions")
	}

	payloads := make([]Payload, 0, len(predictResp.Predictions))
	for _, pred := range predictResp.Predictions {
		raw, err := base64.StdEncoding.DecodeString(pred.BytesBase64Encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image bytes: %w", err)
		}
		mime := pred.MimeType
		if mime == "" {
			mime = "image/png"
		}
		payloads = append(payloads, Payload{Bytes: raw, MimeType: mime})
	}
	return payloads, nil
}

// generateWithInputs routes edit/compose requests through the Gemini
// multimodal image model, attaching sources as inline parts.
func (g *ImagenGenerator) generateWithInputs(ctx context.Context, req ImageRequest) ([]Payload, error) {
	model := req.Model
	if model == "" || model == g.model {
		model = "gemini-2.5-flash-image"
	}

	parts := []map[string]any{{"text": req.Prompt}}
	for _, img := range req.InputImages {
		if img.Bytes == nil {
			return nil, fmt.Errorf("input image bytes are required for editing")
		}
		mime := img.MimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{
				"mimeType": mime,
				"data":     base64.StdEncoding.EncodeToString(img.Bytes),
			},
		})
	}

	body := map[string]any{
		"contents": []map[string]any{{"role": "user", "parts": parts}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"IMAGE"},
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.cfg.Host, model, g.cfg.APIKey)

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					InlineData *struct {
						MimeType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := postJSON(ctx, g.httpClient, url, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("image edit API error: %s", resp.Error.Message)
	}

	var payloads []Payload
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode edited image: %w", err)
			}
			payloads = append(payloads, Payload{Bytes: raw, MimeType: part.InlineData.MimeType})
		}
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("image edit returned no images")
	}
	return payloads, nil
}

func postJSON(ctx context.Context, client *httpclient.Client, url string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var _ ImageGenerator = (*ImagenGenerator)(nil)

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
	"context"
	"encoding/base64"
	"fmt"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/httpclient"
)

// LyriaGenerator implements MusicGenerator over the Lyria predict API.
type LyriaGenerator struct {
	cfg        config.GeminiConfig
	model      string
	httpClient *httpclient.Client
}

func NewLyriaGenerator(cfg config.GeminiConfig, model string) (*LyriaGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "lyria-002"
	}
	return &LyriaGenerator{cfg: cfg, model: model, httpClient: httpclient.New()}, nil
}

type lyriaPredictResponse struct {
	Predictions []struct {
		AudioContent string `json:"audioContent"`
		BytesBase64  string `json:"bytesBase64Encoded"`
		MimeType     string `json:"mimeType"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *LyriaGenerator) Generate(ctx context.Context, req MusicRequest) ([]Payload, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	instance := map[string]any{"prompt": req.Prompt}
	if req.NegativeTags != "" {
		instance["negative_prompt"] = req.NegativeTags
	}

	params := map[string]any{}
	if req.DurationSecs > 0 {
		params["durationSeconds"] = req.DurationSecs
	}

	body := map[string]any{
		"instances":  []map[string]any{instance},
		"parameters": params,
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predict?key=%s", g.cfg.Host, model, g.cfg.APIKey)

	var predictResp lyriaPredictResponse
	if err := postJSON(ctx, g.httpClient, url, body, &predictResp); err != nil {
		return nil, err
	}
	if predictResp.Error != nil {
		return nil, fmt.Errorf("lyria API error: %s", predictResp.Error.Message)
	}
	if len(predictResp.Predictions) == 0 {
		return nil, fmt.Errorf("lyria returned no predictions")
	}

	payloads := make([]Payload, 0, len(predictResp.Predictions))
	for _, pred := range predictResp.Predictions {
		encoded := pred.AudioContent
		if encoded == "" {
			encoded = pred.BytesBase64
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio bytes: %w", err)
		}
		mime := pred.MimeType
		if mime == "" {
			mime = "audio/wav"
		}
		payloads = append(payloads, Payload{Bytes: raw, MimeType: mime})
	}
	return payloads, nil
}

var _ MusicGenerator = (*LyriaGenerator)(nil)

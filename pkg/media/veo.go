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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/httpclient"
)

// VeoGenerator implements VideoGenerator over the Veo predictLongRunning
// API. Start returns the operation name; Poll reads the operation until a
// terminal state.
type VeoGenerator struct {
	cfg        config.GeminiConfig
	model      string
	httpClient *httpclient.Client
}

func NewVeoGenerator(cfg config.GeminiConfig, model string) (*VeoGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "veo-3.0-generate-001"
	}
	return &VeoGenerator{cfg: cfg, model: model, httpClient: httpclient.New()}, nil
}

type veoStartResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []struct {
				Video struct {
					URI                string `json:"uri"`
					BytesBase64Encoded string `json:"bytesBase64Encoded"`
					MimeType           string `json:"mimeType"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *VeoGenerator) Start(ctx context.Context, req VideoRequest) (OpHandle, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}

	instance := map[string]any{"prompt": req.Prompt}

	switch req.Mode {
	case VideoImageToVideo, VideoCharacterRef:
		src := req.FirstFrame
		if req.Mode == VideoCharacterRef {
			src = req.CharacterImage
		}
		if src == nil {
			return OpHandle{}, fmt.Errorf("video mode %s requires an input image", req.Mode)
		}
		instance["image"] = inputMediaValue(*src)
	case VideoInterpolate:
		if req.FirstFrame == nil || req.LastFrame == nil {
			return OpHandle{}, fmt.Errorf("interpolation requires first and last frames")
		}
		instance["image"] = inputMediaValue(*req.FirstFrame)
		instance["lastFrame"] = inputMediaValue(*req.LastFrame)
	case VideoExtend:
		if req.InputVideo == nil {
			return OpHandle{}, fmt.Errorf("extension requires an input video")
		}
		instance["video"] = inputMediaValue(*req.InputVideo)
	}

	params := map[string]any{}
	if req.DurationSecs > 0 {
		params["durationSeconds"] = req.DurationSecs
	}

	body := map[string]any{
		"instances":  []map[string]any{instance},
		"parameters": params,
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:predictLongRunning?key=%s", g.cfg.Host, model, g.cfg.APIKey)

	var startResp veoStartResponse
	if err := postJSON(ctx, g.httpClient, url, body, &startResp); err != nil {
		return OpHandle{}, err
	}
	if startResp.Error != nil {
		return OpHandle{}, fmt.Errorf("veo API error: %s", startResp.Error.Message)
	}
	if startResp.Name == "" {
		return OpHandle{}, fmt.Errorf("veo returned no operation name")
	}

	return OpHandle{Name: startResp.Name}, nil
}

func (g *VeoGenerator) Poll(ctx context.Context, op OpHandle) (OpStatus, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", g.cfg.Host, op.Name, g.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return OpStatus{}, err
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return OpStatus{}, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return OpStatus{}, err
	}

	var operation veoOperation
	if err := json.Unmarshal(respBody, &operation); err != nil {
		return OpStatus{}, fmt.Errorf("failed to parse operation: %w", err)
	}

	if operation.Error != nil {
		return OpStatus{State: OpFailed, Err: fmt.Errorf("veo operation failed: %s", operation.Error.Message)}, nil
	}
	if !operation.Done {
		return OpStatus{State: OpPending}, nil
	}

	if operation.Response == nil || operation.Response.GenerateVideoResponse == nil {
		return OpStatus{State: OpFailed, Err: fmt.Errorf("veo operation done without payload")}, nil
	}

	var payloads []Payload
	for _, sample := range operation.Response.GenerateVideoResponse.GeneratedSamples {
		mime := sample.Video.MimeType
		if mime == "" {
			mime = "video/mp4"
		}
		if sample.Video.URI != "" {
			payloads = append(payloads, Payload{URI: sample.Video.URI, MimeType: mime})
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(sample.Video.BytesBase64Encoded)
		if err != nil {
			return OpStatus{}, fmt.Errorf("failed to decode video bytes: %w", err)
		}
		payloads = append(payloads, Payload{Bytes: raw, MimeType: mime})
	}

	if len(payloads) == 0 {
		return OpStatus{State: OpFailed, Err: fmt.Errorf("veo operation produced no samples")}, nil
	}
	return OpStatus{State: OpDone, Payloads: payloads}, nil
}

func inputMediaValue(m InputMedia) map[string]any {
	mime := m.MimeType
	if mime == "" {
		mime = "image/png"
	}
	if m.URI != "" {
		return map[string]any{"gcsUri": m.URI, "mimeType": mime}
	}
	return map[string]any{
		"bytesBase64Encoded": base64.StdEncoding.EncodeToString(m.Bytes),
		"mimeType":           mime,
	}
}

var _ VideoGenerator = (*VeoGenerator)(nil)

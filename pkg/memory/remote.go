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

package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/httpclient"
)

// RemoteProvider implements LongTermMemory over a memory-bank style HTTP
// API. Records live under
// projects/{project}/locations/{location}/memories/{id}; that full name
// is what Append returns.
type RemoteProvider struct {
	baseURL    string
	project    string
	location   string
	apiKey     string
	httpClient *httpclient.Client
}

func NewRemoteProvider(baseURL, project, location, apiKey string) (*RemoteProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("memory provider base URL is required")
	}
	if project == "" {
		return nil, fmt.Errorf("memory provider project is required")
	}
	if location == "" {
		location = "us-central1"
	}
	return &RemoteProvider{
		baseURL:    baseURL,
		project:    project,
		location:   location,
		apiKey:     apiKey,
		httpClient: httpclient.New(),
	}, nil
}

func (p *RemoteProvider) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", p.project, p.location)
}

type remoteMemory struct {
	Name       string    `json:"name"`
	Fact       string    `json:"fact"`
	Scope      mapScope  `json:"scope"`
	CreateTime time.Time `json:"createTime,omitempty"`
}

type mapScope struct {
	UserID string `json:"user_id"`
}

type remoteSearchResponse struct {
	Memories []remoteMemory `json:"memories"`
	Error    *remoteError   `json:"error,omitempty"`
}

type remoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *RemoteProvider) Append(ctx context.Context, userID, text string) (string, error) {
	body := remoteMemory{
		Fact:  text,
		Scope: mapScope{UserID: userID},
	}

	var created struct {
		Name  string       `json:"name"`
		Error *remoteError `json:"error,omitempty"`
	}
	endpoint := fmt.Sprintf("%s/v1/%s/memories", p.baseURL, p.parent())
	if err := p.do(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	if created.Error != nil {
		return "", fmt.Errorf("memory append failed: %s", created.Error.Message)
	}
	if created.Name == "" {
		return "", fmt.Errorf("memory provider returned no resource name")
	}
	return created.Name, nil
}

func (p *RemoteProvider) Search(ctx context.Context, userID, query string) ([]Fact, error) {
	body := map[string]any{
		"query": query,
		"scope": mapScope{UserID: userID},
	}

	var searchResp remoteSearchResponse
	endpoint := fmt.Sprintf("%s/v1/%s/memories:retrieve", p.baseURL, p.parent())
	if err := p.do(ctx, http.MethodPost, endpoint, body, &searchResp); err != nil {
		return nil, err
	}
	if searchResp.Error != nil {
		return nil, fmt.Errorf("memory search failed: %s", searchResp.Error.Message)
	}

	facts := make([]Fact, 0, len(searchResp.Memories))
	for _, mem := range searchResp.Memories {
		facts = append(facts, Fact{
			FactID:    FactIDFromRemote(mem.Name),
			UserID:    userID,
			Text:      mem.Fact,
			CreatedAt: mem.CreateTime,
			RemoteID:  mem.Name,
		})
	}
	return facts, nil
}

func (p *RemoteProvider) Delete(ctx context.Context, userID, remoteID string) error {
	endpoint := fmt.Sprintf("%s/v1/%s", p.baseURL, remoteID)

	var deleted struct {
		Error *remoteError `json:"error,omitempty"`
	}
	if err := p.do(ctx, http.MethodDelete, endpoint, nil, &deleted); err != nil {
		return err
	}
	if deleted.Error != nil {
		if deleted.Error.Code == http.StatusNotFound {
			return ErrFactNotFound
		}
		return fmt.Errorf("memory delete failed: %s", deleted.Error.Message)
	}
	return nil
}

func (p *RemoteProvider) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	if p.apiKey != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("key", p.apiKey)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrFactNotFound
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse memory response: %w", err)
	}
	return nil
}

var _ LongTermMemory = (*RemoteProvider)(nil)

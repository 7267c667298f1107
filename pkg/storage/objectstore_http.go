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

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/momentumhq/momentum-agent/pkg/httpclient"
)

// HTTPObjectStore talks to a bucket-style HTTP endpoint: PUT uploads an
// object, GET fetches it back. It covers GCS-compatible storage gateways
// reachable with a bearer token.
type HTTPObjectStore struct {
	baseURL    string
	bucket     string
	token      string
	httpClient *httpclient.Client
}

func NewHTTPObjectStore(baseURL, bucket, token string) (*HTTPObjectStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("object store base URL is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	return &HTTPObjectStore{
		baseURL:    baseURL,
		bucket:     bucket,
		token:      token,
		httpClient: httpclient.New(),
	}, nil
}

func (s *HTTPObjectStore) Put(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	name := uuid.NewString() + extensionFor(contentType)
	uri := fmt.Sprintf("%s/%s/%s/%s", s.baseURL, s.bucket, folder, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uri, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("object upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("object upload failed with status %d", resp.StatusCode)
	}
	return uri, nil
}

func (s *HTTPObjectStore) Get(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("object fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("object fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

var _ ObjectStore = (*HTTPObjectStore)(nil)

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
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/httpclient"
)

// Fetcher resolves media bytes behind a URI: object-store references go
// through the store, everything else is fetched over HTTP.
type Fetcher struct {
	objects    ObjectStore
	httpClient *httpclient.Client
}

func NewFetcher(objects ObjectStore) *Fetcher {
	return &Fetcher{objects: objects, httpClient: httpclient.New()}
}

// Fetch returns the bytes and content type behind uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	if f.objects != nil && (strings.HasPrefix(uri, "mem://") ||
		strings.Contains(uri, "storage.googleapis.com")) {
		data, contentType, err := f.objects.Get(ctx, uri)
		if err == nil {
			return data, contentType, nil
		}
		// Signed storage URLs that the store cannot resolve are still
		// fetchable over HTTP.
		if strings.HasPrefix(uri, "mem://") {
			return nil, "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch returned status %d for %s", resp.StatusCode, uri)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

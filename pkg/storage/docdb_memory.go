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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryDocumentDB is an in-memory DocumentDB for tests and single-node
// deployments without a configured database file.
type MemoryDocumentDB struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryDocumentDB() *MemoryDocumentDB {
	return &MemoryDocumentDB{docs: make(map[string][]byte)}
}

func (m *MemoryDocumentDB) Get(ctx context.Context, path string, out any) error {
	m.mu.RLock()
	raw, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocNotFound, path)
	}
	return json.Unmarshal(raw, out)
}

func (m *MemoryDocumentDB) Set(ctx context.Context, path string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	m.mu.Lock()
	m.docs[path] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryDocumentDB) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	delete(m.docs, path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDocumentDB) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimSuffix(prefix, "/")

	m.mu.RLock()
	var paths []string
	for path := range m.docs {
		if parentOf(path) == prefix {
			paths = append(paths, path)
		}
	}
	m.mu.RUnlock()

	sort.Strings(paths)
	return paths, nil
}

func (m *MemoryDocumentDB) Close() error { return nil }

func parentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

var _ DocumentDB = (*MemoryDocumentDB)(nil)

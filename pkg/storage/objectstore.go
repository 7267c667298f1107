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
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get when the URI resolves to nothing.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore persists generated media bytes and hands back stable URIs
// that can be served to clients and re-fetched by tools.
type ObjectStore interface {
	// Put stores data under a generated name inside folder and returns
	// the object's URI.
	Put(ctx context.Context, data []byte, contentType, folder string) (string, error)

	// Get fetches the bytes behind a URI previously returned by Put.
	Get(ctx context.Context, uri string) ([]byte, string, error)
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryObjectStore keeps objects in process memory. URIs use the
// mem:// scheme and are only resolvable by the same instance.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
}

func NewMemoryObjectStore(bucket string) *MemoryObjectStore {
	if bucket == "" {
		bucket = "momentum-media"
	}
	return &MemoryObjectStore{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
	}
}

func (s *MemoryObjectStore) Put(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	name := uuid.NewString() + extensionFor(contentType)
	uri := fmt.Sprintf("mem://%s/%s/%s", s.bucket, folder, name)

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.objects[uri] = memoryObject{data: stored, contentType: contentType}
	s.mu.Unlock()
	return uri, nil
}

func (s *MemoryObjectStore) Get(ctx context.Context, uri string) ([]byte, string, error) {
	s.mu.RLock()
	obj, ok := s.objects[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	return obj.data, obj.contentType, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

var _ ObjectStore = (*MemoryObjectStore)(nil)

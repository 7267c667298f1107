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

// Package vector defines the vector index capability port and its Qdrant
// implementation. Collections are created per brand by the search index
// manager; documents carry arbitrary payload metadata.
package vector

import "context"

// Doc is one indexed document.
type Doc struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Result is one search hit with the provider score.
type Result struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Provider is the vector index port.
type Provider interface {
	Name() string

	CreateCollection(ctx context.Context, collection string, vectorDimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Upsert writes a batch of documents into the collection.
	Upsert(ctx context.Context, collection string, docs []Doc) error

	// Search returns the topK most similar documents, optionally filtered
	// by exact-match payload conditions.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}

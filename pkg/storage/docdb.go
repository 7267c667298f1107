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

// Package storage provides the persistence ports: a hierarchical document
// DB for structured state (sessions, jobs, index descriptors, settings)
// and an object store for generated media bytes.
package storage

import (
	"context"
	"errors"
)

// ErrDocNotFound is returned by Get when no document exists at the path.
var ErrDocNotFound = errors.New("document not found")

// DocumentDB stores JSON documents addressed by slash-separated paths,
// e.g. "sessions/{key}" or "brands/{brandId}/jobs/{jobId}". List returns
// the documents directly under a path prefix.
type DocumentDB interface {
	// Get unmarshals the document at path into out.
	Get(ctx context.Context, path string, out any) error

	// Set stores doc at path, overwriting any existing document.
	Set(ctx context.Context, path string, doc any) error

	// Delete removes the document at path. Deleting a missing document
	// is not an error.
	Delete(ctx context.Context, path string) error

	// List returns the paths of documents whose parent is prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

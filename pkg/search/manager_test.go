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

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
	"github.com/momentumhq/momentum-agent/pkg/vector"
)

// fakeVectors is an in-memory vector.Provider with failure switches.
type fakeVectors struct {
	collections map[string][]vector.Doc
	deleteErr   error
	upsertErr   error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{collections: make(map[string][]vector.Doc)}
}

func (f *fakeVectors) Name() string { return "fake" }

func (f *fakeVectors) CreateCollection(_ context.Context, collection string, _ int) error {
	f.collections[collection] = nil
	return nil
}

func (f *fakeVectors) DeleteCollection(_ context.Context, collection string) error {
	delete(f.collections, collection)
	return f.deleteErr
}

func (f *fakeVectors) CollectionExists(_ context.Context, collection string) (bool, error) {
	_, ok := f.collections[collection]
	return ok, nil
}

func (f *fakeVectors) Upsert(_ context.Context, collection string, docs []vector.Doc) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.collections[collection] = append(f.collections[collection], docs...)
	return nil
}

func (f *fakeVectors) Search(_ context.Context, collection string, _ []float32, topK int, _ map[string]any) ([]vector.Result, error) {
	docs := f.collections[collection]
	var results []vector.Result
	for i, doc := range docs {
		if i >= topK {
			break
		}
		results = append(results, vector.Result{ID: doc.ID, Score: 0.9, Metadata: doc.Metadata})
	}
	return results, nil
}

func (f *fakeVectors) Count(_ context.Context, collection string) (int, error) {
	return len(f.collections[collection]), nil
}

func (f *fakeVectors) Close() error { return nil }

// fakeEmbedder returns a constant-dimension zero vector per text.
type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Dimension() int { return 4 }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func newTestManager(vectors vector.Provider) (*Manager, *Library, storage.DocumentDB) {
	docs := storage.NewMemoryDocumentDB()
	library := NewLibrary(docs)
	cfg := config.SearchConfig{ReindexBatchSize: 10, ExpansionLimit: 5}
	manager := NewManager(vectors, fakeEmbedder{}, docs, library, nil, cfg)
	return manager, library, docs
}

func TestManagerCreateActivatesVectorSearch(t *testing.T) {
	vectors := newFakeVectors()
	manager, _, _ := newTestManager(vectors)
	ctx := context.Background()

	desc, err := manager.Create(ctx, "brand1")
	require.NoError(t, err)
	assert.Equal(t, IndexActive, desc.State)
	assert.True(t, strings.HasPrefix(desc.BackingURI, "momentum-media-brand1-"),
		"backing name carries a timestamp suffix")
	assert.Equal(t, tenant.SearchMethodVector, manager.SearchMethod(ctx, "brand1"))

	t.Run("create is idempotent while active", func(t *testing.T) {
		again, err := manager.Create(ctx, "brand1")
		require.NoError(t, err)
		assert.Equal(t, desc.BackingURI, again.BackingURI)
	})
}

func TestManagerDeleteDanglingCountsAsSuccess(t *testing.T) {
	vectors := newFakeVectors()
	manager, _, _ := newTestManager(vectors)
	ctx := context.Background()

	_, err := manager.Create(ctx, "brand1")
	require.NoError(t, err)

	// The provider removes the collection but reports a dangling error.
	// Verification finds it absent, so the delete succeeds.
	vectors.deleteErr = errors.New("operation returned without terminal state")
	require.NoError(t, manager.Delete(ctx, "brand1"))

	desc, err := manager.Status(ctx, "brand1")
	require.NoError(t, err)
	assert.Equal(t, IndexAbsent, desc.State)
	assert.Equal(t, SearchMethodFallback, manager.SearchMethod(ctx, "brand1"),
		"deletion downgrades the brand to fallback search")
}

func TestManagerDefaultSearchMethodIsFallback(t *testing.T) {
	manager, _, _ := newTestManager(newFakeVectors())
	assert.Equal(t, SearchMethodFallback, manager.SearchMethod(context.Background(), "unconfigured"))
}

func registerItems(t *testing.T, library *Library, brandID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		item := protocol.MediaLibraryItem{
			BrandID:    brandID,
			Kind:       protocol.MediaImage,
			Title:      fmt.Sprintf("asset %03d", i),
			StorageURI: fmt.Sprintf("mem://bucket/a%03d.png", i),
		}
		require.NoError(t, library.Register(context.Background(), &item))
	}
}

func TestReindexProgressSteps(t *testing.T) {
	vectors := newFakeVectors()
	manager, library, _ := newTestManager(vectors)
	ctx := context.Background()

	_, err := manager.Create(ctx, "brand1")
	require.NoError(t, err)
	registerItems(t, library, "brand1", 27)

	var steps []int
	result, err := manager.Reindex(ctx, "brand1", func(progress int, _ string) {
		steps = append(steps, progress)
	})
	require.NoError(t, err)

	// 27 items in batches of 10: floor percentages 37, 74, 100.
	assert.Equal(t, []int{37, 74, 100}, steps)
	assert.Equal(t, 27, result.Total)
	assert.Equal(t, 27, result.Indexed)
	assert.Empty(t, result.FailedIDs)
	assert.False(t, result.Simulated)
}

func TestReindexEmptyLibraryCompletesImmediately(t *testing.T) {
	manager, _, _ := newTestManager(newFakeVectors())

	var steps []int
	result, err := manager.Reindex(context.Background(), "brand1", func(progress int, _ string) {
		steps = append(steps, progress)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{100}, steps)
	assert.Zero(t, result.Total)
}

func TestReindexSimulatedOnFallbackTenant(t *testing.T) {
	vectors := newFakeVectors()
	manager, library, _ := newTestManager(vectors)
	ctx := context.Background()

	registerItems(t, library, "brand1", 5)

	result, err := manager.Reindex(ctx, "brand1", nil)
	require.NoError(t, err)
	assert.True(t, result.Simulated)
	assert.Equal(t, 5, result.Indexed)
	assert.Empty(t, vectors.collections, "no upserts happen in simulation")
}

func TestReindexAllBatchesFailing(t *testing.T) {
	vectors := newFakeVectors()
	manager, library, _ := newTestManager(vectors)
	ctx := context.Background()

	_, err := manager.Create(ctx, "brand1")
	require.NoError(t, err)
	registerItems(t, library, "brand1", 3)

	vectors.upsertErr = errors.New("provider down")
	result, err := manager.Reindex(ctx, "brand1", nil)
	require.Error(t, err)
	assert.Len(t, result.FailedIDs, 3)
	assert.Zero(t, result.Indexed)
}

func TestSearchMediaUsesFallbackWithoutIndex(t *testing.T) {
	manager, library, _ := newTestManager(newFakeVectors())
	ctx := context.Background()

	item := protocol.MediaLibraryItem{
		BrandID:    "brand1",
		Kind:       protocol.MediaImage,
		Title:      "sunset over the pier",
		StorageURI: "mem://bucket/sunset.png",
	}
	require.NoError(t, library.Register(ctx, &item))

	hits, err := manager.SearchMedia(ctx, "brand1", "sunset", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, item.MediaID, hits[0].Item.MediaID)
}

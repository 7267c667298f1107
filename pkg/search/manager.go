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

// Package search manages the per-tenant media index lifecycle, reindex
// jobs, semantic search with generative query expansion, and the text
// fallback used when no vector index is available.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/embedders"
	"github.com/momentumhq/momentum-agent/pkg/logger"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
	"github.com/momentumhq/momentum-agent/pkg/vector"
)

// IndexState is the lifecycle state of a brand's index.
type IndexState string

const (
	IndexAbsent   IndexState = "absent"
	IndexCreating IndexState = "creating"
	IndexActive   IndexState = "active"
	IndexDeleting IndexState = "deleting"
	IndexError    IndexState = "error"
)

// IndexDescriptor is the persisted index record for a brand.
type IndexDescriptor struct {
	BrandID string     `json:"brand_id"`
	IndexID string     `json:"index_id"`
	State   IndexState `json:"state"`

	// BackingURI is the actual provider-side name, which may carry a
	// timestamp suffix assigned at creation.
	BackingURI      string    `json:"backing_uri"`
	CreatedAt       time.Time `json:"created_at"`
	DocCount        int       `json:"doc_count"`
	LastReindexedAt time.Time `json:"last_reindexed_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// SearchSettings is the persisted per-brand search configuration.
type SearchSettings struct {
	SearchMethod string `json:"searchMethod"`
}

// SearchMethodFallback selects the local text index.
const SearchMethodFallback = "fallbackText"

// Manager owns index lifecycle and the search path. The name cache maps
// brandId to the provider-accepted backing name so that delete and get
// find timestamp-suffixed indexes without modification.
type Manager struct {
	vectors  vector.Provider
	embedder embedders.Embedder
	docs     storage.DocumentDB
	library  *Library
	expander *Expander
	cfg      config.SearchConfig

	cache  sync.Map // brandID -> backing name
	logger *slog.Logger
}

func NewManager(vectors vector.Provider, embedder embedders.Embedder, docs storage.DocumentDB, library *Library, expander *Expander, cfg config.SearchConfig) *Manager {
	return &Manager{
		vectors:  vectors,
		embedder: embedder,
		docs:     docs,
		library:  library,
		expander: expander,
		cfg:      cfg,
		logger:   logger.GetLogger(),
	}
}

func statusPath(brandID string) string {
	return fmt.Sprintf("brands/%s/status/indexing", brandID)
}

func settingsPath(brandID string) string {
	return fmt.Sprintf("brands/%s/settings/search", brandID)
}

func canonicalIndexName(brandID string) string {
	return "momentum-media-" + brandID
}

func newIndexName(brandID string) string {
	return fmt.Sprintf("momentum-media-%s-%d", brandID, time.Now().Unix())
}

// Status returns the persisted descriptor, or an absent one when the
// brand has no index record.
func (m *Manager) Status(ctx context.Context, brandID string) (IndexDescriptor, error) {
	var desc IndexDescriptor
	err := m.docs.Get(ctx, statusPath(brandID), &desc)
	if errors.Is(err, storage.ErrDocNotFound) {
		return IndexDescriptor{BrandID: brandID, State: IndexAbsent}, nil
	}
	if err != nil {
		return IndexDescriptor{}, err
	}
	return desc, nil
}

func (m *Manager) saveDescriptor(ctx context.Context, desc IndexDescriptor) error {
	return m.docs.Set(ctx, statusPath(desc.BrandID), desc)
}

// Create provisions a vector collection for the brand and installs the
// cache entry mapping brandId to the provider-assigned name.
func (m *Manager) Create(ctx context.Context, brandID string) (IndexDescriptor, error) {
	desc, err := m.Status(ctx, brandID)
	if err != nil {
		return IndexDescriptor{}, err
	}
	if desc.State == IndexActive {
		return desc, nil
	}

	name := newIndexName(brandID)
	desc = IndexDescriptor{
		BrandID:    brandID,
		IndexID:    name,
		State:      IndexCreating,
		BackingURI: name,
		CreatedAt:  time.Now(),
	}
	if err := m.saveDescriptor(ctx, desc); err != nil {
		return IndexDescriptor{}, err
	}

	if err := m.vectors.CreateCollection(ctx, name, m.embedder.Dimension()); err != nil {
		desc.State = IndexError
		desc.LastError = err.Error()
		_ = m.saveDescriptor(ctx, desc)
		return desc, fmt.Errorf("index creation failed for brand %s: %w", brandID, err)
	}

	desc.State = IndexActive
	desc.LastError = ""
	if err := m.saveDescriptor(ctx, desc); err != nil {
		return IndexDescriptor{}, err
	}
	m.cache.Store(brandID, name)

	if err := m.SetSearchMethod(ctx, brandID, tenant.SearchMethodVector); err != nil {
		m.logger.Warn("failed to persist search method", "brand_id", brandID, "error", err)
	}

	m.logger.Info("media index created", "brand_id", brandID, "index", name)
	return desc, nil
}

// Delete tears down the brand's index. The cached backing name is
// preferred; on cache miss the persisted descriptor and then the
// canonical name are tried. A dangling delete operation counts as
// success iff post-hoc verification confirms the collection is gone.
func (m *Manager) Delete(ctx context.Context, brandID string) error {
	name := m.backingName(ctx, brandID)

	desc, err := m.Status(ctx, brandID)
	if err != nil {
		return err
	}
	desc.BrandID = brandID
	desc.State = IndexDeleting
	if err := m.saveDescriptor(ctx, desc); err != nil {
		return err
	}

	deleteErr := m.vectors.DeleteCollection(ctx, name)

	exists, verifyErr := m.vectors.CollectionExists(ctx, name)
	if verifyErr == nil && !exists {
		// Absence is the success condition even when the delete call
		// itself returned a dangling-operation error.
		deleteErr = nil
	} else if deleteErr == nil && exists {
		deleteErr = fmt.Errorf("collection %s still present after delete", name)
	}

	if deleteErr != nil {
		desc.State = IndexError
		desc.LastError = deleteErr.Error()
		_ = m.saveDescriptor(ctx, desc)
		return fmt.Errorf("index deletion failed for brand %s: %w", brandID, deleteErr)
	}

	m.cache.Delete(brandID)
	desc.State = IndexAbsent
	desc.BackingURI = ""
	desc.DocCount = 0
	desc.LastError = ""
	if err := m.saveDescriptor(ctx, desc); err != nil {
		return err
	}

	if err := m.SetSearchMethod(ctx, brandID, SearchMethodFallback); err != nil {
		m.logger.Warn("failed to switch brand to fallback search", "brand_id", brandID, "error", err)
	}

	m.logger.Info("media index deleted", "brand_id", brandID, "index", name)
	return nil
}

// ForceRecreate deletes then recreates the index; used to recover from
// the error state.
func (m *Manager) ForceRecreate(ctx context.Context, brandID string) (IndexDescriptor, error) {
	if err := m.Delete(ctx, brandID); err != nil {
		m.logger.Warn("delete before recreate failed, continuing", "brand_id", brandID, "error", err)
	}
	return m.Create(ctx, brandID)
}

// backingName resolves the provider-side collection name: cache first,
// then the persisted descriptor, then the canonical form.
func (m *Manager) backingName(ctx context.Context, brandID string) string {
	if cached, ok := m.cache.Load(brandID); ok {
		return cached.(string)
	}
	if desc, err := m.Status(ctx, brandID); err == nil && desc.BackingURI != "" {
		m.cache.Store(brandID, desc.BackingURI)
		return desc.BackingURI
	}
	return canonicalIndexName(brandID)
}

// SearchMethod returns the brand's configured method, defaulting to the
// fallback text index when nothing is persisted.
func (m *Manager) SearchMethod(ctx context.Context, brandID string) string {
	var settings SearchSettings
	if err := m.docs.Get(ctx, settingsPath(brandID), &settings); err != nil {
		return SearchMethodFallback
	}
	if strings.TrimSpace(settings.SearchMethod) == "" {
		return SearchMethodFallback
	}
	return settings.SearchMethod
}

func (m *Manager) SetSearchMethod(ctx context.Context, brandID, method string) error {
	return m.docs.Set(ctx, settingsPath(brandID), SearchSettings{SearchMethod: method})
}

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
	"time"

	"github.com/google/uuid"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/storage"
)

// ErrMediaNotFound is returned when a library item does not exist.
var ErrMediaNotFound = errors.New("media item not found")

// Library is the brand-scoped media library over the document DB.
type Library struct {
	docs storage.DocumentDB
}

func NewLibrary(docs storage.DocumentDB) *Library {
	return &Library{docs: docs}
}

func mediaPath(brandID, mediaID string) string {
	return fmt.Sprintf("brands/%s/media/%s", brandID, mediaID)
}

func mediaPrefix(brandID string) string {
	return fmt.Sprintf("brands/%s/media", brandID)
}

// Register stores a library item, assigning an ID and creation time when
// absent.
func (l *Library) Register(ctx context.Context, item *protocol.MediaLibraryItem) error {
	if item.BrandID == "" {
		return fmt.Errorf("media item requires a brand id")
	}
	if item.MediaID == "" {
		item.MediaID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	return l.docs.Set(ctx, mediaPath(item.BrandID, item.MediaID), item)
}

func (l *Library) Get(ctx context.Context, brandID, mediaID string) (*protocol.MediaLibraryItem, error) {
	var item protocol.MediaLibraryItem
	err := l.docs.Get(ctx, mediaPath(brandID, mediaID), &item)
	if errors.Is(err, storage.ErrDocNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, mediaID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns every library item for the brand.
func (l *Library) List(ctx context.Context, brandID string) ([]protocol.MediaLibraryItem, error) {
	paths, err := l.docs.List(ctx, mediaPrefix(brandID))
	if err != nil {
		return nil, err
	}

	items := make([]protocol.MediaLibraryItem, 0, len(paths))
	for _, path := range paths {
		var item protocol.MediaLibraryItem
		if err := l.docs.Get(ctx, path, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Update overwrites an existing item; the item must already exist.
func (l *Library) Update(ctx context.Context, item *protocol.MediaLibraryItem) error {
	if _, err := l.Get(ctx, item.BrandID, item.MediaID); err != nil {
		return err
	}
	return l.docs.Set(ctx, mediaPath(item.BrandID, item.MediaID), item)
}

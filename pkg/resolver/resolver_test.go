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

package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

func imageHandle(id, uri string) protocol.MediaHandle {
	return protocol.MediaHandle{ID: id, Kind: protocol.MediaImage, URI: uri, Source: protocol.SourceGenerated}
}

func historyWithImages(uris ...string) []protocol.Event {
	var events []protocol.Event
	for _, uri := range uris {
		event := protocol.NewEvent(protocol.EventModelText, "assistant", "here you go")
		event.Media = []protocol.MediaHandle{imageHandle(uri, uri)}
		events = append(events, event)
	}
	return events
}

func TestResolveExplicitAttachments(t *testing.T) {
	r := New(nil)
	attachments := []protocol.MediaHandle{imageHandle("a1", "https://img/a1.png")}

	set := r.Resolve(context.Background(), "brand1", "use this", attachments, nil)

	require.Len(t, set.Items, 1)
	assert.Equal(t, protocol.MethodExplicitUpload, set.Method)
	assert.Equal(t, 1.0, set.Confidence)
	assert.Equal(t, "attached by user", set.Items[0].Provenance)
}

func TestResolvePronounEdit(t *testing.T) {
	// "make it blue" with one prior image must resolve to that image.
	r := New(nil)
	history := historyWithImages("https://img/u1.png")

	set := r.Resolve(context.Background(), "brand1", "make it blue", nil, history)

	require.Len(t, set.Items, 1)
	assert.Equal(t, "https://img/u1.png", set.Items[0].URI)
	assert.Equal(t, protocol.MethodLastImage, set.Method)
	assert.GreaterOrEqual(t, set.Confidence, 0.75)
}

func TestResolveSingularPicksNewest(t *testing.T) {
	r := New(nil)
	history := historyWithImages("https://img/old.png", "https://img/new.png")

	set := r.Resolve(context.Background(), "brand1", "crop that image", nil, history)

	require.Len(t, set.Items, 1)
	assert.Equal(t, "https://img/new.png", set.Items[0].URI)
}

func TestResolveOrdinal(t *testing.T) {
	r := New(nil)
	history := historyWithImages("https://img/1.png", "https://img/2.png", "https://img/3.png")

	t.Run("numbered reference", func(t *testing.T) {
		set := r.Resolve(context.Background(), "brand1", "use image 2", nil, history)
		require.Len(t, set.Items, 1)
		assert.Equal(t, "https://img/2.png", set.Items[0].URI)
		assert.Equal(t, protocol.MethodIndexedReference, set.Method)
		assert.Equal(t, 0.9, set.Confidence)
	})

	t.Run("ordinal word", func(t *testing.T) {
		set := r.Resolve(context.Background(), "brand1", "the third image please", nil, history)
		require.Len(t, set.Items, 1)
		assert.Equal(t, "https://img/3.png", set.Items[0].URI)
	})

	t.Run("out of range", func(t *testing.T) {
		set := r.Resolve(context.Background(), "brand1", "use image 9", nil, history)
		assert.Equal(t, protocol.MethodNone, set.Method)
	})
}

func TestResolvePluralTakesWholeTurn(t *testing.T) {
	r := New(nil)
	event := protocol.NewEvent(protocol.EventModelText, "assistant", "two options")
	event.Media = []protocol.MediaHandle{
		imageHandle("a", "https://img/a.png"),
		imageHandle("b", "https://img/b.png"),
	}

	set := r.Resolve(context.Background(), "brand1", "animate both of them", nil, []protocol.Event{event})

	require.Len(t, set.Items, 2)
	assert.Equal(t, 0.5, set.Confidence)
}

func TestResolveLibraryLookupClamped(t *testing.T) {
	lookup := func(ctx context.Context, brandID, query string) ([]protocol.MediaHandle, float64, error) {
		return []protocol.MediaHandle{imageHandle("logo", "https://img/logo.png")}, 1.0, nil
	}
	r := New(lookup)

	set := r.Resolve(context.Background(), "brand1", "put our acme logo on it", nil, nil)

	require.Len(t, set.Items, 1)
	assert.Equal(t, protocol.MethodLibraryLookup, set.Method)
	assert.Equal(t, 0.95, set.Confidence)
	assert.Equal(t, protocol.SourceLibraryLookup, set.Items[0].Source)
}

func TestResolveNothing(t *testing.T) {
	r := New(nil)

	set := r.Resolve(context.Background(), "brand1", "write a haiku about spring", nil, nil)

	assert.Empty(t, set.Items)
	assert.Equal(t, protocol.MethodNone, set.Method)
	assert.Zero(t, set.Confidence)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := New(nil)
	history := historyWithImages("https://img/1.png", "https://img/2.png")

	first := r.Resolve(context.Background(), "brand1", "edit that image", nil, history)
	for i := 0; i < 10; i++ {
		again := r.Resolve(context.Background(), "brand1", "edit that image", nil, history)
		assert.Equal(t, first, again)
	}
}

func TestMentionsMedia(t *testing.T) {
	assert.True(t, MentionsMedia("resize the image"))
	assert.True(t, MentionsMedia("use image 2"))
	assert.True(t, MentionsMedia("animate both"))
	assert.False(t, MentionsMedia("write a tagline"))
	// Bare pronouns are too ambiguous to warn about.
	assert.False(t, MentionsMedia("make it shorter"))
}

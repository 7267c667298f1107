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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

func libraryItem(title string, tags ...string) protocol.MediaLibraryItem {
	return protocol.MediaLibraryItem{
		MediaID: title,
		BrandID: "brand1",
		Kind:    protocol.MediaImage,
		Title:   title,
		Tags:    tags,
	}
}

func TestSingularizeFixedPoint(t *testing.T) {
	cases := map[string]string{
		"categories": "category",
		"boxes":      "box",
		"dishes":     "dish",
		"images":     "image",
		"category":   "category",
		"glass":      "glass", // double-s words are not plurals
	}
	for in, want := range cases {
		got := Singularize(in)
		assert.Equal(t, want, got, "Singularize(%q)", in)
		assert.Equal(t, got, Singularize(got), "Singularize is a fixed point for %q", in)
	}
}

func TestFallbackPluralQueryMatchesSingularTag(t *testing.T) {
	items := []protocol.MediaLibraryItem{libraryItem("catalog shot", "category")}

	hits := FallbackSearch(items, "categories", DefaultFallbackConfig())
	require.Len(t, hits, 1)
	assert.GreaterOrEqual(t, hits[0].Score, 0.9)
}

func TestFallbackSynonymMatch(t *testing.T) {
	items := []protocol.MediaLibraryItem{libraryItem("summer photo")}

	hits := FallbackSearch(items, "summer picture", DefaultFallbackConfig())
	require.Len(t, hits, 1)
	assert.GreaterOrEqual(t, hits[0].Score, 0.9)
}

func TestFallbackShortWordsNeedExactness(t *testing.T) {
	// "dog" must not fuzzy-match "dot" or "do": short words only compare
	// against same-length tokens and the 0.9 ratio rejects one-letter
	// differences at length three.
	items := []protocol.MediaLibraryItem{
		libraryItem("dot pattern"),
		libraryItem("do not disturb sign"),
	}

	hits := FallbackSearch(items, "dog", DefaultFallbackConfig())
	assert.Empty(t, hits)
}

func TestFallbackSearchesVisionFields(t *testing.T) {
	item := libraryItem("IMG_2041")
	item.VisionKeywords = []string{"sunset", "beach"}
	item.VisionDescription = "A golden sunset over the ocean."

	hits := FallbackSearch([]protocol.MediaLibraryItem{item}, "sunset", DefaultFallbackConfig())
	require.Len(t, hits, 1)
	assert.Equal(t, 1.0, hits[0].Score)
}

func TestFallbackOrdersByScore(t *testing.T) {
	exact := libraryItem("mountain hike")
	loose := libraryItem("mountains and valleys photo")

	hits := FallbackSearch([]protocol.MediaLibraryItem{loose, exact}, "mountain hike", DefaultFallbackConfig())
	require.Len(t, hits, 2)
	assert.Equal(t, "mountain hike", hits[0].Item.Title)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"red", "panda", "3"}, Tokenize("Red, panda #3!"))
	assert.Empty(t, Tokenize("  ---  "))
}

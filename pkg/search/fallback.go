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
	"sort"
	"strings"
	"unicode"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// FallbackConfig tunes the text matcher used when no vector index is
// available. The thresholds are deliberately conservative: short words
// only match fuzzily against same-length neighbours.
type FallbackConfig struct {
	FuzzyThreshold float64
	ShortWordLen   int
	MinScore       float64
}

func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		FuzzyThreshold: 0.9,
		ShortWordLen:   5,
		MinScore:       0.5,
	}
}

// FallbackHit is one text-match result.
type FallbackHit struct {
	Item  protocol.MediaLibraryItem
	Score float64
}

var synonymGroups = [][]string{
	{"image", "picture", "photo", "photograph"},
	{"video", "clip", "movie", "footage"},
	{"music", "song", "track", "audio"},
	{"logo", "brandmark", "emblem"},
	{"banner", "header"},
}

var synonyms = buildSynonyms()

func buildSynonyms() map[string][]string {
	index := make(map[string][]string)
	for _, group := range synonymGroups {
		for _, word := range group {
			for _, other := range group {
				if other != word {
					index[word] = append(index[word], other)
				}
			}
		}
	}
	return index
}

// FallbackSearch matches a query against the searchable fields of each
// item: title, description, tags, and the vision analysis fields. Tokens
// are plural-normalised and lightly stemmed before comparison; fuzzy
// matching applies a high ratio threshold.
func FallbackSearch(items []protocol.MediaLibraryItem, query string, cfg FallbackConfig) []FallbackHit {
	queryTokens := normalizeTokens(Tokenize(query))
	if len(queryTokens) == 0 {
		return nil
	}

	var hits []FallbackHit
	for _, item := range items {
		itemTokens := normalizeTokens(itemSearchTokens(item))
		score := matchScore(queryTokens, itemTokens, cfg)
		if score >= cfg.MinScore {
			hits = append(hits, FallbackHit{Item: item, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

func itemSearchTokens(item protocol.MediaLibraryItem) []string {
	var tokens []string
	tokens = append(tokens, Tokenize(item.Title)...)
	tokens = append(tokens, Tokenize(item.Description)...)
	for _, tag := range item.Tags {
		tokens = append(tokens, Tokenize(tag)...)
	}
	tokens = append(tokens, Tokenize(item.VisionDescription)...)
	for _, kw := range item.VisionKeywords {
		tokens = append(tokens, Tokenize(kw)...)
	}
	for _, cat := range item.VisionCategories {
		tokens = append(tokens, Tokenize(cat)...)
	}
	tokens = append(tokens, Tokenize(item.EnhancedSearchText)...)
	return tokens
}

// matchScore averages each query token's best match against the item.
func matchScore(queryTokens, itemTokens []string, cfg FallbackConfig) float64 {
	if len(itemTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, q := range queryTokens {
		best := 0.0
		for _, t := range itemTokens {
			if s := tokenScore(q, t, cfg); s > best {
				best = s
			}
			if best == 1.0 {
				break
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

func tokenScore(q, t string, cfg FallbackConfig) float64 {
	if q == t {
		return 1.0
	}
	for _, syn := range synonyms[q] {
		if syn == t {
			return 0.9
		}
	}
	if Stem(q) == Stem(t) {
		return 0.85
	}

	// Fuzzy: short words only match same-length neighbours, which at the
	// 0.9 threshold means they effectively require exactness.
	if len(q) <= cfg.ShortWordLen && len(q) != len(t) {
		return 0
	}
	if ratio := fuzzyRatio(q, t); ratio >= cfg.FuzzyThreshold {
		return ratio
	}
	return 0
}

// Tokenize lowercases and splits on non-alphanumeric runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizeTokens singularises every token. Singularisation is a fixed
// point: applying it twice yields the same token set.
func normalizeTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = Singularize(token)
	}
	return out
}

// Singularize reduces common English plural forms. The result is stable
// under re-application.
func Singularize(word string) string {
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case len(word) > 3 && (strings.HasSuffix(word, "ses") ||
		strings.HasSuffix(word, "xes") || strings.HasSuffix(word, "zes") ||
		strings.HasSuffix(word, "ches") || strings.HasSuffix(word, "shes")):
		return word[:len(word)-2]
	case len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	default:
		return word
	}
}

// Stem strips common verb and adverb suffixes. Deliberately lightweight.
func Stem(word string) string {
	switch {
	case len(word) > 5 && strings.HasSuffix(word, "ing"):
		return word[:len(word)-3]
	case len(word) > 4 && strings.HasSuffix(word, "ed"):
		return word[:len(word)-2]
	case len(word) > 4 && strings.HasSuffix(word, "ly"):
		return word[:len(word)-2]
	default:
		return word
	}
}

// fuzzyRatio is a normalised Levenshtein similarity in [0,1].
func fuzzyRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

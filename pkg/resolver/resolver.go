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

// Package resolver turns a user message plus attachments plus recent
// history into a concrete, ordered media set with provenance and
// confidence. Resolution is pure over its inputs and never fails:
// ambiguity is expressed as lower confidence.
package resolver

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

const (
	confidenceExplicit = 1.0
	confidenceOrdinal  = 0.9
	confidenceSingular = 0.75
	confidencePlural   = 0.5
	lookupClamp        = 0.95
)

// LookupFunc queries a tenant's media library for assets named in free
// text. Score is the provider score before clamping.
type LookupFunc func(ctx context.Context, brandID, query string) ([]protocol.MediaHandle, float64, error)

// Resolver resolves deictic and named media references. A nil lookup
// disables library resolution.
type Resolver struct {
	lookup LookupFunc
}

func New(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

var (
	singularDeicticRe = regexp.MustCompile(`(?i)\b(?:the|that|this)\s+(?:last\s+)?(image|photo|picture|video|clip|audio|song|track|pdf|document)\b`)
	ordinalWordRe     = regexp.MustCompile(`(?i)\b(?:the\s+)?(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\s+(image|photo|picture|video)\b`)
	numberedRe        = regexp.MustCompile(`(?i)\b(image|photo|picture|video)\s+(?:#\s*)?(\d+)\b`)
	pluralRe          = regexp.MustCompile(`(?i)\b(both(?:\s+(?:images|photos|videos|of\s+them))?|these(?:\s+(?:two|images|photos|videos))?|those|all\s+of\s+them)\b`)
	pronounRe         = regexp.MustCompile(`(?i)\b(?:it|that\s+one|this\s+one)\b`)
	libraryRe         = regexp.MustCompile(`(?i)\b(?:our|the)\s+([\w][\w -]{2,60}?)\s+(image|photo|picture|video|asset|logo|banner|hero)\b`)
)

// Resolve applies the resolution policy in priority order: explicit
// attachments, deictic/ordinal references against history, then a
// library lookup for named assets.
func (r *Resolver) Resolve(ctx context.Context, brandID, userText string, attachments []protocol.MediaHandle, history []protocol.Event) protocol.ResolvedMediaSet {
	if len(attachments) > 0 {
		items := make([]protocol.MediaHandle, len(attachments))
		copy(items, attachments)
		for i := range items {
			if items[i].Provenance == "" {
				items[i].Provenance = "attached by user"
			}
		}
		return protocol.ResolvedMediaSet{
			Items:      items,
			Method:     protocol.MethodExplicitUpload,
			Confidence: confidenceExplicit,
			UserIntent: userText,
		}
	}

	if set, ok := r.resolveOrdinal(userText, history); ok {
		return set
	}
	if set, ok := r.resolvePlural(userText, history); ok {
		return set
	}
	if set, ok := r.resolveSingular(userText, history); ok {
		return set
	}
	if set, ok := r.resolveLibrary(ctx, brandID, userText); ok {
		return set
	}

	return protocol.ResolvedMediaSet{
		Method:     protocol.MethodNone,
		Confidence: 0,
		UserIntent: userText,
	}
}

// resolveSingular handles "the/that/this image" with no ordinal: the
// newest handle of the matching kind wins.
func (r *Resolver) resolveSingular(userText string, history []protocol.Event) (protocol.ResolvedMediaSet, bool) {
	var kind protocol.MediaKind
	anyKind := false
	if match := singularDeicticRe.FindStringSubmatch(userText); match != nil {
		kind = kindFromNoun(match[1])
	} else if pronounRe.MatchString(userText) {
		// "make it blue" with no noun: the newest handle of any kind.
		anyKind = true
	} else {
		return protocol.ResolvedMediaSet{}, false
	}

	for i := len(history) - 1; i >= 0; i-- {
		for j := len(history[i].Media) - 1; j >= 0; j-- {
			handle := history[i].Media[j]
			if !anyKind && handle.Kind != kind {
				continue
			}
			if anyKind {
				kind = handle.Kind
			}
			handle.Provenance = "last " + string(kind) + " in prior turn"
			return protocol.ResolvedMediaSet{
				Items:      []protocol.MediaHandle{handle},
				Method:     protocol.MethodLastImage,
				Confidence: confidenceSingular,
				UserIntent: userText,
			}, true
		}
	}
	return protocol.ResolvedMediaSet{}, false
}

// resolveOrdinal handles "image 2" and "the second image": the N-th
// handle of the kind in chronological session order.
func (r *Resolver) resolveOrdinal(userText string, history []protocol.Event) (protocol.ResolvedMediaSet, bool) {
	var kind protocol.MediaKind
	n := 0

	if match := numberedRe.FindStringSubmatch(userText); match != nil {
		kind = kindFromNoun(match[1])
		n, _ = strconv.Atoi(match[2])
	} else if match := ordinalWordRe.FindStringSubmatch(userText); match != nil {
		kind = kindFromNoun(match[2])
		n = ordinalValue(match[1])
	}
	if n <= 0 {
		return protocol.ResolvedMediaSet{}, false
	}

	seen := 0
	for _, event := range history {
		for _, handle := range event.Media {
			if handle.Kind != kind {
				continue
			}
			seen++
			if seen == n {
				handle.Provenance = "resolved from ordinal reference"
				return protocol.ResolvedMediaSet{
					Items:      []protocol.MediaHandle{handle},
					Method:     protocol.MethodIndexedReference,
					Confidence: confidenceOrdinal,
					UserIntent: userText,
				}, true
			}
		}
	}
	return protocol.ResolvedMediaSet{}, false
}

// resolvePlural handles "both", "these", "all of them": every handle in
// the most recent turn that contained media.
func (r *Resolver) resolvePlural(userText string, history []protocol.Event) (protocol.ResolvedMediaSet, bool) {
	if !pluralRe.MatchString(userText) {
		return protocol.ResolvedMediaSet{}, false
	}

	for i := len(history) - 1; i >= 0; i-- {
		if len(history[i].Media) == 0 {
			continue
		}
		items := make([]protocol.MediaHandle, len(history[i].Media))
		copy(items, history[i].Media)
		for j := range items {
			items[j].Provenance = "plural reference to prior turn"
		}
		return protocol.ResolvedMediaSet{
			Items:      items,
			Method:     protocol.MethodIndexedReference,
			Confidence: confidencePlural,
			UserIntent: userText,
		}, true
	}
	return protocol.ResolvedMediaSet{}, false
}

// resolveLibrary asks the tenant's search index for a named asset.
// Provider scores are clamped so lookups never outrank an exact ordinal.
func (r *Resolver) resolveLibrary(ctx context.Context, brandID, userText string) (protocol.ResolvedMediaSet, bool) {
	if r.lookup == nil {
		return protocol.ResolvedMediaSet{}, false
	}
	match := libraryRe.FindStringSubmatch(userText)
	if match == nil {
		return protocol.ResolvedMediaSet{}, false
	}

	query := strings.TrimSpace(match[1] + " " + match[2])
	items, score, err := r.lookup(ctx, brandID, query)
	if err != nil || len(items) == 0 {
		return protocol.ResolvedMediaSet{}, false
	}

	if score > lookupClamp {
		score = lookupClamp
	}
	if score < 0 {
		score = 0
	}
	for i := range items {
		items[i].Source = protocol.SourceLibraryLookup
		if items[i].Provenance == "" {
			items[i].Provenance = "resolved from phrase '" + query + "'"
		}
	}
	return protocol.ResolvedMediaSet{
		Items:      items,
		Method:     protocol.MethodLibraryLookup,
		Confidence: score,
		UserIntent: userText,
	}, true
}

// MentionsMedia reports whether the message clearly invokes media; the
// runtime emits a notice when resolution confidence falls below 0.5 for
// such a message.
func MentionsMedia(userText string) bool {
	return singularDeicticRe.MatchString(userText) ||
		ordinalWordRe.MatchString(userText) ||
		numberedRe.MatchString(userText) ||
		pluralRe.MatchString(userText)
}

func kindFromNoun(noun string) protocol.MediaKind {
	switch strings.ToLower(noun) {
	case "image", "photo", "picture", "logo", "banner", "hero", "asset":
		return protocol.MediaImage
	case "video", "clip":
		return protocol.MediaVideo
	case "audio", "song", "track":
		return protocol.MediaAudio
	case "pdf", "document":
		return protocol.MediaPDF
	default:
		return protocol.MediaOther
	}
}

func ordinalValue(word string) int {
	switch strings.ToLower(word) {
	case "first", "1st":
		return 1
	case "second", "2nd":
		return 2
	case "third", "3rd":
		return 3
	case "fourth", "4th":
		return 4
	case "fifth", "5th":
		return 5
	default:
		return 0
	}
}

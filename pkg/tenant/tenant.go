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

// Package tenant carries per-request tenancy: brand and user identifiers,
// per-request tool settings, inbound attachments, and the resolved media
// set once computed. The context is passed by value into tool handlers so
// one request's state is never observable from another's.
package tenant

import (
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// sessionKeyDelim separates brand and user in a session key when either
// component contains an underscore. It cannot occur in identifiers.
const sessionKeyDelim = "\x1f"

// Settings are the per-request overrides from the chat payload. Empty
// fields fall back to the configured defaults.
type Settings struct {
	TextModel    string `json:"textModel,omitempty"`
	ImageModel   string `json:"imageModel,omitempty"`
	VideoModel   string `json:"videoModel,omitempty"`
	MusicModel   string `json:"musicModel,omitempty"`
	SearchMethod string `json:"searchMethod,omitempty"`
}

// SearchMethodVector selects the remote vector index; anything else uses
// the fallback text index.
const SearchMethodVector = "vertexIndex"

// Context is the per-request tenant record.
type Context struct {
	BrandID string
	UserID  string

	// Settings carries per-request model and search overrides.
	Settings Settings

	// TeamContext holds brand metadata (visual guidelines, voice) injected
	// into the system instruction.
	TeamContext string

	// Attachments are the media handles sent with the request.
	Attachments []protocol.MediaHandle

	// Resolved is set by the agent loop after media resolution.
	Resolved *protocol.ResolvedMediaSet
}

// SessionKey derives the session store key for a brand/user pair. The
// plain underscore form is used unless a component itself contains an
// underscore, in which case an unprintable delimiter keeps the key
// unambiguous.
func SessionKey(brandID, userID string) string {
	if strings.Contains(brandID, "_") || strings.Contains(userID, "_") {
		return brandID + sessionKeyDelim + userID
	}
	return brandID + "_" + userID
}

// Key returns the session key for this context.
func (c Context) Key() string {
	return SessionKey(c.BrandID, c.UserID)
}

// Valid reports whether the context names a tenant.
func (c Context) Valid() bool {
	return c.BrandID != "" && c.UserID != ""
}

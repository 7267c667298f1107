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

package protocol

import "time"

// MediaKind classifies a media handle.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaPDF   MediaKind = "pdf"
	MediaOther MediaKind = "other"
)

// MediaSource records how a handle entered the conversation.
type MediaSource string

const (
	SourceUploaded      MediaSource = "uploaded"
	SourceGenerated     MediaSource = "generated"
	SourceReinjected    MediaSource = "reinjected"
	SourceLibraryLookup MediaSource = "libraryLookup"
	SourceBrandSoul     MediaSource = "brandSoul"
)

// MediaHandle is a reference to a media asset in scope for a turn.
// URI is a signed URL or an object-store reference. Provenance records why
// the handle is in scope ("attached by user", "last image in prior turn").
type MediaHandle struct {
	ID         string      `json:"id"`
	Kind       MediaKind   `json:"kind"`
	URI        string      `json:"uri"`
	MimeType   string      `json:"mime_type,omitempty"`
	Source     MediaSource `json:"source"`
	Provenance string      `json:"provenance,omitempty"`
}

// ResolutionMethod tells how a ResolvedMediaSet was produced.
type ResolutionMethod string

const (
	MethodExplicitUpload   ResolutionMethod = "explicit_upload"
	MethodLastImage        ResolutionMethod = "last_image"
	MethodIndexedReference ResolutionMethod = "indexed_reference"
	MethodLibraryLookup    ResolutionMethod = "library_lookup"
	MethodNone             ResolutionMethod = "none"
)

// ResolvedMediaSet is the concrete, ordered media set the runtime commits
// to for a turn.
type ResolvedMediaSet struct {
	Items      []MediaHandle    `json:"items"`
	Method     ResolutionMethod `json:"method"`
	Confidence float64          `json:"confidence"`
	UserIntent string           `json:"user_intent,omitempty"`
}

// MediaLibraryItem is a brand-scoped library asset. Vision fields are
// populated by the analysis step and participate in fallback search.
type MediaLibraryItem struct {
	MediaID      string    `json:"media_id"`
	BrandID      string    `json:"brand_id"`
	Kind         MediaKind `json:"kind"`
	StorageURI   string    `json:"storage_uri"`
	ThumbnailURI string    `json:"thumbnail_uri,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Source       string    `json:"source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`

	VisionDescription  string   `json:"vision_description,omitempty"`
	VisionKeywords     []string `json:"vision_keywords,omitempty"`
	VisionCategories   []string `json:"vision_categories,omitempty"`
	EnhancedSearchText string   `json:"enhanced_search_text,omitempty"`
}

// KindFromMime maps a MIME type to a MediaKind.
func KindFromMime(mime string) MediaKind {
	switch {
	case len(mime) >= 6 && mime[:6] == "image/":
		return MediaImage
	case len(mime) >= 6 && mime[:6] == "video/":
		return MediaVideo
	case len(mime) >= 6 && mime[:6] == "audio/":
		return MediaAudio
	case mime == "application/pdf":
		return MediaPDF
	default:
		return MediaOther
	}
}

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

package tools

import "fmt"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ToolResult is the structured envelope a tool hands back. Content is
// the primary display field; Message exists for backward compatibility.
// Media URLs carry both a singular and a plural form: consumers depend
// on imageUrl == imageUrls[0], and the registry enforces it.
type ToolResult struct {
	Status  string `json:"status"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`

	ImageURL  string   `json:"imageUrl,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty"`
	VideoURL  string   `json:"videoUrl,omitempty"`
	VideoURLs []string `json:"videoUrls,omitempty"`
	MusicURL  string   `json:"musicUrl,omitempty"`
	MusicURLs []string `json:"musicUrls,omitempty"`

	ImageBase64  string   `json:"imageBase64,omitempty"`
	ImageBase64s []string `json:"imageBase64s,omitempty"`

	// Data carries tool-specific fields merged into the flat payload.
	Data map[string]any `json:"-"`
}

// Success builds a success result.
func Success(content string) ToolResult {
	return ToolResult{Status: StatusSuccess, Content: content, Message: content}
}

// Errorf builds an error result.
func Errorf(format string, args ...any) ToolResult {
	msg := fmt.Sprintf(format, args...)
	return ToolResult{Status: StatusError, Content: msg, Message: msg}
}

// IsError reports whether the result carries an error status.
func (r ToolResult) IsError() bool { return r.Status == StatusError }

// NormalizeMedia enforces the singular/plural duality in both
// directions for every media field pair.
func (r *ToolResult) NormalizeMedia() {
	r.ImageURL, r.ImageURLs = normalizePair(r.ImageURL, r.ImageURLs)
	r.VideoURL, r.VideoURLs = normalizePair(r.VideoURL, r.VideoURLs)
	r.MusicURL, r.MusicURLs = normalizePair(r.MusicURL, r.MusicURLs)
	r.ImageBase64, r.ImageBase64s = normalizePair(r.ImageBase64, r.ImageBase64s)
}

func normalizePair(singular string, plural []string) (string, []string) {
	if len(plural) > 0 {
		return plural[0], plural
	}
	if singular != "" {
		return singular, []string{singular}
	}
	return "", nil
}

// Payload flattens the result into the map carried on toolResult events
// and stream frames.
func (r ToolResult) Payload() map[string]any {
	payload := make(map[string]any, len(r.Data)+8)
	for k, v := range r.Data {
		payload[k] = v
	}
	payload["status"] = r.Status
	if r.Content != "" {
		payload["content"] = r.Content
	}
	if r.Message != "" {
		payload["message"] = r.Message
	}
	setPair(payload, "imageUrl", "imageUrls", r.ImageURL, r.ImageURLs)
	setPair(payload, "videoUrl", "videoUrls", r.VideoURL, r.VideoURLs)
	setPair(payload, "musicUrl", "musicUrls", r.MusicURL, r.MusicURLs)
	setPair(payload, "imageBase64", "imageBase64s", r.ImageBase64, r.ImageBase64s)
	return payload
}

func setPair(payload map[string]any, singularKey, pluralKey, singular string, plural []string) {
	if singular != "" {
		payload[singularKey] = singular
	}
	if len(plural) > 0 {
		payload[pluralKey] = plural
	}
}

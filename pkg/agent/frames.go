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

package agent

import (
	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// Frame is one newline-delimited JSON object on the response stream.
// Frames are flat maps so tool results can merge arbitrary fields next
// to the type discriminator.
type Frame map[string]any

const (
	FrameLog           = "log"
	FrameThought       = "thought"
	FrameToolCall      = "tool_call"
	FrameToolResult    = "tool_result"
	FrameTextDelta     = "text_delta"
	FrameContextUpdate = "context_update"
	FrameFinalResponse = "final_response"
	FrameError         = "error"
)

// Emitter delivers frames to the client. Implementations must flush
// after every frame.
type Emitter interface {
	Emit(frame Frame) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(frame Frame) error

func (f EmitterFunc) Emit(frame Frame) error { return f(frame) }

func LogFrame(content string) Frame {
	return Frame{"type": FrameLog, "content": content}
}

func ToolCallFrame(call *protocol.ToolCall) Frame {
	return Frame{"type": FrameToolCall, "name": call.Name, "args": call.Arguments}
}

// ToolResultFrame merges the flattened tool payload under the frame
// envelope.
func ToolResultFrame(name string, payload map[string]any) Frame {
	frame := make(Frame, len(payload)+2)
	for k, v := range payload {
		frame[k] = v
	}
	frame["type"] = FrameToolResult
	frame["name"] = name
	return frame
}

func TextDeltaFrame(delta string) Frame {
	return Frame{"type": FrameTextDelta, "delta": delta}
}

func ContextUpdateFrame(tokenUsage int, activeMedia []protocol.MediaHandle) Frame {
	if activeMedia == nil {
		activeMedia = []protocol.MediaHandle{}
	}
	return Frame{"type": FrameContextUpdate, "tokenUsage": tokenUsage, "activeMedia": activeMedia}
}

// MediaURLs collects tool-produced media for the final frame, in
// emission order.
type MediaURLs struct {
	Images []string
	Videos []string
	Music  []string
}

func (m *MediaURLs) Merge(payload map[string]any) {
	m.Images = appendURLs(m.Images, payload, "imageUrls")
	m.Videos = appendURLs(m.Videos, payload, "videoUrls")
	m.Music = appendURLs(m.Music, payload, "musicUrls")
}

func appendURLs(dst []string, payload map[string]any, key string) []string {
	switch urls := payload[key].(type) {
	case []string:
		return append(dst, urls...)
	case []any:
		for _, u := range urls {
			if s, ok := u.(string); ok {
				dst = append(dst, s)
			}
		}
	}
	return dst
}

// FinalResponseFrame carries the accumulated text plus collected media
// with the singular field mirroring the first plural element.
func FinalResponseFrame(content string, media MediaURLs) Frame {
	frame := Frame{"type": FrameFinalResponse, "content": content}
	setFramePair(frame, "imageUrl", "imageUrls", media.Images)
	setFramePair(frame, "videoUrl", "videoUrls", media.Videos)
	setFramePair(frame, "musicUrl", "musicUrls", media.Music)
	return frame
}

func ErrorFrame(message string) Frame {
	return Frame{"type": FrameError, "message": message}
}

func setFramePair(frame Frame, singularKey, pluralKey string, urls []string) {
	if len(urls) == 0 {
		return
	}
	frame[singularKey] = urls[0]
	frame[pluralKey] = urls
}

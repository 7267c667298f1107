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

// Package protocol defines the conversation data model shared by the agent
// runtime, the session store and the HTTP layer: events, tool calls and
// media handles.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what a session event records.
type EventKind string

const (
	EventUserTurn     EventKind = "userTurn"
	EventModelThought EventKind = "modelThought"
	EventToolCall     EventKind = "toolCall"
	EventToolResult   EventKind = "toolResult"
	EventModelText    EventKind = "modelText"
	EventSystemNotice EventKind = "systemNotice"
)

// Event is one entry in a session's append-only log. Events are immutable
// once appended; the ordinal is assigned by the session store and is
// strictly increasing within a session.
type Event struct {
	Ordinal   int64     `json:"ordinal"`
	Kind      EventKind `json:"kind"`
	Author    string    `json:"author"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// ToolCall is set for EventToolCall events; ToolResult for
	// EventToolResult events. The two halves of an invocation share
	// InvocationID so trimming can keep them together.
	ToolCall     *ToolCall      `json:"tool_call,omitempty"`
	ToolResult   map[string]any `json:"tool_result,omitempty"`
	InvocationID string         `json:"invocation_id,omitempty"`

	// Media lists handles attached to or produced by this event, in
	// emission order.
	Media []MediaHandle `json:"media,omitempty"`
}

// ToolCall is a request by the model to invoke a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// NewToolCall creates a tool call with a fresh invocation id.
func NewToolCall(name string, args map[string]any) *ToolCall {
	return &ToolCall{
		ID:        "call_" + uuid.NewString(),
		Name:      name,
		Arguments: args,
	}
}

// NewEvent creates an event stamped with the current time. The ordinal is
// left zero; the session store assigns it on append.
func NewEvent(kind EventKind, author, text string) Event {
	return Event{
		Kind:      kind,
		Author:    author,
		Text:      text,
		Timestamp: time.Now(),
	}
}

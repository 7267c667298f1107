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

// Package session implements the append-only per-tenant event log with
// token-budgeted trimming. Writes for one session key are serialised;
// ordinals are assigned by the store and are strictly increasing and
// contiguous.
package session

import (
	"context"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// Stats summarises a session for the stats endpoint.
type Stats struct {
	EventCount int       `json:"eventCount"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Store is the session store port. Implementations must serialise
// concurrent writes per key and must never rewrite a log in place:
// trimming atomically replaces the log with a suffix of itself.
type Store interface {
	// AppendEvents appends events in order, assigning ordinals.
	AppendEvents(ctx context.Context, key string, events []protocol.Event) error

	// Load returns the full event log for the key, oldest first.
	Load(ctx context.Context, key string) ([]protocol.Event, error)

	// Replace atomically installs events as the new log. The caller
	// guarantees events is a suffix of the current log, possibly with
	// new trailing events appended.
	Replace(ctx context.Context, key string, events []protocol.Event) error

	// Delete removes the session entirely.
	Delete(ctx context.Context, key string) error

	// DeleteLastTurn removes the trailing turn: the last userTurn event
	// and everything after it.
	DeleteLastTurn(ctx context.Context, key string) error

	Stats(ctx context.Context, key string) (Stats, error)

	Close() error
}

// lastTurnStart returns the index of the last userTurn event, or -1.
func lastTurnStart(events []protocol.Event) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == protocol.EventUserTurn {
			return i
		}
	}
	return -1
}

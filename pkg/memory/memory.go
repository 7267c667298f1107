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

// Package memory keeps per-user long-term facts synchronised between a
// remote memory provider and the local document DB. The local factId is
// always the tail of the remote resource name, so a delete targets the
// same identifier in both stores and succeeds on the first attempt.
package memory

import (
	"context"
	"strings"
	"time"
)

// Fact is one atomic long-term memory record.
type Fact struct {
	FactID    string    `json:"fact_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// RemoteID is the full resource name at the memory provider. Its
	// final path segment equals FactID.
	RemoteID string `json:"remote_id"`
}

// LongTermMemory is the remote memory provider port. Append returns the
// provider's full resource name for the new record.
type LongTermMemory interface {
	Append(ctx context.Context, userID, text string) (remoteID string, err error)
	Search(ctx context.Context, userID, query string) ([]Fact, error)
	Delete(ctx context.Context, userID, remoteID string) error
}

// FactIDFromRemote extracts the shared identifier: the portion of the
// resource name after its final slash.
func FactIDFromRemote(remoteID string) string {
	if idx := strings.LastIndex(remoteID, "/"); idx >= 0 {
		return remoteID[idx+1:]
	}
	return remoteID
}

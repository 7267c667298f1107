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

package session

import (
	"context"
	"sync"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

type memorySession struct {
	mu          sync.Mutex
	events      []protocol.Event
	nextOrdinal int64
	lastUpdate  time.Time
}

// MemoryStore is the in-process Store. A per-key mutex serialises writes
// for one session; different keys do not contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) session(key string, create bool) *memorySession {
	s.mu.RLock()
	sess := s.sessions[key]
	s.mu.RUnlock()
	if sess != nil || !create {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.sessions[key]; sess == nil {
		sess = &memorySession{nextOrdinal: 1}
		s.sessions[key] = sess
	}
	return sess
}

func (s *MemoryStore) AppendEvents(ctx context.Context, key string, events []protocol.Event) error {
	sess := s.session(key, true)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, event := range events {
		event.Ordinal = sess.nextOrdinal
		sess.nextOrdinal++
		sess.events = append(sess.events, event)
	}
	sess.lastUpdate = time.Now()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, key string) ([]protocol.Event, error) {
	sess := s.session(key, false)
	if sess == nil {
		return nil, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]protocol.Event, len(sess.events))
	copy(out, sess.events)
	return out, nil
}

func (s *MemoryStore) Replace(ctx context.Context, key string, events []protocol.Event) error {
	sess := s.session(key, true)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	replaced := make([]protocol.Event, len(events))
	copy(replaced, events)

	// Ordinal continuity survives a replace: trailing events the caller
	// added (the trim notice) carry no ordinal yet and are numbered here,
	// and new appends continue after the highest retained ordinal.
	next := sess.nextOrdinal
	for i := range replaced {
		if replaced[i].Ordinal == 0 {
			replaced[i].Ordinal = next
		}
		if replaced[i].Ordinal >= next {
			next = replaced[i].Ordinal + 1
		}
	}
	sess.events = replaced
	sess.nextOrdinal = next
	sess.lastUpdate = time.Now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteLastTurn(ctx context.Context, key string) error {
	sess := s.session(key, false)
	if sess == nil {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if start := lastTurnStart(sess.events); start >= 0 {
		sess.events = sess.events[:start]
		sess.lastUpdate = time.Now()
	}
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, key string) (Stats, error) {
	sess := s.session(key, false)
	if sess == nil {
		return Stats{}, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Stats{EventCount: len(sess.events), LastUpdate: sess.lastUpdate}, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

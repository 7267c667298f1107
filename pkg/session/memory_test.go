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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

func TestMemoryStoreOrdinalsContiguous(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "k", turn("one", protocol.NewEvent(protocol.EventModelText, "assistant", "a"))))
	require.NoError(t, store.AppendEvents(ctx, "k", turn("two")))

	events, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, event := range events {
		assert.Equal(t, int64(i+1), event.Ordinal, "ordinals are contiguous from 1")
	}
}

func TestMemoryStoreReplaceKeepsOrdinalContinuity(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	var events []protocol.Event
	for _, text := range []string{"one", "two", "three"} {
		events = append(events, turn(text)...)
	}
	require.NoError(t, store.AppendEvents(ctx, "k", events))

	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)

	// Install the last two turns as the new log, as the trimmer does.
	require.NoError(t, store.Replace(ctx, "k", loaded[1:]))
	require.NoError(t, store.AppendEvents(ctx, "k", turn("four")))

	after, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, int64(2), after[0].Ordinal)
	assert.Equal(t, int64(4), after[2].Ordinal, "new ordinals continue past the old maximum")
}

func TestMemoryStoreReplaceNumbersTrailingNotice(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	var events []protocol.Event
	for _, text := range []string{"one", "two", "three", "four"} {
		events = append(events, turn(text)...)
	}
	require.NoError(t, store.AppendEvents(ctx, "k", events))

	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)

	// Install a trimmed suffix plus a freshly built notice, as the runner
	// does after trimming; the notice carries no ordinal yet.
	require.NoError(t, store.Replace(ctx, "k", append(loaded[2:], TrimNotice())))

	after, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Len(t, after, 3)
	for i := 1; i < len(after); i++ {
		assert.Greater(t, after[i].Ordinal, after[i-1].Ordinal, "ordinals stay strictly increasing through the notice")
	}
	assert.Equal(t, int64(5), after[2].Ordinal, "the notice is numbered past the old maximum")

	require.NoError(t, store.AppendEvents(ctx, "k", turn("five")))
	final, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(6), final[len(final)-1].Ordinal)
}

func TestMemoryStoreDeleteLastTurn(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "k", turn("one", protocol.NewEvent(protocol.EventModelText, "assistant", "a"))))
	require.NoError(t, store.AppendEvents(ctx, "k", turn("two", protocol.NewEvent(protocol.EventModelText, "assistant", "b"))))

	require.NoError(t, store.DeleteLastTurn(ctx, "k"))

	events, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "one", events[0].Text)
}

func TestMemoryStoreDeleteAndStats(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "k", turn("one")))

	stats, err := store.Stats(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EventCount)
	assert.False(t, stats.LastUpdate.IsZero())

	require.NoError(t, store.Delete(ctx, "k"))
	events, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStoreConcurrentAppendsSerialise(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AppendEvents(ctx, "k", turn("msg"))
		}()
	}
	wg.Wait()

	events, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Len(t, events, 20)
	seen := map[int64]bool{}
	for _, event := range events {
		assert.False(t, seen[event.Ordinal], "ordinals are unique")
		seen[event.Ordinal] = true
	}
}

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

package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/storage"
)

// fakeRemote is an in-memory LongTermMemory with failure switches.
type fakeRemote struct {
	nextID    int
	records   map[string]string // remoteID -> text
	failAll   bool
	deleteErr error
	deleted   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]string)}
}

func (f *fakeRemote) Append(_ context.Context, userID, text string) (string, error) {
	if f.failAll {
		return "", errors.New("remote unavailable")
	}
	f.nextID++
	remoteID := fmt.Sprintf("projects/p/locations/l/memories/fact-%d", f.nextID)
	f.records[remoteID] = text
	return remoteID, nil
}

func (f *fakeRemote) Search(_ context.Context, userID, query string) ([]Fact, error) {
	if f.failAll {
		return nil, errors.New("remote unavailable")
	}
	var facts []Fact
	for remoteID, text := range f.records {
		facts = append(facts, Fact{FactID: FactIDFromRemote(remoteID), UserID: userID, Text: text, RemoteID: remoteID})
	}
	return facts, nil
}

func (f *fakeRemote) Delete(_ context.Context, userID, remoteID string) error {
	f.deleted = append(f.deleted, remoteID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.records, remoteID)
	return nil
}

func TestFactIDFromRemote(t *testing.T) {
	assert.Equal(t, "abc123", FactIDFromRemote("projects/p/locations/l/memories/abc123"))
	assert.Equal(t, "bare", FactIDFromRemote("bare"))
}

func TestSaveFactSharesIdentifier(t *testing.T) {
	remote := newFakeRemote()
	docs := storage.NewMemoryDocumentDB()
	svc := NewService(remote, docs, nil, true)
	ctx := context.Background()

	factID, err := svc.SaveFact(ctx, "u1", "prefers teal")
	require.NoError(t, err)
	assert.Equal(t, "fact-1", factID)

	// The local mirror lives under the same identifier as the remote tail.
	var fact Fact
	require.NoError(t, docs.Get(ctx, "users/u1/memories/"+factID, &fact))
	assert.Equal(t, "prefers teal", fact.Text)
	assert.Equal(t, factID, FactIDFromRemote(fact.RemoteID))
}

func TestDeleteIsLocallyAuthoritative(t *testing.T) {
	remote := newFakeRemote()
	docs := storage.NewMemoryDocumentDB()
	svc := NewService(remote, docs, nil, true)
	ctx := context.Background()

	factID, err := svc.SaveFact(ctx, "u1", "prefers teal")
	require.NoError(t, err)

	// Remote delete fails; the local record must still go.
	remote.deleteErr = errors.New("remote down")
	require.NoError(t, svc.Delete(ctx, "u1", factID))

	var fact Fact
	err = docs.Get(ctx, "users/u1/memories/"+factID, &fact)
	assert.ErrorIs(t, err, storage.ErrDocNotFound)
}

func TestConcurrentDeletesOfOneFact(t *testing.T) {
	remote := newFakeRemote()
	docs := storage.NewMemoryDocumentDB()
	svc := NewService(remote, docs, nil, true)
	ctx := context.Background()

	factID, err := svc.SaveFact(ctx, "u1", "prefers teal")
	require.NoError(t, err)

	// Exactly one caller observes the record; the other gets not-found.
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Delete(ctx, "u1", factID)
		}(i)
	}
	wg.Wait()

	var succeeded, missing int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrFactNotFound):
			missing++
		default:
			t.Fatalf("unexpected delete error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, missing)
}

func TestDeleteMissingFact(t *testing.T) {
	svc := NewService(newFakeRemote(), storage.NewMemoryDocumentDB(), nil, true)

	err := svc.Delete(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, ErrFactNotFound)
}

func TestDisabledServiceIsNoOp(t *testing.T) {
	svc := NewService(nil, storage.NewMemoryDocumentDB(), nil, true)
	ctx := context.Background()

	assert.False(t, svc.Enabled(), "nil remote disables the service")

	facts, err := svc.Recall(ctx, "u1", "anything")
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestRecallFallsBackToLocalScan(t *testing.T) {
	remote := newFakeRemote()
	docs := storage.NewMemoryDocumentDB()
	svc := NewService(remote, docs, nil, true)
	ctx := context.Background()

	_, err := svc.SaveFact(ctx, "u1", "ships posts on Tuesdays")
	require.NoError(t, err)
	_, err = svc.SaveFact(ctx, "u1", "prefers teal accents")
	require.NoError(t, err)

	remote.failAll = true

	facts, err := svc.Recall(ctx, "u1", "teal")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "prefers teal accents", facts[0].Text)
}

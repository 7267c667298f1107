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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/agent"
	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/jobs"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/search"
	"github.com/momentumhq/momentum-agent/pkg/session"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/vector"
)

// stubVectors is the minimal in-memory vector provider the index routes
// need.
type stubVectors struct {
	collections map[string]bool
}

func newStubVectors() *stubVectors {
	return &stubVectors{collections: make(map[string]bool)}
}

func (s *stubVectors) Name() string { return "stub" }

func (s *stubVectors) CreateCollection(_ context.Context, collection string, _ int) error {
	s.collections[collection] = true
	return nil
}

func (s *stubVectors) DeleteCollection(_ context.Context, collection string) error {
	delete(s.collections, collection)
	return nil
}

func (s *stubVectors) CollectionExists(_ context.Context, collection string) (bool, error) {
	return s.collections[collection], nil
}

func (s *stubVectors) Upsert(context.Context, string, []vector.Doc) error { return nil }

func (s *stubVectors) Search(context.Context, string, []float32, int, map[string]any) ([]vector.Result, error) {
	return nil, nil
}

func (s *stubVectors) Count(context.Context, string) (int, error) { return 0, nil }
func (s *stubVectors) Close() error                               { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Dimension() int { return 4 }

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, http.Handler, Deps) {
	t.Helper()

	docs := storage.NewMemoryDocumentDB()
	library := search.NewLibrary(docs)
	manager := search.NewManager(newStubVectors(), stubEmbedder{}, docs, library, nil,
		config.SearchConfig{ReindexBatchSize: 10, ExpansionLimit: 5})

	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Jobs.MaxDuration = time.Minute

	deps := Deps{
		Sessions: store,
		Memory:   memory.NewService(nil, docs, nil, false),
		Manager:  manager,
		Library:  library,
		Tracker:  jobs.NewTracker(docs, cfg.Jobs),
	}
	srv := New(cfg, deps)
	return srv, srv.routes(), deps
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNDJSONEmitterWritesLinePerFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	emitter := newNDJSONEmitter(rec)

	require.NoError(t, emitter.Emit(agent.LogFrame("Thinking…")))
	require.NoError(t, emitter.Emit(agent.TextDeltaFrame("hi")))

	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &frame), "each line is one JSON object")
	}

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "log", first["type"])
}

func TestChatRejectsIncompleteRequests(t *testing.T) {
	_, handler, _ := newTestServer(t)

	for name, body := range map[string]any{
		"missing message": map[string]string{"brandId": "b1", "userId": "u1"},
		"missing brand":   map[string]string{"message": "hi", "userId": "u1"},
		"missing user":    map[string]string{"message": "hi", "brandId": "b1"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, handler, "/agent/chat", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMediaSearchFallsBackToText(t *testing.T) {
	_, handler, deps := newTestServer(t)

	item := protocol.MediaLibraryItem{
		BrandID:    "b1",
		Kind:       protocol.MediaImage,
		Title:      "sunset over the pier",
		StorageURI: "mem://bucket/sunset.png",
	}
	require.NoError(t, deps.Library.Register(context.Background(), &item))

	rec := postJSON(t, handler, "/agent/media-search", map[string]any{"brandId": "b1", "query": "sunset"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Hits []search.Hit `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, item.MediaID, resp.Hits[0].Item.MediaID)

	t.Run("validation", func(t *testing.T) {
		rec := postJSON(t, handler, "/agent/media-search", map[string]any{"brandId": "b1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionRoutes(t *testing.T) {
	_, handler, deps := newTestServer(t)
	ctx := context.Background()

	key := "b1_u1"
	for _, text := range []string{"one", "two"} {
		user := protocol.NewEvent(protocol.EventUserTurn, "user", text)
		reply := protocol.NewEvent(protocol.EventModelText, "assistant", "r")
		require.NoError(t, deps.Sessions.AppendEvents(ctx, key, []protocol.Event{user, reply}))
	}

	req := httptest.NewRequest(http.MethodGet, "/session/stats/b1/u1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats session.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.EventCount)

	t.Run("delete last turn", func(t *testing.T) {
		rec := postJSON(t, handler, "/session/delete-last", map[string]string{"brandId": "b1", "userId": "u1"})
		require.Equal(t, http.StatusOK, rec.Code)

		events, err := deps.Sessions.Load(ctx, key)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("delete session", func(t *testing.T) {
		rec := postJSON(t, handler, "/session/delete", map[string]string{"brandId": "b1", "userId": "u1"})
		require.Equal(t, http.StatusOK, rec.Code)

		events, err := deps.Sessions.Load(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestMemoryDeleteMissingFact(t *testing.T) {
	_, handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/memory/delete", map[string]string{"userId": "u1", "memoryId": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexLifecycleRoutes(t *testing.T) {
	_, handler, _ := newTestServer(t)

	rec := postJSON(t, handler, "/search-settings/b1/datastore", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var desc search.IndexDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &desc))
	assert.Equal(t, search.IndexActive, desc.State)

	req := httptest.NewRequest(http.MethodGet, "/search-settings/b1/status", nil)
	statusRec := httptest.NewRecorder()
	handler.ServeHTTP(statusRec, req)
	require.Equal(t, http.StatusOK, statusRec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/search-settings/b1/datastore", nil)
	deleteRec := httptest.NewRecorder()
	handler.ServeHTTP(deleteRec, req)
	require.Equal(t, http.StatusOK, deleteRec.Code)

	req = httptest.NewRequest(http.MethodGet, "/search-settings/b1/status", nil)
	afterRec := httptest.NewRecorder()
	handler.ServeHTTP(afterRec, req)
	require.NoError(t, json.Unmarshal(afterRec.Body.Bytes(), &desc))
	assert.Equal(t, search.IndexAbsent, desc.State)
}

func TestReindexRouteTracksJob(t *testing.T) {
	_, handler, deps := newTestServer(t)

	rec := postJSON(t, handler, "/search-settings/b1/reindex?jobId=client-7", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "client-7", job.JobID)

	require.Eventually(t, func() bool {
		got, err := deps.Tracker.Get(context.Background(), "client-7")
		return err == nil && got.Terminal()
	}, time.Second, 5*time.Millisecond)

	got, err := deps.Tracker.Get(context.Background(), "client-7")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, got.State)
}

func TestMediaRegisterRoute(t *testing.T) {
	_, handler, deps := newTestServer(t)

	rec := postJSON(t, handler, "/media/register", map[string]any{
		"brand_id":    "b1",
		"kind":        "image",
		"title":       "hero shot",
		"storage_uri": "mem://bucket/hero.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var item protocol.MediaLibraryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.NotEmpty(t, item.MediaID)

	stored, err := deps.Library.Get(context.Background(), "b1", item.MediaID)
	require.NoError(t, err)
	assert.Equal(t, "hero shot", stored.Title)

	t.Run("validation", func(t *testing.T) {
		rec := postJSON(t, handler, "/media/register", map[string]any{"brand_id": "b1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJobRouteNotFound(t *testing.T) {
	_, handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/resolver"
	"github.com/momentumhq/momentum-agent/pkg/session"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
	"github.com/momentumhq/momentum-agent/pkg/tools"
)

// scriptedLLM replays one chunk script per GenerateStreaming call.
type scriptedLLM struct {
	mu         sync.Mutex
	scripts    [][]llms.StreamChunk
	calls      int
	structured int
	streamErr  error
}

func (s *scriptedLLM) GenerateStreaming(_ context.Context, _ []llms.Message, _ []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamErr != nil {
		s.calls++
		return nil, s.streamErr
	}

	var script []llms.StreamChunk
	if s.calls < len(s.scripts) {
		script = s.scripts[s.calls]
	} else {
		script = []llms.StreamChunk{{Type: "done"}}
	}
	s.calls++

	out := make(chan llms.StreamChunk, len(script))
	for _, chunk := range script {
		out <- chunk
	}
	close(out)
	return out, nil
}

func (s *scriptedLLM) Generate(context.Context, []llms.Message, []llms.ToolDefinition) (string, []*protocol.ToolCall, int, error) {
	return "", nil, 0, nil
}

func (s *scriptedLLM) GenerateStructured(context.Context, []llms.Message, *llms.StructuredOutputConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.structured++
	return `{"facts": []}`, nil
}

func (s *scriptedLLM) structuredCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.structured
}

func (s *scriptedLLM) CountTokens(_ context.Context, messages []llms.Message) (int, error) {
	return len(messages), nil
}

func (s *scriptedLLM) WithModel(string) llms.Provider { return s }
func (s *scriptedLLM) GetModelName() string           { return "scripted" }
func (s *scriptedLLM) Close() error                   { return nil }

var _ llms.Provider = (*scriptedLLM)(nil)

// echoTool returns a canned result so dispatch order can be observed.
type echoTool struct {
	name   string
	result tools.ToolResult
}

func (e *echoTool) Name() string                 { return e.name }
func (e *echoTool) Description() string          { return "echo" }
func (e *echoTool) Parameters() []llms.Parameter { return nil }

func (e *echoTool) Execute(context.Context, tenant.Context, map[string]any) (tools.ToolResult, error) {
	return e.result, nil
}

// countingTool records how many times it was executed.
type countingTool struct {
	name  string
	mu    sync.Mutex
	count int
}

func (c *countingTool) Name() string                 { return c.name }
func (c *countingTool) Description() string          { return "counting" }
func (c *countingTool) Parameters() []llms.Parameter { return nil }

func (c *countingTool) Execute(context.Context, tenant.Context, map[string]any) (tools.ToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return tools.Success("done"), nil
}

func (c *countingTool) executions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// stubRemoteMemory is a no-op remote provider for wiring a memory
// service into the runner.
type stubRemoteMemory struct{}

func (stubRemoteMemory) Append(_ context.Context, _, text string) (string, error) {
	return "memories/" + text, nil
}

func (stubRemoteMemory) Search(context.Context, string, string) ([]memory.Fact, error) {
	return nil, nil
}

func (stubRemoteMemory) Delete(context.Context, string, string) error { return nil }

// eventCounter charges one token per event.
type eventCounter struct{}

func (eventCounter) CountTokens(_ context.Context, events []protocol.Event) (int, error) {
	return len(events), nil
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (f *frameRecorder) Emit(frame Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *frameRecorder) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, frame := range f.frames {
		out[i] = frame["type"].(string)
	}
	return out
}

func (f *frameRecorder) last() Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames[len(f.frames)-1]
}

func toolCallChunk(id, name string) llms.StreamChunk {
	return llms.StreamChunk{
		Type:     "tool_call",
		ToolCall: &protocol.ToolCall{ID: id, Name: name, Arguments: map[string]any{}},
	}
}

func newTestRunner(t *testing.T, llm llms.Provider, registry *tools.Registry, opts Options) (*Runner, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	runner := NewRunner(llm, store, eventCounter{}, nil, resolver.New(nil), registry, nil, opts)
	return runner, store
}

func testTenant() tenant.Context {
	return tenant.Context{BrandID: "b1", UserID: "u1"}
}

func TestRunFrameOrderingWithTwoTools(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{
			toolCallChunk("call_a", "generateImage"),
			toolCallChunk("call_b", "generateMusic"),
			{Type: "done", Tokens: 40},
		},
		{
			{Type: "text", Text: "Here you "},
			{Type: "text", Text: "go."},
			{Type: "done", Tokens: 55},
		},
	}}

	registry := tools.NewRegistry()
	require.NoError(t, registry.Add(&echoTool{name: "generateImage", result: tools.ToolResult{
		Status: tools.StatusSuccess, ImageURLs: []string{"mem://img.png"},
	}}))
	require.NoError(t, registry.Add(&echoTool{name: "generateMusic", result: tools.ToolResult{
		Status: tools.StatusSuccess, MusicURLs: []string{"mem://track.mp3"},
	}}))

	runner, store := newTestRunner(t, llm, registry, Options{})
	rec := &frameRecorder{}

	require.NoError(t, runner.Run(context.Background(), testTenant(), "run the plan", rec))

	assert.Equal(t, []string{
		FrameLog,
		FrameToolCall, FrameToolResult,
		FrameToolCall, FrameToolResult,
		FrameTextDelta, FrameTextDelta,
		FrameContextUpdate,
		FrameFinalResponse,
	}, rec.types())

	final := rec.last()
	assert.Equal(t, "Here you go.", final["content"])
	assert.Equal(t, "mem://img.png", final["imageUrl"])
	assert.Equal(t, []string{"mem://img.png"}, final["imageUrls"])
	assert.Equal(t, "mem://track.mp3", final["musicUrl"])

	events, err := store.Load(context.Background(), testTenant().Key())
	require.NoError(t, err)
	kinds := make([]protocol.EventKind, len(events))
	for i, event := range events {
		kinds[i] = event.Kind
	}
	assert.Equal(t, []protocol.EventKind{
		protocol.EventUserTurn,
		protocol.EventToolCall, protocol.EventToolResult,
		protocol.EventToolCall, protocol.EventToolResult,
		protocol.EventModelText,
	}, kinds)
}

func TestRunToolErrorDoesNotAbortTurn(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{toolCallChunk("call_a", "noSuchTool"), {Type: "done"}},
		{{Type: "text", Text: "That tool is unavailable."}, {Type: "done", Tokens: 10}},
	}}

	runner, _ := newTestRunner(t, llm, tools.NewRegistry(), Options{})
	rec := &frameRecorder{}

	require.NoError(t, runner.Run(context.Background(), testTenant(), "run the plan", rec))

	var toolResult Frame
	for _, frame := range rec.frames {
		if frame["type"] == FrameToolResult {
			toolResult = frame
		}
	}
	require.NotNil(t, toolResult)
	assert.Equal(t, tools.StatusError, toolResult["status"])

	final := rec.last()
	assert.Equal(t, FrameFinalResponse, final["type"])
	assert.Equal(t, "That tool is unavailable.", final["content"])
}

func TestRunLLMFailureEndsWithFinalResponse(t *testing.T) {
	llm := &scriptedLLM{streamErr: errors.New("upstream 500")}

	runner, store := newTestRunner(t, llm, tools.NewRegistry(), Options{MaxLLMRetries: 1})
	rec := &frameRecorder{}

	require.NoError(t, runner.Run(context.Background(), testTenant(), "hello", rec))
	assert.Equal(t, 1, llm.calls)

	final := rec.last()
	assert.Equal(t, FrameFinalResponse, final["type"])
	assert.Contains(t, final["content"], "upstream 500")
	for _, frame := range rec.frames {
		assert.NotEqual(t, FrameError, frame["type"], "a model failure is not a stream error")
	}

	events, err := store.Load(context.Background(), testTenant().Key())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, protocol.EventSystemNotice, last.Kind)
	assert.Contains(t, last.Text, "upstream 500")
}

func TestRunRetriesTransientLLMFailure(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{{Type: "error", Error: errors.New("flaky")}},
		{{Type: "text", Text: "Recovered."}, {Type: "done", Tokens: 5}},
	}}

	runner, _ := newTestRunner(t, llm, tools.NewRegistry(), Options{})
	rec := &frameRecorder{}

	require.NoError(t, runner.Run(context.Background(), testTenant(), "hello", rec))
	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, "Recovered.", rec.last()["content"])
}

func TestRunTrimsOverBudgetHistory(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{{Type: "text", Text: "ok"}, {Type: "done", Tokens: 3}},
	}}

	runner, store := newTestRunner(t, llm, tools.NewRegistry(), Options{TokenBudget: 2})
	ctx := context.Background()
	key := testTenant().Key()

	for _, text := range []string{"first", "second"} {
		user := protocol.NewEvent(protocol.EventUserTurn, "user", text)
		reply := protocol.NewEvent(protocol.EventModelText, "assistant", "r")
		require.NoError(t, store.AppendEvents(ctx, key, []protocol.Event{user, reply}))
	}

	require.NoError(t, runner.Run(ctx, testTenant(), "third", &frameRecorder{}))

	events, err := store.Load(ctx, key)
	require.NoError(t, err)

	var sawTrimNotice, sawFirst bool
	for _, event := range events {
		if event.Kind == protocol.EventSystemNotice {
			sawTrimNotice = true
		}
		if event.Text == "first" {
			sawFirst = true
		}
	}
	assert.True(t, sawTrimNotice, "the trimmed history carries a notice event")
	assert.False(t, sawFirst, "the oldest turn was dropped")
}

func TestRunContextUpdateReportsActiveMedia(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{{Type: "text", Text: "noted"}, {Type: "done", Tokens: 21}},
	}}

	runner, _ := newTestRunner(t, llm, tools.NewRegistry(), Options{})
	rec := &frameRecorder{}

	tc := testTenant()
	tc.Attachments = []protocol.MediaHandle{{
		Kind:   protocol.MediaImage,
		URI:    "mem://attached.png",
		Source: protocol.SourceUploaded,
	}}

	require.NoError(t, runner.Run(context.Background(), tc, "what do you think of this", rec))

	var update Frame
	for _, frame := range rec.frames {
		if frame["type"] == FrameContextUpdate {
			update = frame
		}
	}
	require.NotNil(t, update)
	assert.Equal(t, 21, update["tokenUsage"])

	handles, ok := update["activeMedia"].([]protocol.MediaHandle)
	require.True(t, ok)
	require.Len(t, handles, 1)
	assert.Equal(t, "mem://attached.png", handles[0].URI)
}

func TestRunGeneratedImageResolvableNextTurn(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{toolCallChunk("call_a", "generateImage"), {Type: "done", Tokens: 12}},
		{{Type: "text", Text: "Here is your hero shot."}, {Type: "done", Tokens: 20}},
	}}

	registry := tools.NewRegistry()
	require.NoError(t, registry.Add(&echoTool{name: "generateImage", result: tools.ToolResult{
		Status: tools.StatusSuccess, ImageURLs: []string{"https://cdn.example/hero.png"},
	}}))

	runner, store := newTestRunner(t, llm, registry, Options{})
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, testTenant(), "generate a hero shot", &frameRecorder{}))

	history, err := store.Load(ctx, testTenant().Key())
	require.NoError(t, err)

	resolved := resolver.New(nil).Resolve(ctx, "b1", "make it blue", nil, history)
	require.Len(t, resolved.Items, 1, "the generated image is in scope for the follow-up")
	assert.Equal(t, protocol.MethodLastImage, resolved.Method)
	assert.GreaterOrEqual(t, resolved.Confidence, 0.75)
	assert.Equal(t, "https://cdn.example/hero.png", resolved.Items[0].URI)
	assert.Equal(t, protocol.SourceGenerated, resolved.Items[0].Source)
}

func TestRunMidStreamFailureDoesNotRerunTools(t *testing.T) {
	// The first stream requests the tool and then dies; the retry requests
	// it again and completes. The tool must run once.
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{toolCallChunk("call_a", "publishPost"), {Type: "error", Error: errors.New("connection reset")}},
		{toolCallChunk("call_a", "publishPost"), {Type: "done", Tokens: 8}},
		{{Type: "text", Text: "Published."}, {Type: "done", Tokens: 12}},
	}}

	tool := &countingTool{name: "publishPost"}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Add(tool))

	runner, store := newTestRunner(t, llm, registry, Options{})
	rec := &frameRecorder{}

	require.NoError(t, runner.Run(context.Background(), testTenant(), "publish my draft", rec))
	assert.Equal(t, 1, tool.executions())

	var callFrames int
	for _, typ := range rec.types() {
		if typ == FrameToolCall {
			callFrames++
		}
	}
	assert.Equal(t, 1, callFrames, "the failed attempt's tool call is not announced twice")

	events, err := store.Load(context.Background(), testTenant().Key())
	require.NoError(t, err)
	var callEvents int
	for _, event := range events {
		if event.Kind == protocol.EventToolCall {
			callEvents++
		}
	}
	assert.Equal(t, 1, callEvents)
}

func newMemoryTestRunner(t *testing.T, llm llms.Provider) *Runner {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	svc := memory.NewService(stubRemoteMemory{}, storage.NewMemoryDocumentDB(), llm, true)
	return NewRunner(llm, store, eventCounter{}, svc, resolver.New(nil), tools.NewRegistry(), nil, Options{})
}

func TestRunCompletedTurnTriggersMemoryExtraction(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{{Type: "text", Text: "Noted."}, {Type: "done", Tokens: 4}},
	}}
	runner := newMemoryTestRunner(t, llm)

	require.NoError(t, runner.Run(context.Background(), testTenant(), "I prefer teal", &frameRecorder{}))

	require.Eventually(t, func() bool { return llm.structuredCalls() == 1 },
		2*time.Second, 10*time.Millisecond, "extraction runs after the turn completes")
}

func TestRunCancelledTurnSkipsMemoryExtraction(t *testing.T) {
	llm := &scriptedLLM{scripts: [][]llms.StreamChunk{
		{{Type: "text", Text: "partial"}, {Type: "text", Text: " answer"}, {Type: "done", Tokens: 9}},
	}}
	runner := newMemoryTestRunner(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emit := EmitterFunc(func(frame Frame) error {
		if frame["type"] == FrameTextDelta {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	err := runner.Run(ctx, testTenant(), "I prefer teal", emit)
	require.ErrorIs(t, err, context.Canceled)

	assert.Never(t, func() bool { return llm.structuredCalls() > 0 },
		200*time.Millisecond, 20*time.Millisecond, "no extraction after a cancelled turn")
}

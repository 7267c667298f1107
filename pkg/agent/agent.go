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

// Package agent implements the tool-using agent loop: it drives the LLM
// against the session history, dispatches tool calls in emission order,
// and streams frames to the client.
package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/logger"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/observability"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/resolver"
	"github.com/momentumhq/momentum-agent/pkg/session"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
	"github.com/momentumhq/momentum-agent/pkg/tools"
)

const systemInstruction = `You are Momentum, a creative assistant for brand marketing teams.
You help plan, write, and produce content: copy, images, video, and music.
Use the available tools when the user asks for something a tool provides.
When editing or composing media, pass the exact media URL you were given.
Be concise and concrete; never invent media URLs.`

// Options tunes the agent loop. Zero values select the defaults.
type Options struct {
	// TokenBudget is the soft history cap before trimming.
	TokenBudget int

	// MaxIterations bounds tool-call round trips in one turn.
	MaxIterations int

	// MaxLLMRetries bounds retries of a failed generation.
	MaxLLMRetries int

	// ChunkTimeout bounds inactivity between stream chunks.
	ChunkTimeout time.Duration

	// ToolTimeout bounds one tool invocation.
	ToolTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.TokenBudget == 0 {
		o.TokenBudget = 30000
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 8
	}
	if o.MaxLLMRetries == 0 {
		o.MaxLLMRetries = 3
	}
	if o.ChunkTimeout == 0 {
		o.ChunkTimeout = 60 * time.Second
	}
	if o.ToolTimeout == 0 {
		o.ToolTimeout = 3 * time.Minute
	}
}

// Runner executes one conversational turn per Run call. It is safe for
// concurrent use; writes to a given session key are serialised.
type Runner struct {
	llm      llms.Provider
	sessions session.Store
	counter  session.TokenCounter
	memory   *memory.Service
	resolver *resolver.Resolver
	registry *tools.Registry
	fetcher  *storage.Fetcher
	opts     Options

	sessionLocks sync.Map
	logger       *slog.Logger
}

func NewRunner(
	llm llms.Provider,
	sessions session.Store,
	counter session.TokenCounter,
	memorySvc *memory.Service,
	mediaResolver *resolver.Resolver,
	registry *tools.Registry,
	fetcher *storage.Fetcher,
	opts Options,
) *Runner {
	opts.setDefaults()
	return &Runner{
		llm:      llm,
		sessions: sessions,
		counter:  counter,
		memory:   memorySvc,
		resolver: mediaResolver,
		registry: registry,
		fetcher:  fetcher,
		opts:     opts,
		logger:   logger.GetLogger(),
	}
}

func (r *Runner) lockSession(key string) func() {
	muAny, _ := r.sessionLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Run executes one turn: trims history, resolves media, streams the LLM,
// dispatches tools, persists the turn, and finishes with a final_response
// frame. The error frame for runtime failures is the caller's concern;
// Run itself always closes with final_response unless the context died.
func (r *Runner) Run(ctx context.Context, tc tenant.Context, message string, emit Emitter) error {
	tracer := observability.GetTracer(observability.DefaultServiceName)
	ctx, span := tracer.Start(ctx, observability.SpanAgentTurn)
	span.SetAttributes(attribute.String(observability.AttrBrandID, tc.BrandID))
	defer span.End()

	key := tc.Key()
	unlock := r.lockSession(key)
	defer unlock()

	history, err := r.loadTrimmed(ctx, key)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to load session: %w", err)
	}

	memories := r.recallMemories(ctx, tc.UserID, message)

	resolved := r.resolver.Resolve(ctx, tc.BrandID, message, tc.Attachments, history)
	tc.Resolved = &resolved

	userTurn := protocol.NewEvent(protocol.EventUserTurn, "user", message)
	userTurn.Media = tc.Attachments
	if err := r.sessions.AppendEvents(ctx, key, []protocol.Event{userTurn}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit user turn: %w", err)
	}

	if err := emit.Emit(LogFrame("Thinking…")); err != nil {
		return err
	}
	if resolved.Method == protocol.MethodNone && resolver.MentionsMedia(message) {
		notice := "I couldn't tell which media you meant; proceeding without an attachment."
		_ = emit.Emit(LogFrame(notice))
	}

	messages := r.composeMessages(ctx, tc, history, memories, resolved, message)

	turn, runErr := r.generateTurn(ctx, tc, messages, emit)

	// Persist whatever was produced. On cancellation this is best-effort;
	// the user turn is already committed.
	if len(turn.events) > 0 {
		if appendErr := r.sessions.AppendEvents(context.WithoutCancel(ctx), key, turn.events); appendErr != nil {
			r.logger.Error("failed to append turn events", "session", key, "error", appendErr)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "cancelled")
			return ctx.Err()
		}
		// LLM exhaustion: notice plus a final response carrying the error
		// text, so the stream still terminates cleanly.
		notice := protocol.NewEvent(protocol.EventSystemNotice, "system", "model request failed: "+runErr.Error())
		_ = r.sessions.AppendEvents(context.WithoutCancel(ctx), key, []protocol.Event{notice})
		_ = emit.Emit(FinalResponseFrame("I hit a problem talking to the model: "+runErr.Error(), MediaURLs{}))
		span.SetStatus(codes.Error, runErr.Error())
		return nil
	}

	_ = emit.Emit(ContextUpdateFrame(turn.tokens, activeMedia(tc, resolved)))
	if err := emit.Emit(FinalResponseFrame(turn.text, turn.media)); err != nil {
		return err
	}
	span.SetStatus(codes.Ok, "")

	if ctx.Err() == nil && r.memory != nil && r.memory.Enabled() {
		go func() {
			extractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			defer cancel()
			r.memory.ExtractAndSave(extractCtx, tc.UserID, message, turn.text)
		}()
	}
	return nil
}

// loadTrimmed loads the session and installs the trimmed suffix when the
// history exceeds the token budget.
func (r *Runner) loadTrimmed(ctx context.Context, key string) ([]protocol.Event, error) {
	history, err := r.sessions.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	trimmed, didTrim, err := session.TrimToBudget(ctx, history, r.opts.TokenBudget, r.counter)
	if err != nil {
		return nil, err
	}
	if didTrim {
		trimmed = append(trimmed, session.TrimNotice())
		if err := r.sessions.Replace(ctx, key, trimmed); err != nil {
			return nil, err
		}
	}
	return trimmed, nil
}

func (r *Runner) recallMemories(ctx context.Context, userID, query string) []memory.Fact {
	if r.memory == nil || !r.memory.Enabled() {
		return nil
	}
	tracer := observability.GetTracer(observability.DefaultServiceName)
	ctx, span := tracer.Start(ctx, observability.SpanMemoryLookup)
	defer span.End()

	facts, err := r.memory.Recall(ctx, userID, query)
	if err != nil {
		r.logger.Warn("memory recall failed", "user", userID, "error", err)
		return nil
	}
	return facts
}

// composeMessages builds the prompt: system instruction, history, then
// the new user message with resolved media attached inline and its URLs
// repeated in the text so URL-taking tools can receive them.
func (r *Runner) composeMessages(ctx context.Context, tc tenant.Context, history []protocol.Event, memories []memory.Fact, resolved protocol.ResolvedMediaSet, message string) []llms.Message {
	var system strings.Builder
	system.WriteString(systemInstruction)
	if tc.TeamContext != "" {
		system.WriteString("\n\nTeam context:\n" + tc.TeamContext)
	}
	if len(memories) > 0 {
		system.WriteString("\n\nKnown about this user:")
		for _, fact := range memories {
			system.WriteString("\n- " + fact.Text)
		}
	}

	messages := []llms.Message{{Role: "system", Content: system.String()}}
	messages = append(messages, historyMessages(history)...)

	userMsg := llms.Message{Role: "user", Content: message}
	if len(resolved.Items) > 0 {
		var urls strings.Builder
		for _, item := range resolved.Items {
			urls.WriteString("\nAttached media URL: " + item.URI)
			if part, ok := r.inlinePart(ctx, item); ok {
				userMsg.Parts = append(userMsg.Parts, part)
			}
		}
		userMsg.Content = message + "\n" + urls.String()
	}
	return append(messages, userMsg)
}

func (r *Runner) inlinePart(ctx context.Context, handle protocol.MediaHandle) (llms.ContentPart, bool) {
	if r.fetcher == nil {
		return llms.ContentPart{}, false
	}
	data, contentType, err := r.fetcher.Fetch(ctx, handle.URI)
	if err != nil {
		r.logger.Warn("failed to fetch resolved media", "uri", handle.URI, "error", err)
		return llms.ContentPart{}, false
	}
	if contentType == "" {
		contentType = handle.MimeType
	}
	return llms.ContentPart{
		Type:      llms.ContentPartTypeInline,
		MediaType: contentType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, true
}

// historyMessages converts the event log into provider messages.
func historyMessages(history []protocol.Event) []llms.Message {
	var messages []llms.Message
	for _, event := range history {
		switch event.Kind {
		case protocol.EventUserTurn:
			messages = append(messages, llms.Message{Role: "user", Content: event.Text})
		case protocol.EventModelText:
			messages = append(messages, llms.Message{Role: "assistant", Content: event.Text})
		case protocol.EventToolCall:
			if event.ToolCall != nil {
				messages = append(messages, llms.Message{Role: "assistant", ToolCalls: []*protocol.ToolCall{event.ToolCall}})
			}
		case protocol.EventToolResult:
			payload, _ := json.Marshal(event.ToolResult)
			messages = append(messages, llms.Message{
				Role:       "tool",
				Content:    string(payload),
				ToolCallID: event.InvocationID,
			})
		case protocol.EventSystemNotice:
			messages = append(messages, llms.Message{Role: "system", Content: event.Text})
		}
	}
	return messages
}

// turnResult accumulates everything one turn produced.
type turnResult struct {
	text   string
	tokens int
	media  MediaURLs
	events []protocol.Event
}

// generateTurn drives the LLM until it stops requesting tools. Tool
// calls are dispatched sequentially in emission order and their results
// fed back for the next round.
func (r *Runner) generateTurn(ctx context.Context, tc tenant.Context, messages []llms.Message, emit Emitter) (turnResult, error) {
	var turn turnResult

	llm := r.llm
	if tc.Settings.TextModel != "" {
		llm = llm.WithModel(tc.Settings.TextModel)
	}
	definitions := r.registry.Definitions()

	for iteration := 0; iteration < r.opts.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return turn, ctx.Err()
		}

		iterText, calls, tokens, err := r.streamOnce(ctx, tc, llm, messages, definitions, emit, &turn)
		if err != nil {
			return turn, err
		}
		turn.text += iterText
		turn.tokens = tokens

		if len(calls) == 0 {
			break
		}

		// Feed the assistant's tool round back into the conversation for
		// the re-prompt.
		messages = append(messages, llms.Message{Role: "assistant", Content: iterText, ToolCalls: calls})
		for _, call := range calls {
			resultEvent := findToolResult(turn.events, call.ID)
			payload, _ := json.Marshal(resultEvent)
			messages = append(messages, llms.Message{
				Role:       "tool",
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    string(payload),
			})
		}
	}

	if turn.text != "" {
		turn.events = append(turn.events, protocol.NewEvent(protocol.EventModelText, "assistant", turn.text))
	}
	return turn, nil
}

func findToolResult(events []protocol.Event, invocationID string) map[string]any {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == protocol.EventToolResult && events[i].InvocationID == invocationID {
			return events[i].ToolResult
		}
	}
	return map[string]any{"status": "error", "content": "result missing"}
}

// streamOnce runs a single generation with retry, then dispatches the
// tool calls the stream requested. Dispatch waits for a clean stream
// completion: a retried stream must never re-execute a tool it already
// asked for on a failed attempt.
func (r *Runner) streamOnce(ctx context.Context, tc tenant.Context, llm llms.Provider, messages []llms.Message, definitions []llms.ToolDefinition, emit Emitter, turn *turnResult) (string, []*protocol.ToolCall, int, error) {
	var lastErr error
	for attempt := 0; attempt < r.opts.MaxLLMRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", nil, 0, ctx.Err()
			}
		}

		text, calls, tokens, err := r.consumeStream(ctx, llm, messages, definitions, emit)
		if err == nil {
			for _, call := range calls {
				if dispatchErr := r.dispatchCall(ctx, tc, call, emit, turn); dispatchErr != nil {
					return "", nil, 0, dispatchErr
				}
			}
			return text, calls, tokens, nil
		}
		if ctx.Err() != nil {
			return "", nil, 0, ctx.Err()
		}
		lastErr = err
		r.logger.Warn("llm generation failed", "attempt", attempt+1, "error", err)
	}
	return "", nil, 0, fmt.Errorf("llm failed after %d attempts: %w", r.opts.MaxLLMRetries, lastErr)
}

func (r *Runner) consumeStream(ctx context.Context, llm llms.Provider, messages []llms.Message, definitions []llms.ToolDefinition, emit Emitter) (string, []*protocol.ToolCall, int, error) {
	stream, err := llm.GenerateStreaming(ctx, messages, definitions)
	if err != nil {
		return "", nil, 0, err
	}

	var (
		text   strings.Builder
		calls  []*protocol.ToolCall
		tokens int
	)

	inactivity := time.NewTimer(r.opts.ChunkTimeout)
	defer inactivity.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", nil, 0, ctx.Err()
		case <-inactivity.C:
			return "", nil, 0, fmt.Errorf("llm stream stalled for %s", r.opts.ChunkTimeout)
		case chunk, ok := <-stream:
			if !ok {
				return text.String(), calls, tokens, nil
			}
			if !inactivity.Stop() {
				<-inactivity.C
			}
			inactivity.Reset(r.opts.ChunkTimeout)

			switch chunk.Type {
			case "text":
				text.WriteString(chunk.Text)
				if err := emit.Emit(TextDeltaFrame(chunk.Text)); err != nil {
					return "", nil, 0, err
				}
			case "tool_call":
				calls = append(calls, chunk.ToolCall)
			case "done":
				tokens = chunk.Tokens
			case "error":
				return "", nil, 0, chunk.Error
			}
		}
	}
}

// dispatchCall runs one tool call, emits its frames, and records both
// halves of the invocation on the turn.
func (r *Runner) dispatchCall(ctx context.Context, tc tenant.Context, call *protocol.ToolCall, emit Emitter, turn *turnResult) error {
	if err := emit.Emit(ToolCallFrame(call)); err != nil {
		return err
	}

	callEvent := protocol.NewEvent(protocol.EventToolCall, "assistant", "")
	callEvent.ToolCall = call
	callEvent.InvocationID = call.ID
	turn.events = append(turn.events, callEvent)

	toolCtx, cancel := context.WithTimeout(ctx, r.opts.ToolTimeout)
	result := r.registry.Dispatch(toolCtx, tc, call)
	cancel()

	payload := result.Payload()
	turn.media.Merge(payload)

	resultEvent := protocol.NewEvent(protocol.EventToolResult, "tool", "")
	resultEvent.ToolResult = payload
	resultEvent.InvocationID = call.ID
	resultEvent.Media = generatedHandles(call.Name, result)
	turn.events = append(turn.events, resultEvent)

	return emit.Emit(ToolResultFrame(call.Name, payload))
}

// generatedHandles records tool-produced media as handles on the result
// event, so references like "make it blue" in a later turn can resolve
// against what this turn generated.
func generatedHandles(toolName string, result tools.ToolResult) []protocol.MediaHandle {
	var handles []protocol.MediaHandle
	add := func(kind protocol.MediaKind, urls []string) {
		for _, url := range urls {
			handles = append(handles, protocol.MediaHandle{
				ID:         uuid.NewString(),
				Kind:       kind,
				URI:        url,
				Source:     protocol.SourceGenerated,
				Provenance: "generated by " + toolName,
			})
		}
	}
	add(protocol.MediaImage, result.ImageURLs)
	add(protocol.MediaVideo, result.VideoURLs)
	add(protocol.MediaAudio, result.MusicURLs)
	return handles
}

// activeMedia is what the context_update frame reports: the attachments
// plus whatever the resolver committed to for the turn.
func activeMedia(tc tenant.Context, resolved protocol.ResolvedMediaSet) []protocol.MediaHandle {
	seen := make(map[string]bool)
	var handles []protocol.MediaHandle
	for _, h := range append(append([]protocol.MediaHandle{}, tc.Attachments...), resolved.Items...) {
		if h.URI == "" || seen[h.URI] {
			continue
		}
		seen[h.URI] = true
		handles = append(handles, h)
	}
	return handles
}

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// fixedCounter charges one token per event.
type fixedCounter struct{}

func (fixedCounter) CountTokens(_ context.Context, events []protocol.Event) (int, error) {
	return len(events), nil
}

func turn(userText string, rest ...protocol.Event) []protocol.Event {
	events := []protocol.Event{protocol.NewEvent(protocol.EventUserTurn, "user", userText)}
	return append(events, rest...)
}

func toolPair(invocationID string) []protocol.Event {
	call := protocol.NewEvent(protocol.EventToolCall, "assistant", "")
	call.ToolCall = &protocol.ToolCall{ID: invocationID, Name: "generateImage"}
	call.InvocationID = invocationID
	result := protocol.NewEvent(protocol.EventToolResult, "tool", "")
	result.ToolResult = map[string]any{"status": "success"}
	result.InvocationID = invocationID
	return []protocol.Event{call, result}
}

func TestTrimExactBudgetUntouched(t *testing.T) {
	events := append(turn("one", protocol.NewEvent(protocol.EventModelText, "assistant", "a")),
		turn("two", protocol.NewEvent(protocol.EventModelText, "assistant", "b"))...)

	trimmed, didTrim, err := TrimToBudget(context.Background(), events, len(events), fixedCounter{})
	require.NoError(t, err)
	assert.False(t, didTrim)
	assert.Equal(t, events, trimmed)
}

func TestTrimOneOverDropsOldestTurn(t *testing.T) {
	first := turn("one", protocol.NewEvent(protocol.EventModelText, "assistant", "a"))
	second := turn("two", protocol.NewEvent(protocol.EventModelText, "assistant", "b"))
	events := append(append([]protocol.Event{}, first...), second...)

	trimmed, didTrim, err := TrimToBudget(context.Background(), events, len(events)-1, fixedCounter{})
	require.NoError(t, err)
	assert.True(t, didTrim)
	assert.Equal(t, second, trimmed)
}

func TestTrimNeverSplitsToolInvocation(t *testing.T) {
	first := turn("one", toolPair("call_1")...)
	second := turn("two", toolPair("call_2")...)
	events := append(append([]protocol.Event{}, first...), second...)

	// A budget that would bisect the first turn still drops it whole.
	trimmed, didTrim, err := TrimToBudget(context.Background(), events, 4, fixedCounter{})
	require.NoError(t, err)
	assert.True(t, didTrim)

	calls := map[string]int{}
	results := map[string]int{}
	for _, event := range trimmed {
		switch event.Kind {
		case protocol.EventToolCall:
			calls[event.InvocationID]++
		case protocol.EventToolResult:
			results[event.InvocationID]++
		}
	}
	assert.Equal(t, calls, results, "every surviving toolCall keeps its toolResult")
}

func TestTrimResultIsSuffix(t *testing.T) {
	var events []protocol.Event
	for _, text := range []string{"one", "two", "three", "four"} {
		events = append(events, turn(text, protocol.NewEvent(protocol.EventModelText, "assistant", "r"))...)
	}

	trimmed, didTrim, err := TrimToBudget(context.Background(), events, 3, fixedCounter{})
	require.NoError(t, err)
	assert.True(t, didTrim)
	assert.Equal(t, events[len(events)-len(trimmed):], trimmed)
}

func TestTrimKeepsLastTurnEvenOverBudget(t *testing.T) {
	last := turn("huge", toolPair("call_x")...)

	trimmed, didTrim, err := TrimToBudget(context.Background(), last, 1, fixedCounter{})
	require.NoError(t, err)
	assert.False(t, didTrim)
	assert.Equal(t, last, trimmed)
}

func TestTrimNoticeShape(t *testing.T) {
	notice := TrimNotice()
	assert.Equal(t, protocol.EventSystemNotice, notice.Kind)
	assert.NotEmpty(t, notice.Text)
}

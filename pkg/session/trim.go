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

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// TrimToBudget drops the oldest complete turns until the remaining tail
// fits the token budget. A session exactly at the budget is untouched;
// one token over loses its oldest turn. The result is always a suffix of
// the input, and a toolCall is never separated from its toolResult
// because trimming operates on whole turns. The last turn is never
// dropped even if it alone exceeds the budget.
func TrimToBudget(ctx context.Context, events []protocol.Event, budget int, counter TokenCounter) ([]protocol.Event, bool, error) {
	if len(events) == 0 || budget <= 0 {
		return events, false, nil
	}

	count, err := counter.CountTokens(ctx, events)
	if err != nil {
		return events, false, err
	}
	if count <= budget {
		return events, false, nil
	}

	tail := events
	trimmed := false
	for {
		next := nextTurnStart(tail)
		if next <= 0 {
			break
		}
		tail = tail[next:]
		trimmed = true

		count, err = counter.CountTokens(ctx, tail)
		if err != nil {
			return events, false, err
		}
		if count <= budget {
			break
		}
	}
	return tail, trimmed, nil
}

// nextTurnStart returns the index of the second turn's first event: the
// first userTurn after the opening one. Leading events before the first
// userTurn belong to the opening turn and are dropped with it. Returns
// -1 when at most one turn remains.
func nextTurnStart(events []protocol.Event) int {
	first := -1
	for i, event := range events {
		if event.Kind != protocol.EventUserTurn {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		return i
	}
	return -1
}

// TrimNotice builds the systemNotice event recording that history was
// trimmed.
func TrimNotice() protocol.Event {
	return protocol.NewEvent(protocol.EventSystemNotice, "system",
		"Earlier conversation history was trimmed to fit the context budget.")
}

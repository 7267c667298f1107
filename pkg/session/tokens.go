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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/momentumhq/momentum-agent/pkg/protocol"
)

// TokenCounter counts tokens over an event list; the trimmer consults it
// against the session budget.
type TokenCounter interface {
	CountTokens(ctx context.Context, events []protocol.Event) (int, error)
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.RWMutex
)

// EstimatingCounter approximates token usage with a tiktoken encoding.
// The count is not exact for Gemini models but tracks closely enough for
// a soft trimming budget.
type EstimatingCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewEstimatingCounter(model string) (*EstimatingCounter, error) {
	encodingCacheMu.RLock()
	cached, ok := encodingCache[model]
	encodingCacheMu.RUnlock()
	if ok {
		return &EstimatingCounter{encoding: cached}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCacheMu.Lock()
	encodingCache[model] = encoding
	encodingCacheMu.Unlock()
	return &EstimatingCounter{encoding: encoding}, nil
}

func (c *EstimatingCounter) CountTokens(ctx context.Context, events []protocol.Event) (int, error) {
	total := 0
	for _, event := range events {
		total += len(c.encoding.Encode(eventText(event), nil, nil))
		// Per-message framing overhead.
		total += 4
	}
	return total, nil
}

func eventText(event protocol.Event) string {
	text := event.Text
	if event.ToolCall != nil {
		if args, err := json.Marshal(event.ToolCall.Arguments); err == nil {
			text += event.ToolCall.Name + string(args)
		}
	}
	if event.ToolResult != nil {
		if raw, err := json.Marshal(event.ToolResult); err == nil {
			text += string(raw)
		}
	}
	return text
}

var _ TokenCounter = (*EstimatingCounter)(nil)

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

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

// RecallMemoryTool looks up long-term facts about the current user.
type RecallMemoryTool struct {
	service *memory.Service
}

func NewRecallMemoryTool(service *memory.Service) *RecallMemoryTool {
	return &RecallMemoryTool{service: service}
}

func (t *RecallMemoryTool) Name() string { return "recallMemory" }

func (t *RecallMemoryTool) Description() string {
	return "Recall saved facts about the current user relevant to a topic."
}

func (t *RecallMemoryTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "query", Type: "string", Description: "The topic to recall", Required: true},
	}
}

func (t *RecallMemoryTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	if !t.service.Enabled() {
		return Success("Long-term memory is disabled."), nil
	}

	facts, err := t.service.Recall(ctx, tc.UserID, stringArg(args, "query"))
	if err != nil {
		return Errorf("memory recall failed: %v", err), nil
	}
	if len(facts) == 0 {
		return Success("No saved facts matched."), nil
	}

	var sb strings.Builder
	for _, fact := range facts {
		fmt.Fprintf(&sb, "- %s\n", fact.Text)
	}
	result := Success(sb.String())
	result.Message = fmt.Sprintf("Recalled %d facts.", len(facts))
	return result, nil
}

// SaveMemoryTool stores a fact about the current user on request.
type SaveMemoryTool struct {
	service *memory.Service
}

func NewSaveMemoryTool(service *memory.Service) *SaveMemoryTool {
	return &SaveMemoryTool{service: service}
}

func (t *SaveMemoryTool) Name() string { return "saveMemory" }

func (t *SaveMemoryTool) Description() string {
	return "Save a fact about the current user for future conversations."
}

func (t *SaveMemoryTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "fact", Type: "string", Description: "The fact to remember", Required: true},
	}
}

func (t *SaveMemoryTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	if !t.service.Enabled() {
		return Success("Long-term memory is disabled; nothing was saved."), nil
	}

	factID, err := t.service.SaveFact(ctx, tc.UserID, stringArg(args, "fact"))
	if err != nil {
		return Errorf("failed to save memory: %v", err), nil
	}

	result := Success("Saved.")
	result.Data = map[string]any{"factId": factID}
	return result, nil
}

var (
	_ Tool = (*RecallMemoryTool)(nil)
	_ Tool = (*SaveMemoryTool)(nil)
)

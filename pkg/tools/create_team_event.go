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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tenant"
)

const teamEventInstruction = `You are planning a coordinated content campaign for a team of brand personas.
Given the campaign brief, produce a JSON plan with one post per persona:
{"title": "<campaign title>",
 "posts": [{"persona": "<persona name or role>", "channel": "<channel>", "content": "<post text>"}]}
Write each post in the persona's voice. Keep the set coherent around one theme.`

type teamEventPlan struct {
	Title string          `json:"title" jsonschema:"required"`
	Posts []TeamEventPost `json:"posts" jsonschema:"required"`
}

var teamEventSchema = func() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(&teamEventPlan{})
}()

// TeamEvent is a synthesised multi-post campaign plan stored under the
// brand so other surfaces can pick it up.
type TeamEvent struct {
	EventID   string          `json:"event_id"`
	BrandID   string          `json:"brand_id"`
	Title     string          `json:"title"`
	Brief     string          `json:"brief"`
	Posts     []TeamEventPost `json:"posts"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type TeamEventPost struct {
	Persona string `json:"persona" jsonschema:"required"`
	Channel string `json:"channel,omitempty"`
	Content string `json:"content" jsonschema:"required"`
}

func teamEventPath(brandID, eventID string) string {
	return fmt.Sprintf("brands/%s/events/%s", brandID, eventID)
}

// CreateTeamEventTool delegates to the LLM to synthesise a multi-post
// plan across the brand's personas and persists it as a team event.
type CreateTeamEventTool struct {
	llm  llms.Provider
	docs storage.DocumentDB
}

func NewCreateTeamEventTool(llm llms.Provider, docs storage.DocumentDB) *CreateTeamEventTool {
	return &CreateTeamEventTool{llm: llm, docs: docs}
}

func (t *CreateTeamEventTool) Name() string { return "createTeamEvent" }

func (t *CreateTeamEventTool) Description() string {
	return "Plan a coordinated multi-post campaign across the team's personas and save it as a team event."
}

func (t *CreateTeamEventTool) Parameters() []llms.Parameter {
	return []llms.Parameter{
		{Name: "brief", Type: "string", Description: "The campaign brief or theme", Required: true},
	}
}

func (t *CreateTeamEventTool) Execute(ctx context.Context, tc tenant.Context, args map[string]any) (ToolResult, error) {
	brief := stringArg(args, "brief")

	content := brief
	if tc.TeamContext != "" {
		content = "Team context:\n" + tc.TeamContext + "\n\nCampaign brief:\n" + brief
	}

	llm := t.llm
	if tc.Settings.TextModel != "" {
		llm = llm.WithModel(tc.Settings.TextModel)
	}

	raw, err := llm.GenerateStructured(ctx, []llms.Message{
		{Role: "system", Content: teamEventInstruction},
		{Role: "user", Content: content},
	}, &llms.StructuredOutputConfig{Format: "json", Schema: teamEventSchema})
	if err != nil {
		return Errorf("failed to plan team event: %v", err), nil
	}

	var plan teamEventPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return Errorf("team event plan was not valid JSON: %v", err), nil
	}
	if len(plan.Posts) == 0 {
		return Errorf("team event plan contained no posts"), nil
	}

	event := TeamEvent{
		EventID:   uuid.NewString(),
		BrandID:   tc.BrandID,
		Title:     plan.Title,
		Brief:     brief,
		Posts:     plan.Posts,
		CreatedBy: tc.UserID,
		CreatedAt: time.Now(),
	}
	if err := t.docs.Set(ctx, teamEventPath(tc.BrandID, event.EventID), event); err != nil {
		return Errorf("failed to save team event: %v", err), nil
	}

	result := Success(fmt.Sprintf("Created team event %q with %d posts.", event.Title, len(event.Posts)))
	result.Data = map[string]any{"eventId": event.EventID, "title": event.Title, "postCount": len(event.Posts)}
	return result, nil
}

var _ Tool = (*CreateTeamEventTool)(nil)

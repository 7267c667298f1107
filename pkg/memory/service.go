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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/logger"
	"github.com/momentumhq/momentum-agent/pkg/storage"
)

// ErrFactNotFound is returned when a fact is absent locally or remotely.
var ErrFactNotFound = errors.New("memory fact not found")

const extractionInstruction = `Extract zero or more atomic facts about the user from this conversation turn.
A fact is a short standalone statement worth remembering across conversations
(preferences, goals, constraints, recurring context). Ignore transient details.
Return a JSON object: {"facts": ["..."]}. Return {"facts": []} if nothing is worth keeping.`

var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"facts": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"facts"},
}

// Service coordinates the remote provider and the local fact records.
// When disabled, every operation is a no-op.
type Service struct {
	remote  LongTermMemory
	docs    storage.DocumentDB
	llm     llms.Provider
	enabled bool
	logger  *slog.Logger

	// deleteMu serialises Delete's check-and-delete so exactly one of two
	// concurrent deletes of the same fact observes the record.
	deleteMu sync.Mutex
}

func NewService(remote LongTermMemory, docs storage.DocumentDB, llm llms.Provider, enabled bool) *Service {
	return &Service{
		remote:  remote,
		docs:    docs,
		llm:     llm,
		enabled: enabled && remote != nil,
		logger:  logger.GetLogger(),
	}
}

// Enabled reports whether memory recalls and writes are active.
func (s *Service) Enabled() bool { return s.enabled }

func factPath(userID, factID string) string {
	return fmt.Sprintf("users/%s/memories/%s", userID, factID)
}

func factsPrefix(userID string) string {
	return fmt.Sprintf("users/%s/memories", userID)
}

// Recall queries the remote provider; when it is unavailable the local
// records are scanned by substring instead.
func (s *Service) Recall(ctx context.Context, userID, query string) ([]Fact, error) {
	if !s.enabled {
		return nil, nil
	}

	facts, err := s.remote.Search(ctx, userID, query)
	if err == nil {
		return facts, nil
	}
	s.logger.Warn("remote memory search failed, falling back to local scan",
		"user_id", userID, "error", err)
	return s.localScan(ctx, userID, query)
}

func (s *Service) localScan(ctx context.Context, userID, query string) ([]Fact, error) {
	paths, err := s.docs.List(ctx, factsPrefix(userID))
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var facts []Fact
	for _, path := range paths {
		var fact Fact
		if err := s.docs.Get(ctx, path, &fact); err != nil {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(fact.Text), needle) {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

// ExtractAndSave asks the LLM for atomic facts in the completed turn and
// stores each one remotely and locally under the shared identifier.
// Extraction errors are logged and swallowed: they must not make a
// successful turn look failed.
func (s *Service) ExtractAndSave(ctx context.Context, userID, userText, assistantText string) []string {
	if !s.enabled {
		return nil
	}

	texts, err := s.extractFacts(ctx, userText, assistantText)
	if err != nil {
		s.logger.Warn("memory extraction failed", "user_id", userID, "error", err)
		return nil
	}

	var factIDs []string
	for _, text := range texts {
		factID, err := s.save(ctx, userID, text)
		if err != nil {
			s.logger.Warn("memory save failed", "user_id", userID, "error", err)
			continue
		}
		factIDs = append(factIDs, factID)
	}
	return factIDs
}

func (s *Service) extractFacts(ctx context.Context, userText, assistantText string) ([]string, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("no extraction model configured")
	}

	messages := []llms.Message{
		{Role: "system", Content: extractionInstruction},
		{Role: "user", Content: fmt.Sprintf("User: %s\n\nAssistant: %s", userText, assistantText)},
	}
	raw, err := s.llm.GenerateStructured(ctx, messages, &llms.StructuredOutputConfig{
		Format: "json",
		Schema: extractionSchema,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Facts []string `json:"facts"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction output: %w", err)
	}

	var facts []string
	for _, text := range parsed.Facts {
		if text = strings.TrimSpace(text); text != "" {
			facts = append(facts, text)
		}
	}
	return facts, nil
}

// save writes the fact remotely first, then records it locally under the
// tail of the returned resource name.
func (s *Service) save(ctx context.Context, userID, text string) (string, error) {
	remoteID, err := s.remote.Append(ctx, userID, text)
	if err != nil {
		return "", err
	}

	factID := FactIDFromRemote(remoteID)
	fact := Fact{
		FactID:    factID,
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
		RemoteID:  remoteID,
	}
	if err := s.docs.Set(ctx, factPath(userID, factID), fact); err != nil {
		return "", fmt.Errorf("failed to record fact locally: %w", err)
	}
	return factID, nil
}

// SaveFact stores a single user-authored fact remotely and locally,
// returning the shared factId.
func (s *Service) SaveFact(ctx context.Context, userID, text string) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("memory bank is disabled")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("fact text cannot be empty")
	}
	return s.save(ctx, userID, text)
}

// List returns the user's facts from the local records.
func (s *Service) List(ctx context.Context, userID string) ([]Fact, error) {
	if !s.enabled {
		return nil, nil
	}
	return s.localScan(ctx, userID, "")
}

// Delete removes a fact. The remote delete is attempted with the stored
// resource name, but the local delete proceeds regardless of the remote
// outcome: local state is authoritative for what the user sees.
func (s *Service) Delete(ctx context.Context, userID, factID string) error {
	if !s.enabled {
		return nil
	}

	s.deleteMu.Lock()
	defer s.deleteMu.Unlock()

	var fact Fact
	err := s.docs.Get(ctx, factPath(userID, factID), &fact)
	if err != nil {
		if errors.Is(err, storage.ErrDocNotFound) {
			return ErrFactNotFound
		}
		return err
	}

	if remoteErr := s.remote.Delete(ctx, userID, fact.RemoteID); remoteErr != nil &&
		!errors.Is(remoteErr, ErrFactNotFound) {
		s.logger.Warn("remote memory delete failed, removing local record anyway",
			"user_id", userID, "fact_id", factID, "error", remoteErr)
	}

	return s.docs.Delete(ctx, factPath(userID, factID))
}

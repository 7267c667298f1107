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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads .env.local then .env when present.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// FromEnv builds a Config from the environment with defaults applied.
func FromEnv() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getenv("MOMENTUM_HOST", ""),
			Port:           getenvInt("MOMENTUM_PORT", 0),
			RequestTimeout: getenvDuration("MOMENTUM_REQUEST_TIMEOUT", 0),
			ToolTimeout:    getenvDuration("MOMENTUM_TOOL_TIMEOUT", 0),
			ChunkTimeout:   getenvDuration("MOMENTUM_CHUNK_TIMEOUT", 0),
		},
		Project: ProjectConfig{
			ProjectID:           getenv("MOMENTUM_PROJECT_ID", ""),
			SearchIndexLocation: getenv("MOMENTUM_SEARCH_INDEX_LOCATION", ""),
			MemoryLocation:      getenv("MOMENTUM_MEMORY_LOCATION", ""),
		},
		Models: ModelsConfig{
			Text:      getenv("MOMENTUM_TEXT_MODEL", ""),
			Image:     getenv("MOMENTUM_IMAGE_MODEL", ""),
			Video:     getenv("MOMENTUM_VIDEO_MODEL", ""),
			Music:     getenv("MOMENTUM_MUSIC_MODEL", ""),
			Embedding: getenv("MOMENTUM_EMBEDDING_MODEL", ""),
		},
		Gemini: GeminiConfig{
			Host:      getenv("MOMENTUM_GEMINI_HOST", ""),
			APIKey:    getenv("GEMINI_API_KEY", ""),
			MaxTokens: getenvInt("MOMENTUM_GEMINI_MAX_TOKENS", 0),
			Temp:      getenvFloat("MOMENTUM_GEMINI_TEMPERATURE", 0),
		},
		Qdrant: QdrantConfig{
			Host:   getenv("MOMENTUM_QDRANT_HOST", ""),
			Port:   getenvInt("MOMENTUM_QDRANT_PORT", 0),
			APIKey: getenv("QDRANT_API_KEY", ""),
			UseTLS: getenvBool("MOMENTUM_QDRANT_TLS", false),
		},
		Session: SessionConfig{
			TokenBudget: getenvInt("MOMENTUM_SESSION_TOKEN_BUDGET", 0),
		},
		Search: SearchConfig{
			AutoIndex:        getenvBool("MOMENTUM_AUTO_INDEX", true),
			ReindexBatchSize: getenvInt("MOMENTUM_REINDEX_BATCH_SIZE", 0),
			ExpansionLimit:   getenvInt("MOMENTUM_EXPANSION_LIMIT", 0),
			ExpansionTimeout: getenvDuration("MOMENTUM_EXPANSION_TIMEOUT", 0),
		},
		Memory: MemoryConfig{
			EnableMemoryBank: getenvBool("MOMENTUM_ENABLE_MEMORY_BANK", true),
			BaseURL:          getenv("MOMENTUM_MEMORY_HOST", ""),
		},
		Jobs: JobsConfig{
			PollInterval: getenvDuration("MOMENTUM_JOB_POLL_INTERVAL", 0),
			MaxDuration:  getenvDuration("MOMENTUM_JOB_MAX_DURATION", 0),
		},
		Storage: StorageConfig{
			DocDBPath:          getenv("MOMENTUM_DOCDB_PATH", ""),
			ObjectStoreBucket:  getenv("MOMENTUM_BUCKET", ""),
			ObjectStoreBaseURL: getenv("MOMENTUM_OBJECT_STORE_URL", ""),
			ObjectStoreToken:   getenv("MOMENTUM_OBJECT_STORE_TOKEN", ""),
		},
		WebSearch: WebSearchConfig{
			BaseURL:    getenv("MOMENTUM_WEB_SEARCH_URL", ""),
			MaxResults: getenvInt("MOMENTUM_WEB_SEARCH_MAX_RESULTS", 0),
		},
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

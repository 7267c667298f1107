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

// Package config holds the service configuration. Values come from the
// environment (MOMENTUM_* variables, optionally via .env files) with
// code-level defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the agent service.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Project ProjectConfig `json:"project"`
	Models  ModelsConfig  `json:"models"`
	Gemini  GeminiConfig  `json:"gemini"`
	Qdrant  QdrantConfig  `json:"qdrant"`
	Session SessionConfig `json:"session"`
	Search  SearchConfig  `json:"search"`
	Memory  MemoryConfig  `json:"memory"`
	Jobs    JobsConfig    `json:"jobs"`
	Storage StorageConfig `json:"storage"`

	WebSearch WebSearchConfig `json:"web_search"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// RequestTimeout is the per-request wall clock limit.
	RequestTimeout time.Duration `json:"request_timeout"`

	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration `json:"tool_timeout"`

	// ChunkTimeout bounds inactivity between LLM stream chunks.
	ChunkTimeout time.Duration `json:"chunk_timeout"`
}

// ProjectConfig names the tenant namespace and provider regions.
type ProjectConfig struct {
	ProjectID           string `json:"project_id"`
	SearchIndexLocation string `json:"search_index_location"`
	MemoryLocation      string `json:"memory_location"`
}

// ModelsConfig selects default model identifiers. Any of these may be
// overridden per request through the chat settings payload.
type ModelsConfig struct {
	Text      string `json:"text"`
	Image     string `json:"image"`
	Video     string `json:"video"`
	Music     string `json:"music"`
	Embedding string `json:"embedding"`
}

// GeminiConfig configures the Gemini HTTP endpoint.
type GeminiConfig struct {
	Host      string  `json:"host"`
	APIKey    string  `json:"-"`
	MaxTokens int     `json:"max_tokens"`
	Temp      float64 `json:"temperature"`
}

// QdrantConfig configures the vector index provider.
type QdrantConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"-"`
	UseTLS bool   `json:"use_tls"`
}

// SessionConfig configures session history handling.
type SessionConfig struct {
	// TokenBudget is the soft cap before history trimming.
	TokenBudget int `json:"token_budget"`
}

// SearchConfig configures the media index manager.
type SearchConfig struct {
	// AutoIndex upserts new media items into the vector index on creation.
	AutoIndex bool `json:"auto_index"`

	// ReindexBatchSize is the number of items per upsert batch.
	ReindexBatchSize int `json:"reindex_batch_size"`

	// ExpansionLimit caps generative query expansion variants.
	ExpansionLimit int `json:"expansion_limit"`

	// ExpansionTimeout bounds the expansion LLM call.
	ExpansionTimeout time.Duration `json:"expansion_timeout"`
}

// MemoryConfig configures long-term memory.
type MemoryConfig struct {
	// EnableMemoryBank toggles all memory recalls and writes.
	EnableMemoryBank bool `json:"enable_memory_bank"`

	// BaseURL is the remote memory provider endpoint. Empty disables the
	// remote provider; recall then works from the local mirror only.
	BaseURL string `json:"base_url"`
}

// WebSearchConfig configures the web search backend.
type WebSearchConfig struct {
	// BaseURL is a SearXNG-compatible search endpoint. Empty disables the
	// web search tool.
	BaseURL string `json:"base_url"`

	MaxResults int `json:"max_results"`
}

// JobsConfig configures the long-running job tracker.
type JobsConfig struct {
	PollInterval time.Duration `json:"poll_interval"`

	// MaxDuration is the hard cap after which a job is failed.
	MaxDuration time.Duration `json:"max_duration"`
}

// StorageConfig selects persistence backends.
type StorageConfig struct {
	// DocDBPath is the SQLite file for the document DB; empty selects the
	// in-memory backend.
	DocDBPath string `json:"docdb_path"`

	// ObjectStoreBucket is the bucket for generated media.
	ObjectStoreBucket string `json:"object_store_bucket"`

	// ObjectStoreBaseURL selects the HTTP object store; empty selects the
	// in-memory backend.
	ObjectStoreBaseURL string `json:"object_store_base_url"`
	ObjectStoreToken   string `json:"-"`
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 5 * time.Minute
	}
	if c.Server.ToolTimeout == 0 {
		c.Server.ToolTimeout = 3 * time.Minute
	}
	if c.Server.ChunkTimeout == 0 {
		c.Server.ChunkTimeout = 60 * time.Second
	}
	if c.Project.SearchIndexLocation == "" {
		c.Project.SearchIndexLocation = "us-central1"
	}
	if c.Project.MemoryLocation == "" {
		c.Project.MemoryLocation = "us-central1"
	}
	if c.Models.Text == "" {
		c.Models.Text = "gemini-2.5-flash"
	}
	if c.Models.Image == "" {
		c.Models.Image = "imagen-4.0-generate-001"
	}
	if c.Models.Video == "" {
		c.Models.Video = "veo-3.0-generate-001"
	}
	if c.Models.Music == "" {
		c.Models.Music = "lyria-002"
	}
	if c.Models.Embedding == "" {
		c.Models.Embedding = "gemini-embedding-001"
	}
	if c.Gemini.Host == "" {
		c.Gemini.Host = "https://generativelanguage.googleapis.com"
	}
	if c.Gemini.MaxTokens == 0 {
		c.Gemini.MaxTokens = 8192
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
	if c.Session.TokenBudget == 0 {
		c.Session.TokenBudget = 30000
	}
	if c.Search.ReindexBatchSize == 0 {
		c.Search.ReindexBatchSize = 10
	}
	if c.Search.ExpansionLimit == 0 {
		c.Search.ExpansionLimit = 5
	}
	if c.Search.ExpansionTimeout == 0 {
		c.Search.ExpansionTimeout = 3 * time.Second
	}
	if c.Jobs.PollInterval == 0 {
		c.Jobs.PollInterval = 5 * time.Second
	}
	if c.Jobs.MaxDuration == 0 {
		c.Jobs.MaxDuration = 30 * time.Minute
	}
	if c.WebSearch.MaxResults == 0 {
		c.WebSearch.MaxResults = 5
	}
	if c.Storage.ObjectStoreBucket == "" {
		c.Storage.ObjectStoreBucket = "momentum-media"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Session.TokenBudget < 0 {
		return fmt.Errorf("session token budget cannot be negative")
	}
	if c.Search.ReindexBatchSize <= 0 {
		return fmt.Errorf("reindex batch size must be positive")
	}
	if c.Search.ExpansionLimit <= 0 {
		return fmt.Errorf("expansion limit must be positive")
	}
	return nil
}

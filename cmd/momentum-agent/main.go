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

// Command momentum-agent runs the agent orchestration service.
//
// Usage:
//
//	momentum-agent serve
//	momentum-agent version
//
// Configuration comes from MOMENTUM_* environment variables, optionally
// via .env files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/momentumhq/momentum-agent/pkg/agent"
	"github.com/momentumhq/momentum-agent/pkg/config"
	"github.com/momentumhq/momentum-agent/pkg/embedders"
	"github.com/momentumhq/momentum-agent/pkg/jobs"
	"github.com/momentumhq/momentum-agent/pkg/llms"
	"github.com/momentumhq/momentum-agent/pkg/logger"
	"github.com/momentumhq/momentum-agent/pkg/media"
	"github.com/momentumhq/momentum-agent/pkg/memory"
	"github.com/momentumhq/momentum-agent/pkg/protocol"
	"github.com/momentumhq/momentum-agent/pkg/resolver"
	"github.com/momentumhq/momentum-agent/pkg/search"
	"github.com/momentumhq/momentum-agent/pkg/server"
	"github.com/momentumhq/momentum-agent/pkg/session"
	"github.com/momentumhq/momentum-agent/pkg/storage"
	"github.com/momentumhq/momentum-agent/pkg/tools"
	"github.com/momentumhq/momentum-agent/pkg/vector"
	"github.com/momentumhq/momentum-agent/pkg/websearch"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the agent service."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("momentum-agent %s\n", version)
	return nil
}

// ServeCmd starts the HTTP service.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides MOMENTUM_PORT)." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cli.LogFormat)
	log := logger.GetLogger()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = srv.Stop(shutdownCtx)
		cancel()
	}()

	if err := srv.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// buildDeps wires the component graph from configuration.
func buildDeps(cfg *config.Config) (server.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (server.Deps, func(), error) {
		cleanup()
		return server.Deps{}, func() {}, err
	}

	llm, err := llms.NewGeminiProvider(cfg.Gemini, cfg.Models.Text)
	if err != nil {
		return fail(fmt.Errorf("llm provider: %w", err))
	}
	closers = append(closers, func() { _ = llm.Close() })

	embedder, err := embedders.NewGeminiEmbedder(cfg.Gemini, cfg.Models.Embedding)
	if err != nil {
		return fail(fmt.Errorf("embedder: %w", err))
	}

	vectors, err := vector.NewQdrantProvider(cfg.Qdrant)
	if err != nil {
		return fail(fmt.Errorf("vector provider: %w", err))
	}
	closers = append(closers, func() { _ = vectors.Close() })

	var docs storage.DocumentDB
	var sessions session.Store
	if cfg.Storage.DocDBPath != "" {
		sqlDocs, err := storage.NewSQLDocumentDB(cfg.Storage.DocDBPath)
		if err != nil {
			return fail(fmt.Errorf("document db: %w", err))
		}
		docs = sqlDocs
		sqlSessions, err := session.NewSQLStore(cfg.Storage.DocDBPath)
		if err != nil {
			return fail(fmt.Errorf("session store: %w", err))
		}
		sessions = sqlSessions
	} else {
		docs = storage.NewMemoryDocumentDB()
		sessions = session.NewMemoryStore()
	}
	closers = append(closers, func() { _ = docs.Close() })
	closers = append(closers, func() { _ = sessions.Close() })

	var objects storage.ObjectStore
	if cfg.Storage.ObjectStoreBaseURL != "" {
		objects, err = storage.NewHTTPObjectStore(cfg.Storage.ObjectStoreBaseURL, cfg.Storage.ObjectStoreBucket, cfg.Storage.ObjectStoreToken)
		if err != nil {
			return fail(fmt.Errorf("object store: %w", err))
		}
	} else {
		objects = storage.NewMemoryObjectStore(cfg.Storage.ObjectStoreBucket)
	}
	fetcher := storage.NewFetcher(objects)

	counter, err := session.NewEstimatingCounter(cfg.Models.Text)
	if err != nil {
		return fail(fmt.Errorf("token counter: %w", err))
	}

	library := search.NewLibrary(docs)
	expander := search.NewExpander(llm, cfg.Search.ExpansionLimit, cfg.Search.ExpansionTimeout)
	manager := search.NewManager(vectors, embedder, docs, library, expander, cfg.Search)

	var remote memory.LongTermMemory
	if cfg.Memory.BaseURL != "" {
		remote, err = memory.NewRemoteProvider(cfg.Memory.BaseURL, cfg.Project.ProjectID, cfg.Project.MemoryLocation, cfg.Gemini.APIKey)
		if err != nil {
			return fail(fmt.Errorf("memory provider: %w", err))
		}
	}
	memSvc := memory.NewService(remote, docs, llm, cfg.Memory.EnableMemoryBank)

	tracker := jobs.NewTracker(docs, cfg.Jobs)

	imageGen, err := media.NewImagenGenerator(cfg.Gemini, cfg.Models.Image)
	if err != nil {
		return fail(fmt.Errorf("image generator: %w", err))
	}
	videoGen, err := media.NewVeoGenerator(cfg.Gemini, cfg.Models.Video)
	if err != nil {
		return fail(fmt.Errorf("video generator: %w", err))
	}
	musicGen, err := media.NewLyriaGenerator(cfg.Gemini, cfg.Models.Music)
	if err != nil {
		return fail(fmt.Errorf("music generator: %w", err))
	}

	registry := tools.NewRegistry()
	for _, tool := range []tools.Tool{
		tools.NewGenerateTextTool(llm),
		tools.NewGenerateImageTool(imageGen, objects),
		tools.NewEditOrComposeImageTool(imageGen, objects, fetcher),
		tools.NewGenerateVideoTool(videoGen, objects, fetcher, tracker),
		tools.NewGenerateMusicTool(musicGen, objects),
		tools.NewAnalyzeImageTool(llm, fetcher),
		tools.NewSearchMediaLibraryTool(manager),
		tools.NewIndexMediaItemTool(library, manager, llm, fetcher),
		tools.NewQueryBrandDocumentsTool(docs),
		tools.NewCrawlWebsiteTool(docs, tracker),
		tools.NewProcessYoutubeVideoTool(llm),
		tools.NewRecallMemoryTool(memSvc),
		tools.NewSaveMemoryTool(memSvc),
		tools.NewCreateTeamEventTool(llm, docs),
	} {
		if err := registry.Add(tool); err != nil {
			return fail(fmt.Errorf("tool registry: %w", err))
		}
	}
	if cfg.WebSearch.BaseURL != "" {
		searcher, err := websearch.NewHTTPSearcher(cfg.WebSearch.BaseURL, cfg.WebSearch.MaxResults)
		if err != nil {
			return fail(fmt.Errorf("web search: %w", err))
		}
		if err := registry.Add(tools.NewWebSearchTool(searcher)); err != nil {
			return fail(fmt.Errorf("tool registry: %w", err))
		}
	}

	mediaResolver := resolver.New(libraryLookup(manager))

	runner := agent.NewRunner(llm, sessions, counter, memSvc, mediaResolver, registry, fetcher, agent.Options{
		TokenBudget:  cfg.Session.TokenBudget,
		ChunkTimeout: cfg.Server.ChunkTimeout,
		ToolTimeout:  cfg.Server.ToolTimeout,
	})

	return server.Deps{
		Runner:   runner,
		Sessions: sessions,
		Memory:   memSvc,
		Manager:  manager,
		Library:  library,
		Tracker:  tracker,
	}, cleanup, nil
}

// libraryLookup adapts the media search path to the resolver's named
// asset lookup.
func libraryLookup(manager *search.Manager) resolver.LookupFunc {
	return func(ctx context.Context, brandID, query string) ([]protocol.MediaHandle, float64, error) {
		hits, err := manager.SearchMedia(ctx, brandID, query, 3)
		if err != nil || len(hits) == 0 {
			return nil, 0, err
		}
		handles := make([]protocol.MediaHandle, 0, len(hits))
		for _, hit := range hits {
			handles = append(handles, protocol.MediaHandle{
				ID:     hit.Item.MediaID,
				Kind:   hit.Item.Kind,
				URI:    hit.Item.StorageURI,
				Source: protocol.SourceLibraryLookup,
			})
		}
		return handles, hits[0].Score, nil
	}
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("momentum-agent"),
		kong.Description("Multi-tenant agent orchestration service."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

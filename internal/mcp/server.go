package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codeatlas/internal/config"
	"github.com/dshills/codeatlas/internal/embedder"
	"github.com/dshills/codeatlas/internal/enrich"
	"github.com/dshills/codeatlas/internal/graph"
	"github.com/dshills/codeatlas/internal/ingest"
	"github.com/dshills/codeatlas/internal/jobs"
	"github.com/dshills/codeatlas/internal/rag"
	"github.com/dshills/codeatlas/internal/storage"
	"github.com/dshills/codeatlas/internal/watch"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeatlas"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  *storage.Store
	rag      *rag.Store
	graph    *graph.Service
	enricher *enrich.Enricher
	jobs     *jobs.Indexer
	watcher  *watch.Watcher // nil when file watching is disabled
}

// NewServer wires the full stack from configuration and registers the
// tool surface. The background indexer starts immediately.
func NewServer(cfg *config.Config) (*Server, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ragStore := rag.New(store, emb, ingest.DefaultRegistry())
	graphSvc := graph.New(store)

	indexer := jobs.New(ragStore, graphSvc, jobs.Options{
		Workers:   cfg.Indexing.Workers,
		QueueSize: cfg.Indexing.QueueSize,
		Directory: rag.DirectoryOptions{
			Include:   cfg.Indexing.Include,
			Exclude:   cfg.Indexing.Exclude,
			Recursive: true,
		},
	})
	indexer.Start()

	var watcher *watch.Watcher
	if cfg.Watch.Enabled {
		watcher, err = watch.New(ragStore, graphSvc, watch.Options{
			Debounce: cfg.Watch.Debounce,
			Exclude:  cfg.Indexing.Exclude,
		})
		if err != nil {
			indexer.Stop()
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize watcher: %w", err)
		}
		watcher.Start()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		rag:      ragStore,
		graph:    graphSvc,
		enricher: enrich.New(graphSvc),
		jobs:     indexer,
		watcher:  watcher,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close stops the watcher and background indexer, then releases the
// database.
func (s *Server) Close() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.jobs.Stop()
	_ = s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDirectoryTool(), s.handleIndexDirectory)
	s.mcp.AddTool(jobStatusTool(), s.handleJobStatus)
	s.mcp.AddTool(cancelJobTool(), s.handleCancelJob)
	s.mcp.AddTool(queryTool(), s.handleQuery)
	s.mcp.AddTool(graphSearchTool(), s.handleGraphSearch)
	s.mcp.AddTool(enrichPromptTool(), s.handleEnrichPrompt)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(removeContentTool(), s.handleRemoveContent)
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/converter"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
)

const (
	// ServerName is the MCP server name
	ServerName = "docindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultCacheSize bounds the count_tokens cache
	DefaultCacheSize = 1024
)

// Options configures a Server
type Options struct {
	Config    *config.Config
	Tokenizer tokens.Tokenizer
	Logger    *slog.Logger

	// Converter overrides passed to every run; nil selects the defaults
	Markdown   converter.Converter
	Structured converter.Converter
}

// Server wraps the MCP server with application dependencies. It keeps one
// Indexer per root so runs on the same root never overlap.
type Server struct {
	mcp    *server.MCPServer
	opts   Options
	cache  *tokens.Cache
	logger *slog.Logger

	mu       sync.Mutex
	indexers map[string]*indexer.Indexer
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Tokenizer == nil {
		tok, err := tokens.NewTiktoken(opts.Config.Encoding)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
		}
		opts.Tokenizer = tok
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		opts:     opts,
		cache:    tokens.NewCache(DefaultCacheSize),
		logger:   opts.Logger,
		indexers: make(map[string]*indexer.Indexer),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases every open index store
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for root, idx := range s.indexers {
		if err := idx.Store().Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
		}
		delete(s.indexers, root)
	}
	return errors.Join(errs...)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(countTokensTool(), s.handleCountTokens)
	return nil
}

// indexerFor returns the Indexer for root, opening its store on first use
func (s *Server) indexerFor(root string) (*indexer.Indexer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexers[root]; ok {
		return idx, nil
	}
	store, err := storage.Open(s.opts.Config.Store, root)
	if err != nil {
		return nil, err
	}
	idx := indexer.New(store, s.opts.Tokenizer, s.logger.With("root", root))
	s.indexers[root] = idx
	return idx, nil
}

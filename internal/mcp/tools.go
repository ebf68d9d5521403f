package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another run on the same root is still going
	ErrorCodeEmptyInput         = -32004 // Neither text nor path given
)

// maxReportedErrors caps the per-file errors included in a response
const maxReportedErrors = 5

// handleIndexDocuments handles the index_documents tool invocation
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	base := *s.opts.Config
	base.Root = root
	cfg, err := indexer.ConfigFrom(&base)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "invalid server configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if name := getStringDefault(args, "docx_converter", ""); name != "" {
		conv, err := types.ParseDocxConverter(name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid docx_converter", map[string]interface{}{
				"param":   "docx_converter",
				"value":   name,
				"allowed": []string{string(types.DocxMarkitdown), string(types.DocxSuperdoc)},
			})
		}
		cfg.DocxConverter = conv
	}

	if name := getStringDefault(args, "failed_conversion_policy", ""); name != "" {
		policy, err := indexer.ParsePolicy(name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid failed_conversion_policy", map[string]interface{}{
				"param":   "failed_conversion_policy",
				"value":   name,
				"allowed": []string{"advance", "retry"},
			})
		}
		cfg.Policy = policy
	}

	exclude, err := getStringSlice(args, "exclude")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "exclude must be an array of strings", map[string]interface{}{
			"param": "exclude",
		})
	}
	cfg.Exclude = append(cfg.Exclude, exclude...)

	if s.opts.Markdown != nil {
		cfg.Markdown = s.opts.Markdown
	}
	if s.opts.Structured != nil {
		cfg.Structured = s.opts.Structured
	}

	idx, err := s.indexerFor(root)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open index store", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := idx.Run(ctx, cfg)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress for this path", map[string]interface{}{
			"path": root,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":          true,
		"run_id":           stats.RunID,
		"docx_converter":   string(cfg.DocxConverter),
		"files_discovered": stats.FilesDiscovered,
		"files_converted":  stats.FilesConverted,
		"files_unchanged":  stats.FilesUnchanged,
		"files_counted":    stats.FilesCounted,
		"files_failed":     stats.Failed(),
		"total_tokens":     stats.TotalTokens,
		"duration_ms":      stats.Duration.Milliseconds(),
	}

	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	idx, err := s.indexerFor(root)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open index store", map[string]interface{}{
			"error": err.Error(),
		})
	}

	index, err := idx.Store().Load(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load index", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":              len(index.Hashes) > 0,
		"path":                 root,
		"store":                storage.Location(idx.Store()),
		"files_indexed":        len(index.Hashes),
		"artifacts_counted":    len(index.Tokens),
		"total_tokens":         index.TotalTokens(),
		"indexing_in_progress": idx.Running(),
	}
	if len(index.Hashes) == 0 {
		response["message"] = "No documents indexed. Use index_documents tool to index this directory."
	}

	if getBoolDefault(args, "include_files", false) {
		response["artifacts"] = index.Tokens
	}

	if rec, ok := idx.Store().(storage.RunRecorder); ok {
		last, err := rec.LastRun(ctx)
		switch {
		case err == nil:
			response["last_run"] = map[string]interface{}{
				"run_id":      last.ID,
				"finished_at": last.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
				"converted":   last.Converted,
				"unchanged":   last.Unchanged,
				"failed":      last.Failed,
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, newMCPError(ErrorCodeInternalError, "failed to read run history", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCountTokens handles the count_tokens tool invocation
func (s *Server) handleCountTokens(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, hasText := args["text"].(string)
	path := getStringDefault(args, "path", "")
	if !hasText && path == "" {
		return nil, newMCPError(ErrorCodeEmptyInput, "text or path parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing",
		})
	}

	tok := s.opts.Tokenizer
	if name := getStringDefault(args, "encoding", ""); name != "" && name != tok.Encoding() {
		alt, err := tokens.NewTiktoken(name)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid encoding", map[string]interface{}{
				"param":   "encoding",
				"value":   name,
				"allowed": tokens.Encodings,
			})
		}
		tok = alt
	}

	response := map[string]interface{}{}
	if !hasText {
		if !filepath.IsAbs(path) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "path",
				"reason": ErrPathNotAbsolute.Error(),
			})
		}
		var err error
		text, err = tokens.ReadText(path)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "failed to read file", map[string]interface{}{
				"param":  "path",
				"reason": err.Error(),
			})
		}
		response["path"] = path
	}

	stats, err := s.cache.Analyze(tok, text)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count tokens", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response["encoding"] = stats.Encoding
	response["tokens"] = stats.Tokens
	response["characters"] = stats.Characters
	response["words"] = stats.Words
	response["lines"] = stats.Lines
	response["chars_per_token"] = fmt.Sprintf("%.2f", stats.CharsPerToken())

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requirePath extracts and validates the path argument
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: non-string element", key)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: not an array", key)
	}
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)

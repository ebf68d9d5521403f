package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
)

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Convert new or changed PDF, email and DOCX files under a directory to text and update the hash and token indices",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the document root",
				},
				"docx_converter": map[string]interface{}{
					"type":        "string",
					"description": "DOCX backend: markitdown writes <file>.md, superdoc-redlines writes <file>.json",
					"enum":        []string{string(types.DocxMarkitdown), string(types.DocxSuperdoc)},
					"default":     string(types.DefaultDocxConverter),
				},
				"failed_conversion_policy": map[string]interface{}{
					"type":        "string",
					"description": "What to record for a changed file whose conversion failed: advance stores the new digest, retry keeps the old one",
					"enum":        []string{"advance", "retry"},
					"default":     "advance",
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns (relative to path) to skip, e.g. 'archive/**'",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report what the indices of a document root currently hold",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the document root",
				},
				"include_files": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, list every artifact with its token count",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// countTokensTool returns the tool definition for count_tokens
func countTokensTool() mcp.Tool {
	return mcp.Tool{
		Name:        "count_tokens",
		Description: "Count tokens in a text or a file with a tiktoken encoding",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to count (either text or path is required)",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of a text file to count",
				},
				"encoding": map[string]interface{}{
					"type":        "string",
					"description": "Tokenizer encoding; defaults to the server's encoding",
					"enum":        tokens.Encodings,
				},
			},
		},
	}
}

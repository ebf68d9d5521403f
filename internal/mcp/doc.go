// Package mcp implements the Model Context Protocol (MCP) server for docindex.
//
// The server exposes three tools to AI agents:
//   - index_documents: Convert new or changed documents and update the indices
//   - get_status: Report what the indices of a root currently hold
//   - count_tokens: Count tokens in a text or a file
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr so stdout carries protocol messages only.
//
// # Basic Usage
//
//	docindex serve
//
// # Tool: index_documents
//
//	Request:
//	{
//	  "name": "index_documents",
//	  "arguments": {
//	    "path": "/matters/acme",
//	    "docx_converter": "markitdown",
//	    "failed_conversion_policy": "advance",
//	    "exclude": ["archive/**"]
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "run_id": "0b6f...",
//	  "files_discovered": 42,
//	  "files_converted": 3,
//	  "files_unchanged": 39,
//	  "files_failed": 0,
//	  "total_tokens": 381204,
//	  "duration_ms": 5120
//	}
//
// Only one run per root may be active. A second call for the same root
// fails with ErrorCodeIndexingInProgress.
//
// # Tool: get_status
//
//	Request:
//	{
//	  "name": "get_status",
//	  "arguments": {"path": "/matters/acme", "include_files": false}
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "store": ".hash_index.csv and .token_index.csv",
//	  "files_indexed": 42,
//	  "artifacts_counted": 42,
//	  "total_tokens": 381204,
//	  "indexing_in_progress": false
//	}
//
// With the SQLite store the response also carries last_run.
//
// # Tool: count_tokens
//
//	Request:
//	{
//	  "name": "count_tokens",
//	  "arguments": {"path": "/matters/acme/complaint.pdf.md", "encoding": "o200k_base"}
//	}
//
//	Response:
//	{
//	  "encoding": "o200k_base",
//	  "tokens": 5231,
//	  "characters": 21733,
//	  "words": 3650,
//	  "lines": 402,
//	  "chars_per_token": "4.15"
//	}
//
// Counts are cached by content digest and encoding.
//
// # Error Codes
//
//	-32602  Invalid params (bad path, unknown converter, policy or encoding)
//	-32603  Internal error (store or pipeline failure)
//	-32002  Indexing already in progress for the root
//	-32004  count_tokens called without text or path
package mcp

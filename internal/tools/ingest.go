package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleIngestFacts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	if s.store == nil {
		return errResult("no store configured"), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	// Lock to prevent an analysis run from reading a half-ingested store
	s.runMu.Lock()
	defer s.runMu.Unlock()

	results, err := s.store.Ingest(ctx, absPath)
	if err != nil {
		return errResult(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	changed := 0
	for _, r := range results {
		if r.Changed {
			changed++
		}
	}
	return jsonResult(map[string]any{
		"repos":   results,
		"changed": changed,
		"total":   len(results),
	}), nil
}

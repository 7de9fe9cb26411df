package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListRepos(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return errResult("no store configured"), nil
	}
	repos, err := s.store.ListRepos()
	if err != nil {
		return errResult(fmt.Sprintf("list repos: %v", err)), nil
	}
	total, _ := s.store.CountFacts("")

	return jsonResult(map[string]any{
		"repos":       repos,
		"total_facts": total,
	}), nil
}

func (s *Server) handleDeleteRepo(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	name := getStringArg(args, "repo")
	if name == "" {
		return errResult("repo is required"), nil
	}
	if s.store == nil {
		return errResult("no store configured"), nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	deleted, err := s.store.DeleteRepo(name)
	if err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}
	if !deleted {
		return errResult(fmt.Sprintf("repo not found: %s", name)), nil
	}

	return jsonResult(map[string]any{
		"deleted": name,
		"status":  "ok",
	}), nil
}

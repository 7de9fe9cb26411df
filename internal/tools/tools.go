package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/contractcheck/internal/httplink"
	"github.com/DeusData/contractcheck/internal/store"
)

// Version is reported to MCP clients. cmd/contractcheck overrides it.
var Version = "dev"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	store *store.Store
	cfg   *httplink.LinkerConfig // nil: load per facts dir, or defaults

	// runMu serialises ingestion and analysis runs so a run never sees a
	// half-ingested store.
	runMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered. cfg may be
// nil, in which case each run loads the configuration next to its facts.
func NewServer(s *store.Store, cfg *httplink.LinkerConfig) *Server {
	srv := &Server{
		store: s,
		cfg:   cfg,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "contractcheck",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	// 1. analyze_contracts
	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_contracts",
		Description: "Check API contracts across repositories. Resolves every endpoint through its router mounts, links outbound HTTP calls to endpoints and reports missing endpoints, orphaned endpoints, method mismatches, env-var call suggestions, classification gaps, unmounted routers and dependency version conflicts. Reads facts from facts_dir if given, otherwise from the ingested store.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"facts_dir": {
					"type": "string",
					"description": "Directory of *.facts.json / *.facts.yaml files. If omitted, uses the ingested store."
				},
				"repos": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Restrict a store-backed run to these repos (default: all)"
				},
				"kinds": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Only return issues of these kinds, e.g. missing_endpoint, method_mismatch"
				},
				"include_summary_only": {
					"type": "boolean",
					"description": "Return only the summary and failures, without the issue list"
				}
			}
		}`),
	}, s.handleAnalyzeContracts)

	// 2. check_dependencies
	s.mcp.AddTool(&mcp.Tool{
		Name:        "check_dependencies",
		Description: "Report packages declared at different versions across repositories, classified critical (major differs), warning (minor differs or not semver) or info (patch differs).",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"facts_dir": {
					"type": "string",
					"description": "Directory of facts files. If omitted, uses the ingested store."
				},
				"package": {
					"type": "string",
					"description": "Only report this package"
				},
				"min_severity": {
					"type": "string",
					"description": "Lowest severity to report",
					"enum": ["critical", "warning", "info"]
				}
			}
		}`),
	}, s.handleCheckDependencies)

	// 3. ingest_facts
	s.mcp.AddTool(&mcp.Tool{
		Name:        "ingest_facts",
		Description: "Load facts files into the store, replacing each repo's previous facts. Unchanged repos (same content hash) are skipped.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "A facts file or a directory of facts files"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleIngestFacts)

	// 4. list_repos
	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_repos",
		Description: "List all ingested repos with their ingested_at timestamp, source file and fact/dependency counts.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListRepos)

	// 5. delete_repo
	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_repo",
		Description: "Delete an ingested repo and all its facts and dependencies. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo": {
					"type": "string",
					"description": "Name of the repo to delete"
				}
			},
			"required": ["repo"]
		}`),
	}, s.handleDeleteRepo)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params.Arguments == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// getStringSliceArg extracts a string array argument. Non-string elements are
// dropped; a single string is accepted as a one-element list.
func getStringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// getBoolArg extracts a boolean argument from parsed args.
func getBoolArg(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		return false
	}
	return b
}

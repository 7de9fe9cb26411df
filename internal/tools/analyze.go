package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/contractcheck/internal/analysis"
	"github.com/DeusData/contractcheck/internal/depconflict"
	"github.com/DeusData/contractcheck/internal/facts"
	"github.com/DeusData/contractcheck/internal/httplink"
	"github.com/DeusData/contractcheck/internal/issue"
)

// loadSnapshot materialises the snapshot for one run, either from a facts
// directory or from the store, along with the linker configuration to use.
func (s *Server) loadSnapshot(ctx context.Context, args map[string]any) (*facts.Snapshot, *httplink.LinkerConfig, error) {
	cfg := s.cfg
	if dir := getStringArg(args, "facts_dir"); dir != "" {
		snap, err := facts.LoadDir(ctx, dir, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("load facts: %w", err)
		}
		if cfg == nil {
			cfg = httplink.LoadConfig(dir)
		}
		return snap, cfg, nil
	}
	if s.store == nil {
		return nil, nil, fmt.Errorf("no store configured: pass facts_dir")
	}
	snap, err := s.store.LoadSnapshot(getStringSliceArg(args, "repos")...)
	if err != nil {
		return nil, nil, err
	}
	return snap, cfg, nil
}

func (s *Server) handleAnalyzeContracts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	var kinds []issue.Kind
	for _, name := range getStringSliceArg(args, "kinds") {
		k, ok := issue.ParseKind(name)
		if !ok {
			return errResult(fmt.Sprintf("unknown issue kind: %s", name)), nil
		}
		kinds = append(kinds, k)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	snap, cfg, err := s.loadSnapshot(ctx, args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	res := analysis.Analyze(snap, cfg)

	res.FilterKinds(kinds...)
	if getBoolArg(args, "include_summary_only") {
		return jsonResult(map[string]any{
			"summary":  res.Summary,
			"failures": res.Failures,
		}), nil
	}
	return jsonResult(res), nil
}

func (s *Server) handleCheckDependencies(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	minSev := depconflict.Info
	if name := getStringArg(args, "min_severity"); name != "" {
		sev, ok := depconflict.ParseSeverity(name)
		if !ok {
			return errResult(fmt.Sprintf("unknown severity: %s", name)), nil
		}
		minSev = sev
	}
	pkg := getStringArg(args, "package")

	s.runMu.Lock()
	defer s.runMu.Unlock()

	snap, _, err := s.loadSnapshot(ctx, args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	all := depconflict.NewAnalyzer(slog.Default(), nil).Analyze(snap.Dependencies())

	conflicts := make([]depconflict.Conflict, 0, len(all))
	for _, c := range all {
		if pkg != "" && !strings.EqualFold(c.Package, pkg) {
			continue
		}
		if !c.Severity.AtLeast(minSev) {
			continue
		}
		conflicts = append(conflicts, c)
	}

	return jsonResult(map[string]any{
		"conflicts": conflicts,
		"total":     len(conflicts),
	}), nil
}

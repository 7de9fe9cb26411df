// Package analysis runs the full contract check over a facts snapshot: mount
// graph construction, path resolution, call linking and dependency conflicts.
package analysis

import (
	"fmt"
	"log/slog"

	"github.com/DeusData/contractcheck/internal/depconflict"
	"github.com/DeusData/contractcheck/internal/facts"
	"github.com/DeusData/contractcheck/internal/httplink"
	"github.com/DeusData/contractcheck/internal/issue"
	"github.com/DeusData/contractcheck/internal/mountgraph"
)

// Failure is a repository whose mount graph could not be built. Its endpoints
// are left out of the run; everything else about it is still analysed.
type Failure struct {
	Repo    string   `json:"repo"`
	Kind    string   `json:"kind"`
	Nodes   []string `json:"nodes"`
	Message string   `json:"message"`
}

// Summary holds the run's headline numbers.
type Summary struct {
	Repos         int                `json:"repos"`
	EndpointCount int                `json:"endpoint_count"`
	CallCount     int                `json:"call_count"`
	IssueCount    int                `json:"issue_count"`
	ByKind        map[issue.Kind]int `json:"by_kind"`
	ConflictCount int                `json:"conflict_count"`
	FailedRepos   int                `json:"failed_repos"`
	Link          httplink.Stats     `json:"link"`
}

// Result is the output of one analysis run.
type Result struct {
	Issues              []issue.Issue          `json:"issues"`
	DependencyConflicts []depconflict.Conflict `json:"dependency_conflicts"`
	Summary             Summary                `json:"summary"`
	Failures            []Failure              `json:"failures"`
}

// HasFindings reports whether the run found anything worth failing a build on.
func (r *Result) HasFindings() bool {
	return len(r.Issues) > 0 || len(r.DependencyConflicts) > 0 || len(r.Failures) > 0
}

// FilterKinds keeps only issues of the given kinds and recounts the issue
// totals in Summary to match. No kinds means no filtering.
func (r *Result) FilterKinds(kinds ...issue.Kind) {
	if len(kinds) == 0 {
		return
	}
	r.Issues = issue.Filter(r.Issues, kinds...)
	r.Summary.IssueCount = len(r.Issues)
	r.Summary.ByKind = issue.CountByKind(r.Issues)
}

// Options tune a run. The zero value uses defaults throughout.
type Options struct {
	Linker *httplink.LinkerConfig
	Deps   *depconflict.Config
	Logger *slog.Logger
}

// Analyze runs the contract check with the given linker configuration.
func Analyze(snap *facts.Snapshot, cfg *httplink.LinkerConfig) *Result {
	return Run(snap, Options{Linker: cfg})
}

// Run runs the contract check. It performs no I/O and never fails: structural
// problems are scoped to their repository and reported in Result.Failures.
func Run(snap *facts.Snapshot, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if snap == nil {
		snap = facts.NewSnapshot()
	}

	g, errs := mountgraph.Build(snap)
	failures := make([]Failure, 0, len(errs))
	for _, err := range errs {
		failures = append(failures, Failure{
			Repo:    err.Repo,
			Kind:    string(err.Kind),
			Nodes:   err.Nodes(),
			Message: err.Error(),
		})
	}

	resolved := g.Resolve()
	link := httplink.New(opts.Linker).Link(resolved, snap.Calls())

	issues := link.Issues
	issues = append(issues, unmountedRouters(g)...)
	issues = append(issues, classificationGaps(snap.Gaps())...)
	issue.Sort(issues)

	conflicts := depconflict.NewAnalyzer(logger, opts.Deps).Analyze(snap.Dependencies())

	res := &Result{
		Issues:              issues,
		DependencyConflicts: conflicts,
		Failures:            failures,
		Summary: Summary{
			Repos:         len(snap.RepoNames()),
			EndpointCount: len(resolved),
			CallCount:     link.Stats.UniqueCalls,
			IssueCount:    len(issues),
			ByKind:        issue.CountByKind(issues),
			ConflictCount: len(conflicts),
			FailedRepos:   len(failures),
			Link:          link.Stats,
		},
	}
	logger.Info("analysis.done",
		"repos", res.Summary.Repos,
		"endpoints", res.Summary.EndpointCount,
		"calls", res.Summary.CallCount,
		"issues", res.Summary.IssueCount,
		"conflicts", res.Summary.ConflictCount,
		"failed_repos", res.Summary.FailedRepos)
	return res
}

// unmountedRouters reports routers that own endpoints but are never mounted,
// in repositories that mount routers at all. A repo without mounts registers
// everything on its app and has nothing to forget.
func unmountedRouters(g *mountgraph.Graph) []issue.Issue {
	var out []issue.Issue
	for _, n := range g.NodesWithRole(mountgraph.RoleUnmounted) {
		if !g.RepoHasMounts(n.Key.Repo) || g.EndpointCount(n.ID) == 0 {
			continue
		}
		is := issue.Issue{
			Kind:       issue.UnmountedRouter,
			Repo:       n.Key.Repo,
			Node:       n.Key.Name,
			Confidence: issue.Low,
		}
		is.Finalize()
		out = append(out, is)
	}
	return out
}

func classificationGaps(gaps []facts.Gap) []issue.Issue {
	out := make([]issue.Issue, 0, len(gaps))
	for _, gap := range gaps {
		is := issue.Issue{
			Kind:       issue.ClassificationGap,
			Repo:       gap.Repo,
			Method:     gap.Fact.Method,
			Path:       gap.Fact.Path,
			URL:        gap.Fact.URL,
			Handler:    gap.Fact.Handler,
			Confidence: issue.Low,
			Message:    fmt.Sprintf("%s (repo %s, fact %d)", gap.Reason, gap.Repo, gap.Index),
		}
		is.Finalize()
		out = append(out, is)
	}
	return out
}

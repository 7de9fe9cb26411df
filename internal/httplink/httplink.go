package httplink

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/DeusData/contractcheck/internal/facts"
	"github.com/DeusData/contractcheck/internal/issue"
	"github.com/DeusData/contractcheck/internal/mountgraph"
)

// Linker matches outbound calls against resolved endpoints and reports the
// contract issues between them.
type Linker struct {
	cfg  *LinkerConfig
	norm *Normalizer
}

// New creates a new HTTP Linker.
func New(cfg *LinkerConfig) *Linker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Linker{cfg: cfg, norm: NewNormalizer(cfg)}
}

// Normalizer returns the linker's URL normalizer.
func (l *Linker) Normalizer() *Normalizer { return l.norm }

// Stats counts what the linker saw.
type Stats struct {
	Calls        int `json:"calls"`
	UniqueCalls  int `json:"unique_calls"`
	Internal     int `json:"internal"`
	External     int `json:"external"`
	Unclassified int `json:"unclassified"`
	Matched      int `json:"matched"`
	Orphaned     int `json:"orphaned"`
}

// LinkResult is the outcome of one Link run. Endpoints is the linker's own
// copy of the input with Consumed set on every endpoint a call resolved to.
type LinkResult struct {
	Issues    []issue.Issue
	Endpoints []mountgraph.ResolvedEndpoint
	Stats     Stats
}

// link holds the per-run state.
type link struct {
	*Linker
	eps      []mountgraph.ResolvedEndpoint
	byMethod map[string][]int
	paths    []string

	missing    map[string]*issue.Issue
	mismatch   map[string]*issue.Issue
	suggest    map[string]*issue.Issue
	order      []*issue.Issue
	stats      Stats
	consumedAt map[string]bool
}

// Link matches calls against endpoints. The input slice is not modified.
func (l *Linker) Link(endpoints []mountgraph.ResolvedEndpoint, calls []facts.Call) *LinkResult {
	r := &link{
		Linker:     l,
		eps:        append([]mountgraph.ResolvedEndpoint(nil), endpoints...),
		byMethod:   make(map[string][]int),
		missing:    make(map[string]*issue.Issue),
		mismatch:   make(map[string]*issue.Issue),
		suggest:    make(map[string]*issue.Issue),
		consumedAt: make(map[string]bool),
	}
	seenPath := make(map[string]bool)
	for i, ep := range r.eps {
		r.byMethod[ep.Method] = append(r.byMethod[ep.Method], i)
		if !seenPath[ep.FullPath] {
			seenPath[ep.FullPath] = true
			r.paths = append(r.paths, ep.FullPath)
		}
	}

	r.stats.Calls = len(calls)
	seenCall := make(map[string]bool)
	for _, c := range calls {
		method := strings.ToUpper(strings.TrimSpace(c.Method))
		key := method + "\x00" + c.URL + "\x00" + c.Repo
		if seenCall[key] {
			continue
		}
		seenCall[key] = true
		r.stats.UniqueCalls++
		r.linkCall(method, c)
	}

	issues := make([]issue.Issue, 0, len(r.order))
	for _, is := range r.order {
		sort.Strings(is.CallerRepos)
		sort.Strings(is.SupportedMethods)
		is.Finalize()
		issues = append(issues, *is)
	}
	for _, is := range r.orphans() {
		is.Finalize()
		issues = append(issues, is)
	}
	issue.Sort(issues)

	slog.Debug("httplink.link",
		"endpoints", len(r.eps),
		"calls", r.stats.UniqueCalls,
		"matched", r.stats.Matched,
		"issues", len(issues))
	return &LinkResult{Issues: issues, Endpoints: r.eps, Stats: r.stats}
}

func (r *link) linkCall(method string, c facts.Call) {
	u := r.norm.Normalize(c.URL)
	if u.Suggest {
		r.suggestEnvVar(u.EnvVar, c)
	}
	switch u.Kind {
	case URLExternal:
		r.stats.External++
		return
	case URLUnclassified:
		r.stats.Unclassified++
		r.aggregate(r.missing, method+"\x00\x00"+c.URL, c.Repo, func() *issue.Issue {
			return &issue.Issue{
				Kind:       issue.MissingEndpoint,
				Method:     method,
				Path:       issue.UnknownPath,
				URL:        c.URL,
				Confidence: issue.Low,
			}
		})
		return
	}
	r.stats.Internal++

	if best := r.bestMatch(method, u.Path); best >= 0 {
		ep := &r.eps[best]
		ep.Consumed = true
		r.consumedAt[orphanKey(ep)] = true
		r.stats.Matched++
		return
	}

	if methods := r.methodsServing(u.Path); len(methods) > 0 {
		is := r.aggregate(r.mismatch, method+"\x00"+u.Path, c.Repo, func() *issue.Issue {
			return &issue.Issue{
				Kind:       issue.MethodMismatch,
				Method:     method,
				Path:       u.Path,
				Confidence: issue.High,
			}
		})
		is.SupportedMethods = mergeUnique(is.SupportedMethods, methods)
		return
	}

	r.aggregate(r.missing, method+"\x00"+u.Path, c.Repo, func() *issue.Issue {
		is := &issue.Issue{
			Kind:       issue.MissingEndpoint,
			Method:     method,
			Path:       u.Path,
			Confidence: issue.High,
		}
		if Specificity(u.Path) > 0 {
			// Templated call paths match less reliably.
			is.Confidence = issue.Medium
		}
		if r.cfg.EffectiveSuggestions() {
			is.Suggestion = closestPath(u.Path, r.paths, r.cfg.EffectiveMinSimilarity())
		}
		return is
	})
}

// bestMatch returns the index of the endpoint serving method and path, or -1.
// Among several, the one with the fewest parameter and wildcard segments wins,
// then the earliest registered.
func (r *link) bestMatch(method, path string) int {
	var candidates []int
	if method == facts.MethodAll {
		candidates = make([]int, len(r.eps))
		for i := range candidates {
			candidates[i] = i
		}
	} else {
		candidates = append(append(candidates, r.byMethod[method]...), r.byMethod[facts.MethodAll]...)
	}

	best, bestRank := -1, 0
	for _, i := range candidates {
		ep := &r.eps[i]
		if !PathsMatch(ep.FullPath, path) {
			continue
		}
		rank := Specificity(ep.FullPath)
		if best < 0 || rank < bestRank || (rank == bestRank && ep.Seq < r.eps[best].Seq) {
			best, bestRank = i, rank
		}
	}
	return best
}

// methodsServing lists the methods of every endpoint whose path matches.
func (r *link) methodsServing(path string) []string {
	var methods []string
	for i := range r.eps {
		if PathsMatch(r.eps[i].FullPath, path) {
			methods = mergeUnique(methods, []string{r.eps[i].Method})
		}
	}
	return methods
}

// aggregate returns the issue stored under key, creating it with create on
// first use, and records repo as one of its callers.
func (r *link) aggregate(m map[string]*issue.Issue, key, repo string, create func() *issue.Issue) *issue.Issue {
	is, ok := m[key]
	if !ok {
		is = create()
		m[key] = is
		r.order = append(r.order, is)
	}
	is.CallerRepos = mergeUnique(is.CallerRepos, []string{repo})
	return is
}

// suggestEnvVar records one suggestion per (env var, caller repo).
func (r *link) suggestEnvVar(name string, c facts.Call) {
	key := name + "\x00" + c.Repo
	if _, ok := r.suggest[key]; ok {
		return
	}
	is := &issue.Issue{
		Kind:       issue.EnvVarCallSuggestion,
		EnvVar:     name,
		Repo:       c.Repo,
		URL:        c.URL,
		Confidence: issue.Medium,
	}
	r.suggest[key] = is
	r.order = append(r.order, is)
}

// orphans reports every endpoint no call resolved to, once per
// (repo, method, full path), skipping excluded paths.
func (r *link) orphans() []issue.Issue {
	exclude := r.cfg.AllExcludePaths()
	seen := make(map[string]bool)
	var out []issue.Issue
	for i := range r.eps {
		ep := &r.eps[i]
		key := orphanKey(ep)
		if ep.Consumed || r.consumedAt[key] || seen[key] {
			continue
		}
		seen[key] = true
		if isPathExcluded(ep.FullPath, exclude) {
			continue
		}
		out = append(out, issue.Issue{
			Kind:       issue.OrphanedEndpoint,
			Method:     ep.Method,
			Path:       ep.FullPath,
			Repo:       ep.Repo,
			Handler:    ep.Handler,
			Confidence: issue.Medium,
		})
	}
	r.stats.Orphaned = len(out)
	return out
}

func orphanKey(ep *mountgraph.ResolvedEndpoint) string {
	return ep.Repo + "\x00" + ep.Method + "\x00" + ep.FullPath
}

// mergeUnique appends the values of add not already in dst.
func mergeUnique(dst, add []string) []string {
	for _, a := range add {
		found := false
		for _, d := range dst {
			if d == a {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, a)
		}
	}
	return dst
}

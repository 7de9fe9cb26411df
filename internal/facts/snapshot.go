package facts

import (
	"fmt"
	"strings"
)

// Snapshot is the fully materialised set of facts for one analysis run.
// It is built once and only read afterwards.
type Snapshot struct {
	Repos []RepoFacts
}

// NewSnapshot merges repos into a snapshot. Entries with the same repo name are
// folded together in the order given; repo order is first-seen order.
func NewSnapshot(repos ...RepoFacts) *Snapshot {
	s := &Snapshot{}
	index := make(map[string]int, len(repos))
	for _, rf := range repos {
		if i, ok := index[rf.Repo]; ok {
			s.Repos[i].Facts = append(s.Repos[i].Facts, rf.Facts...)
			s.Repos[i].Dependencies = append(s.Repos[i].Dependencies, withRepo(rf.Repo, rf.Dependencies)...)
			continue
		}
		index[rf.Repo] = len(s.Repos)
		s.Repos = append(s.Repos, RepoFacts{
			Repo:         rf.Repo,
			Facts:        append([]Fact(nil), rf.Facts...),
			Dependencies: withRepo(rf.Repo, rf.Dependencies),
		})
	}
	return s
}

func withRepo(repo string, deps []Dependency) []Dependency {
	out := make([]Dependency, len(deps))
	for i, d := range deps {
		if d.Repo == "" {
			d.Repo = repo
		}
		out[i] = d
	}
	return out
}

// RepoNames returns the repository names in snapshot order.
func (s *Snapshot) RepoNames() []string {
	names := make([]string, len(s.Repos))
	for i, rf := range s.Repos {
		names[i] = rf.Repo
	}
	return names
}

// Repo returns the facts for a single repository, or nil.
func (s *Snapshot) Repo(name string) *RepoFacts {
	for i := range s.Repos {
		if s.Repos[i].Repo == name {
			return &s.Repos[i]
		}
	}
	return nil
}

// Endpoints returns every usable endpoint fact, numbered in registration order.
func (s *Snapshot) Endpoints() []HTTPEndpoint {
	var out []HTTPEndpoint
	for _, rf := range s.Repos {
		for _, f := range rf.Facts {
			if f.Kind != KindEndpoint || endpointGap(f) != "" {
				continue
			}
			method, _ := NormalizeMethod(f.Method)
			out = append(out, HTTPEndpoint{
				Method:  method,
				Path:    f.Path,
				Owner:   f.Owner,
				Handler: f.Handler,
				Repo:    rf.Repo,
				Seq:     len(out),
			})
		}
	}
	return out
}

// Calls returns every usable call fact. An empty method defaults to GET.
func (s *Snapshot) Calls() []Call {
	var out []Call
	for _, rf := range s.Repos {
		for _, f := range rf.Facts {
			if f.Kind != KindCall || callGap(f) != "" {
				continue
			}
			method := "GET"
			if strings.TrimSpace(f.Method) != "" {
				method, _ = NormalizeMethod(f.Method)
			}
			out = append(out, Call{Method: method, URL: f.URL, Repo: rf.Repo})
		}
	}
	return out
}

// Mounts returns every router mount fact. Mounts with missing names are kept:
// the mount graph builder reports them as structural errors.
func (s *Snapshot) Mounts() []RouterMount {
	var out []RouterMount
	for _, rf := range s.Repos {
		for _, f := range rf.Facts {
			if f.Kind != KindMount {
				continue
			}
			out = append(out, RouterMount{Parent: f.Parent, Child: f.Child, Prefix: f.Prefix, Repo: rf.Repo})
		}
	}
	return out
}

// Dependencies returns every dependency record across all repositories.
func (s *Snapshot) Dependencies() []Dependency {
	var out []Dependency
	for _, rf := range s.Repos {
		out = append(out, rf.Dependencies...)
	}
	return out
}

// Gaps returns the facts that cannot be used by the engine, with a reason.
func (s *Snapshot) Gaps() []Gap {
	var out []Gap
	for _, rf := range s.Repos {
		for i, f := range rf.Facts {
			var reason string
			switch f.Kind {
			case KindEndpoint:
				reason = endpointGap(f)
			case KindCall:
				reason = callGap(f)
			case KindMount, KindMiddleware, KindIrrelevant:
			default:
				reason = fmt.Sprintf("unknown fact kind %q", f.Kind)
			}
			if reason != "" {
				out = append(out, Gap{Repo: rf.Repo, Index: i, Fact: f, Reason: reason})
			}
		}
	}
	return out
}

func endpointGap(f Fact) string {
	if strings.TrimSpace(f.Path) == "" {
		return "endpoint has an empty path"
	}
	if strings.TrimSpace(f.Owner) == "" {
		return "endpoint has no owner"
	}
	if _, ok := NormalizeMethod(f.Method); !ok {
		return fmt.Sprintf("endpoint has unparseable method %q", f.Method)
	}
	return ""
}

func callGap(f Fact) string {
	if strings.TrimSpace(f.URL) == "" {
		return "call has an empty url"
	}
	if strings.TrimSpace(f.Method) == "" {
		return ""
	}
	if _, ok := NormalizeMethod(f.Method); !ok {
		return fmt.Sprintf("call has unparseable method %q", f.Method)
	}
	return ""
}

// Package issue defines the findings produced by a contract analysis run.
package issue

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// Kind is the category of an issue.
type Kind string

const (
	MissingEndpoint      Kind = "missing_endpoint"
	OrphanedEndpoint     Kind = "orphaned_endpoint"
	MethodMismatch       Kind = "method_mismatch"
	EnvVarCallSuggestion Kind = "env_var_call_suggestion"
	ClassificationGap    Kind = "classification_gap"
	UnmountedRouter      Kind = "unmounted_router"
)

// kindOrder fixes the report order of kinds.
var kindOrder = map[Kind]int{
	MissingEndpoint:      0,
	MethodMismatch:       1,
	OrphanedEndpoint:     2,
	UnmountedRouter:      3,
	EnvVarCallSuggestion: 4,
	ClassificationGap:    5,
}

// Confidence expresses how sure the engine is that an issue is real.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Issue is a single finding. Only the fields relevant to Kind are set.
type Issue struct {
	ID               string     `json:"id"`
	Kind             Kind       `json:"kind"`
	Method           string     `json:"method,omitempty"`
	Path             string     `json:"path,omitempty"`
	URL              string     `json:"url,omitempty"`
	Repo             string     `json:"repo,omitempty"`
	CallerRepos      []string   `json:"caller_repos,omitempty"`
	SupportedMethods []string   `json:"supported_methods,omitempty"`
	EnvVar           string     `json:"env_var,omitempty"`
	Handler          string     `json:"handler,omitempty"`
	Node             string     `json:"node,omitempty"`
	Suggestion       string     `json:"suggestion,omitempty"`
	Confidence       Confidence `json:"confidence"`
	Message          string     `json:"message"`
}

// Fingerprint returns a stable identifier for the issue. It covers the fields
// that identify the finding, not the ones that describe it, so the ID survives
// changes in caller lists or wording.
func Fingerprint(i *Issue) string {
	h := xxh3.New()
	for _, part := range []string{string(i.Kind), i.Method, i.Path, i.URL, i.Repo, i.EnvVar, i.Node} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Finalize fills in the ID and a default message.
func (i *Issue) Finalize() {
	i.ID = Fingerprint(i)
	if i.Message == "" {
		i.Message = i.describe()
	}
}

func (i *Issue) describe() string {
	switch i.Kind {
	case MissingEndpoint:
		if i.URL != "" && i.Path == UnknownPath {
			return fmt.Sprintf("call %s %s has no discernible path", i.Method, i.URL)
		}
		msg := fmt.Sprintf("no endpoint serves %s %s (called from %s)", i.Method, i.Path, strings.Join(i.CallerRepos, ", "))
		if i.Suggestion != "" {
			msg += "; did you mean " + i.Suggestion + "?"
		}
		return msg
	case OrphanedEndpoint:
		return fmt.Sprintf("%s %s in %s is never called", i.Method, i.Path, i.Repo)
	case MethodMismatch:
		return fmt.Sprintf("%s %s is called but the path only supports %s", i.Method, i.Path, strings.Join(i.SupportedMethods, ", "))
	case EnvVarCallSuggestion:
		return fmt.Sprintf("calls through env var %s in %s are unclassified; add it to internal_env_vars or external_env_vars", i.EnvVar, i.Repo)
	case UnmountedRouter:
		return fmt.Sprintf("router %s in %s owns endpoints but is never mounted", i.Node, i.Repo)
	default:
		return string(i.Kind)
	}
}

// UnknownPath marks a call whose target has no discernible path.
const UnknownPath = "unknown"

// Sort orders issues by kind, then path, method, repo and ID.
func Sort(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := &issues[a], &issues[b]
		if kindOrder[x.Kind] != kindOrder[y.Kind] {
			return kindOrder[x.Kind] < kindOrder[y.Kind]
		}
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		if x.Method != y.Method {
			return x.Method < y.Method
		}
		if x.Repo != y.Repo {
			return x.Repo < y.Repo
		}
		return x.ID < y.ID
	})
}

// CountByKind tallies issues per kind.
func CountByKind(issues []Issue) map[Kind]int {
	counts := make(map[Kind]int)
	for _, i := range issues {
		counts[i.Kind]++
	}
	return counts
}

// Filter returns the issues of the given kinds.
func Filter(issues []Issue, kinds ...Kind) []Issue {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Issue
	for _, i := range issues {
		if want[i.Kind] {
			out = append(out, i)
		}
	}
	return out
}

// ParseKind accepts a kind name in either snake_case or the CamelCase used in
// reports ("MissingEndpoint").
func ParseKind(s string) (Kind, bool) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for k := range kindOrder {
		if strings.ReplaceAll(string(k), "_", "") == norm {
			return k, true
		}
	}
	return "", false
}

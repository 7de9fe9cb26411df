// Package facts holds the classified code facts that upstream collectors
// produce for each repository, and the snapshot the analysis engine consumes.
package facts

import (
	"strings"
)

// Kind is the classification category of a single fact.
type Kind string

const (
	KindEndpoint   Kind = "endpoint"
	KindCall       Kind = "call"
	KindMount      Kind = "mount"
	KindMiddleware Kind = "middleware"
	KindIrrelevant Kind = "irrelevant"
)

// Fact is one classified call site. Which fields are meaningful depends on Kind:
// endpoints use Method/Path/Owner/Handler, calls use Method/URL, mounts use
// Parent/Child/Prefix.
type Fact struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Method  string `json:"method,omitempty" yaml:"method,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Owner   string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Parent  string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Child   string `json:"child,omitempty" yaml:"child,omitempty"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Dependency is a package version declared by a repository manifest.
type Dependency struct {
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	Repo       string `json:"repo,omitempty" yaml:"repo,omitempty"`
	SourcePath string `json:"source,omitempty" yaml:"source,omitempty"`
}

// RepoFacts is everything collected for one repository.
type RepoFacts struct {
	Repo         string       `json:"repo" yaml:"repo"`
	Facts        []Fact       `json:"facts" yaml:"facts"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// HTTPEndpoint is an endpoint definition fact with its repository attached.
type HTTPEndpoint struct {
	Method  string
	Path    string
	Owner   string
	Handler string
	Repo    string
	Seq     int // registration order across the whole snapshot
}

// Call is an outbound data-fetching call fact.
type Call struct {
	Method string
	URL    string
	Repo   string
}

// RouterMount attaches Child to Parent under Prefix.
type RouterMount struct {
	Parent string
	Child  string
	Prefix string
	Repo   string
}

// Gap is a fact the engine cannot use as-is. Gaps are reported as
// low-confidence issues rather than aborting the run.
type Gap struct {
	Repo   string
	Index  int // position of the fact within its repository
	Fact   Fact
	Reason string
}

// knownMethods are the HTTP verbs accepted on facts. ALL/ANY/* mean "any method".
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "ALL": true, "ANY": true, "*": true,
}

// MethodAll is the method of an endpoint that serves every verb.
const MethodAll = "ALL"

// NormalizeMethod uppercases m and reports whether it is a known HTTP method.
func NormalizeMethod(m string) (string, bool) {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "ANY" || m == "*" {
		m = MethodAll
	}
	return m, knownMethods[m]
}

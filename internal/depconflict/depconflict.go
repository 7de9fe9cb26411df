// Package depconflict finds packages that different repositories depend on at
// incompatible versions.
package depconflict

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/DeusData/contractcheck/internal/facts"
)

// Severity ranks a conflict.
type Severity string

const (
	Critical Severity = "critical" // major versions differ
	Warning  Severity = "warning"  // minor versions differ, or versions are not semver
	Info     Severity = "info"     // only patch or prerelease differs
)

func (s Severity) rank() int {
	switch s {
	case Critical:
		return 0
	case Warning:
		return 1
	default:
		return 2
	}
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() <= min.rank()
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(name string) (Severity, bool) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(name))); sev {
	case Critical, Warning, Info:
		return sev, true
	}
	return "", false
}

// RepoVersion is one repository's declared version of a package.
type RepoVersion struct {
	Repo    string `json:"repo"`
	Version string `json:"version"`
	Source  string `json:"source,omitempty"`
}

// Conflict lists every declared version of a package whose versions disagree.
type Conflict struct {
	Package     string        `json:"package"`
	Versions    []RepoVersion `json:"versions"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
}

// Config holds configuration for dependency analysis
type Config struct {
	// IgnorePackages are package names never reported.
	IgnorePackages []string
}

// Analyzer classifies version conflicts between repositories.
type Analyzer struct {
	logger *slog.Logger
	config *Config
	ignore map[string]bool
}

// NewAnalyzer creates a new dependency conflict analyzer
func NewAnalyzer(logger *slog.Logger, config *Config) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = &Config{}
	}
	ignore := make(map[string]bool, len(config.IgnorePackages))
	for _, p := range config.IgnorePackages {
		ignore[p] = true
	}
	return &Analyzer{logger: logger, config: config, ignore: ignore}
}

// Analyze groups deps by package name and returns one Conflict per package
// declared at two or more different versions, most severe first.
func (a *Analyzer) Analyze(deps []facts.Dependency) []Conflict {
	type group struct {
		versions []RepoVersion
		cleaned  []string
	}
	groups := make(map[string]*group)
	var names []string
	for _, d := range deps {
		name := strings.TrimSpace(d.Name)
		if name == "" || a.ignore[name] {
			continue
		}
		cleaned := CleanVersion(d.Version)
		if cleaned == "" {
			continue
		}
		g, ok := groups[name]
		if !ok {
			g = &group{}
			groups[name] = g
			names = append(names, name)
		}
		g.versions = append(g.versions, RepoVersion{Repo: d.Repo, Version: d.Version, Source: d.SourcePath})
		g.cleaned = append(g.cleaned, cleaned)
	}

	var out []Conflict
	for _, name := range names {
		g := groups[name]
		sev, lo, hi, ok := Classify(g.cleaned)
		if !ok {
			continue
		}
		sort.SliceStable(g.versions, func(i, j int) bool {
			if g.versions[i].Repo != g.versions[j].Repo {
				return g.versions[i].Repo < g.versions[j].Repo
			}
			return g.versions[i].Version < g.versions[j].Version
		})
		out = append(out, Conflict{
			Package:     name,
			Versions:    g.versions,
			Severity:    sev,
			Description: describe(name, sev, lo, hi, g.versions),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.rank() != out[j].Severity.rank() {
			return out[i].Severity.rank() < out[j].Severity.rank()
		}
		return out[i].Package < out[j].Package
	})

	a.logger.Debug("depconflict.analyzed", "packages", len(names), "conflicts", len(out))
	return out
}

// Classify compares cleaned versions. It reports ok=false only when every
// cleaned version is identical. lo and hi are the lowest and highest versions, or the first two
// distinct values when some version is not semver.
func Classify(cleaned []string) (sev Severity, lo, hi string, ok bool) {
	var distinct []string
	seen := make(map[string]bool)
	for _, v := range cleaned {
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return "", "", "", false
	}

	canon := make([]string, len(distinct))
	for i, v := range distinct {
		canon[i] = "v" + v
		if !semver.IsValid(canon[i]) {
			// Raw-string fallback: the values differ, severity unknown.
			return Warning, distinct[0], distinct[1], true
		}
	}

	minIdx, maxIdx := 0, 0
	for i := range canon {
		if semver.Compare(canon[i], canon[minIdx]) < 0 {
			minIdx = i
		}
		if semver.Compare(canon[i], canon[maxIdx]) > 0 {
			maxIdx = i
		}
	}
	lo, hi = distinct[minIdx], distinct[maxIdx]
	if minIdx == maxIdx {
		// Every value compares equal (4.18 vs 4.18.0) but the declarations
		// still differ as written.
		return Info, distinct[0], distinct[1], true
	}
	switch {
	case semver.Major(canon[minIdx]) != semver.Major(canon[maxIdx]):
		return Critical, lo, hi, true
	case semver.MajorMinor(canon[minIdx]) != semver.MajorMinor(canon[maxIdx]):
		return Warning, lo, hi, true
	default:
		return Info, lo, hi, true
	}
}

// CleanVersion strips range operators, a leading "v" and surrounding space.
// It keeps the first version of a compound range and returns "" for versions
// that pin nothing ("*", "latest", "x").
func CleanVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "^~>=<* \t")
	v = strings.TrimLeft(v, "vV")
	if i := strings.IndexAny(v, " \t,|"); i >= 0 {
		v = v[:i]
	}
	switch strings.ToLower(v) {
	case "latest", "x", "next":
		return ""
	}
	return v
}

func describe(name string, sev Severity, lo, hi string, versions []RepoVersion) string {
	repos := make(map[string]bool)
	for _, v := range versions {
		repos[v.Repo] = true
	}
	var what string
	switch sev {
	case Critical:
		what = "major versions differ"
	case Warning:
		what = "minor versions differ"
	default:
		what = "patch versions differ"
	}
	if !semver.IsValid("v"+lo) || !semver.IsValid("v"+hi) {
		what = "versions differ"
	}
	return fmt.Sprintf("%s: %s (%s to %s) across %d repos", name, what, lo, hi, len(repos))
}

package httplink

import (
	"regexp"
	"strings"
)

// URLKind classifies a normalized call target.
type URLKind int

const (
	URLUnclassified URLKind = iota
	URLInternal
	URLExternal
)

func (k URLKind) String() string {
	switch k {
	case URLInternal:
		return "internal"
	case URLExternal:
		return "external"
	default:
		return "unclassified"
	}
}

// NormalizedURL is the result of normalizing a raw call target. Path is set
// only for internal targets. EnvVar names the env var the target was routed
// through, if any; Suggest marks an env var that is in neither configured list.
type NormalizedURL struct {
	Kind    URLKind
	Path    string
	Raw     string
	EnvVar  string
	Suggest bool
}

var (
	// ENV_VAR:<NAME>:<path>
	sentinelRe = regexp.MustCompile(`^ENV_VAR:([A-Za-z_][A-Za-z0-9_]*):(.*)$`)

	// [scheme:]//authority rest; a protocol-relative //host/x names a host
	absoluteURLRe = regexp.MustCompile(`^(?:([A-Za-z][A-Za-z0-9+.\-]*):)?//([^/?#]*)(.*)$`)

	identRe      = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)
	envMemberRe  = regexp.MustCompile(`(?:process\.env|import\.meta\.env)(?:\.([A-Za-z_][A-Za-z0-9_]*)|\[\s*["'` + "`" + `]([A-Za-z_][A-Za-z0-9_]*)["'` + "`" + `]\s*\])`)
	upperSnakeRe = regexp.MustCompile(`^[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+$|^[A-Z]{2,}$`)
	portRe       = regexp.MustCompile(`:(\d+|\$\{[^}]*\})$`)
)

// Normalizer turns raw call targets into comparable paths.
type Normalizer struct {
	domains     []string
	internalEnv map[string]bool
	externalEnv map[string]bool
}

// NewNormalizer builds a Normalizer from the linker config.
func NewNormalizer(cfg *LinkerConfig) *Normalizer {
	n := &Normalizer{
		internalEnv: make(map[string]bool),
		externalEnv: make(map[string]bool),
	}
	for _, d := range cfg.HTTPLinker.InternalDomains {
		if d = strings.ToLower(strings.Trim(strings.TrimSpace(d), ".")); d != "" {
			n.domains = append(n.domains, d)
		}
	}
	for _, v := range cfg.HTTPLinker.InternalEnvVars {
		n.internalEnv[strings.TrimSpace(v)] = true
	}
	for _, v := range cfg.HTTPLinker.ExternalEnvVars {
		n.externalEnv[strings.TrimSpace(v)] = true
	}
	return n
}

// Normalize classifies raw and, for internal targets, returns its path.
// Normalizing an internal result's Path again yields the same Path.
func (n *Normalizer) Normalize(raw string) NormalizedURL {
	out := NormalizedURL{Raw: raw}
	s := strings.TrimSpace(raw)

	// based is set once a base URL (host, env var) has been stripped, after
	// which an empty remainder means the service root.
	based := false

	if m := sentinelRe.FindStringSubmatch(s); m != nil {
		out.EnvVar = m[1]
		switch {
		case n.internalEnv[m[1]]:
			s, based = m[2], true
		case n.externalEnv[m[1]]:
			out.Kind = URLExternal
			return out
		default:
			out.Kind = URLExternal
			out.Suggest = true
			return out
		}
	} else if m := absoluteURLRe.FindStringSubmatch(s); m != nil {
		if strings.Contains(m[2], "${") {
			// Templated host: classify like a leading interpolation.
			if out.classifyBase(n, portRe.ReplaceAllString(stripUserinfo(m[2]), "")) {
				return out
			}
		} else if !n.isInternalHost(hostOf(m[2])) {
			out.Kind = URLExternal
			return out
		}
		s, based = m[3], true
	}

	if strings.Contains(s, "${") {
		var ok bool
		s, ok = n.expandTemplate(s, &out)
		if !ok {
			return out
		}
		if out.EnvVar != "" {
			based = true
		}
	}

	s = stripQuery(s)
	if s == "" && !based {
		out.Kind = URLUnclassified
		return out
	}
	if !based && !strings.Contains(s, "/") {
		// A bare identifier such as apiUrl.
		out.Kind = URLUnclassified
		return out
	}
	out.Kind = URLInternal
	out.Path = cleanPath(s)
	return out
}

// classifyBase records the env var behind a base-URL expression. It reports
// true when the target turned out to be external.
func (u *NormalizedURL) classifyBase(n *Normalizer, expr string) bool {
	name := envVarName(expr)
	if name == "" {
		return false
	}
	u.EnvVar = name
	switch {
	case n.externalEnv[name]:
		u.Kind = URLExternal
		return true
	case !n.internalEnv[name]:
		u.Suggest = true
	}
	return false
}

// expandTemplate rewrites ${expr} interpolations. A leading interpolation is
// the base URL and is dropped; every other one becomes a :param segment named
// after the last identifier in expr. It reports false when the result is
// final (external or unclassified) and already stored in out.
func (n *Normalizer) expandTemplate(s string, out *NormalizedURL) (string, bool) {
	var b strings.Builder
	i := 0
	leading := true
	for i < len(s) {
		if !strings.HasPrefix(s[i:], "${") {
			b.WriteByte(s[i])
			i++
			leading = false
			continue
		}
		end := closingBrace(s, i+2)
		if end < 0 {
			// Unterminated: keep the rest as literal text.
			b.WriteString(s[i:])
			break
		}
		expr := s[i+2 : end]
		i = end + 1
		if leading {
			leading = false
			if out.classifyBase(n, expr) {
				return "", false
			}
			if i >= len(s) {
				// The whole target is one interpolation.
				out.Kind = URLUnclassified
				return "", false
			}
			continue
		}
		b.WriteString(":" + paramName(expr))
	}
	return b.String(), true
}

// closingBrace finds the brace closing an interpolation body starting at from.
func closingBrace(s string, from int) int {
	depth := 1
	for j := from; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func paramName(expr string) string {
	ids := identRe.FindAllString(expr, -1)
	if len(ids) == 0 {
		return "param"
	}
	return strings.ToLower(ids[len(ids)-1])
}

// envVarName extracts NAME from process.env.NAME, import.meta.env.NAME or a
// bare UPPER_SNAKE identifier. It returns "" for anything else.
func envVarName(expr string) string {
	expr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(strings.TrimSpace(expr), "}"), "${"))
	if m := envMemberRe.FindStringSubmatch(expr); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	if upperSnakeRe.MatchString(expr) {
		return expr
	}
	return ""
}

// hostOf strips userinfo and port from a URL authority and lowercases it.
func hostOf(authority string) string {
	return strings.ToLower(portRe.ReplaceAllString(stripUserinfo(authority), ""))
}

func stripUserinfo(authority string) string {
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		return authority[at+1:]
	}
	return authority
}

// isInternalHost reports whether host is an internal domain or a subdomain
// of one.
func (n *Normalizer) isInternalHost(host string) bool {
	host = strings.TrimSuffix(host, ".")
	for _, d := range n.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// stripQuery cuts s at the first unescaped '?' or '#'.
func stripQuery(s string) string {
	for i := 0; i < len(s); i++ {
		if (s[i] == '?' || s[i] == '#') && (i == 0 || s[i-1] != '\\') {
			return s[:i]
		}
	}
	return s
}

// cleanPath collapses repeated slashes, ensures a leading slash and drops a
// trailing one unless the path is the root.
func cleanPath(p string) string {
	segs := strings.Split(p, "/")
	kept := segs[:0]
	for _, s := range segs {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return "/" + strings.Join(kept, "/")
}

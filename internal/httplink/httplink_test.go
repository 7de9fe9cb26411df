package httplink

import (
	"strings"
	"testing"

	"github.com/DeusData/contractcheck/internal/facts"
	"github.com/DeusData/contractcheck/internal/issue"
	"github.com/DeusData/contractcheck/internal/mountgraph"
)

func testConfig() *LinkerConfig {
	cfg := DefaultConfig()
	cfg.HTTPLinker.InternalDomains = []string{"user-service.internal", "Orders.Internal"}
	cfg.HTTPLinker.InternalEnvVars = []string{"USER_SERVICE_URL"}
	cfg.HTTPLinker.ExternalEnvVars = []string{"STRIPE_URL"}
	return cfg
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(testConfig())

	tests := []struct {
		raw     string
		kind    URLKind
		path    string
		envVar  string
		suggest bool
	}{
		// literal paths
		{"/users", URLInternal, "/users", "", false},
		{"/users/", URLInternal, "/users", "", false},
		{"/api///users//", URLInternal, "/api/users", "", false},
		{"/", URLInternal, "/", "", false},
		{"users/list", URLInternal, "/users/list", "", false},
		{"/users?page=2", URLInternal, "/users", "", false},
		{"/users#top", URLInternal, "/users", "", false},
		{`/users\?literal`, URLInternal, `/users\?literal`, "", false},

		// absolute URLs
		{"http://user-service.internal/users/42", URLInternal, "/users/42", "", false},
		{"https://USER-SERVICE.internal:8443/users?x=1", URLInternal, "/users", "", false},
		{"http://a.user-service.internal/x", URLInternal, "/x", "", false},
		{"http://admin:pw@orders.internal/orders", URLInternal, "/orders", "", false},
		{"http://user-service.internal", URLInternal, "/", "", false},
		{"https://api.stripe.com/v1/charges", URLExternal, "", "", false},
		{"http://evil-user-service.internal/x", URLExternal, "", "", false},
		{"//cdn.example.com/x", URLExternal, "", "", false},
		{"//user-service.internal/users/1?x=2", URLInternal, "/users/1", "", false},

		// env-var sentinels
		{"ENV_VAR:USER_SERVICE_URL:/users/:id", URLInternal, "/users/:id", "USER_SERVICE_URL", false},
		{"ENV_VAR:USER_SERVICE_URL:", URLInternal, "/", "USER_SERVICE_URL", false},
		{"ENV_VAR:STRIPE_URL:/v1/charges", URLExternal, "", "STRIPE_URL", false},
		{"ENV_VAR:MYSTERY_URL:/x", URLExternal, "", "MYSTERY_URL", true},

		// template literals
		{"${API_URL}/users/${userId}", URLInternal, "/users/:userid", "API_URL", true},
		{"${process.env.USER_SERVICE_URL}/users/${user.id}", URLInternal, "/users/:id", "USER_SERVICE_URL", false},
		{"${import.meta.env.STRIPE_URL}/v1/charges", URLExternal, "", "STRIPE_URL", false},
		{"${baseUrl}/orders/${order.id}/items", URLInternal, "/orders/:id/items", "", false},
		{"/users/${encodeURIComponent(id)}?expand=${fields}", URLInternal, "/users/:id", "", false},
		{"http://${USER_SERVICE_URL}:8080/users", URLInternal, "/users", "USER_SERVICE_URL", false},

		// nothing to match on
		{"", URLUnclassified, "", "", false},
		{"apiUrl", URLUnclassified, "", "", false},
		{"${url}", URLUnclassified, "", "", false},
		{"?x=1", URLUnclassified, "", "", false},
	}
	for _, tt := range tests {
		got := n.Normalize(tt.raw)
		if got.Kind != tt.kind || got.Path != tt.path || got.EnvVar != tt.envVar || got.Suggest != tt.suggest {
			t.Errorf("Normalize(%q) = {%v %q %q %v}, want {%v %q %q %v}",
				tt.raw, got.Kind, got.Path, got.EnvVar, got.Suggest,
				tt.kind, tt.path, tt.envVar, tt.suggest)
		}
		if got.Raw != tt.raw {
			t.Errorf("Normalize(%q).Raw = %q", tt.raw, got.Raw)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(testConfig())
	for _, raw := range []string{
		"/users/",
		"/a//b//",
		"http://user-service.internal/users/42/?q",
		"${API_URL}/users/${userId}",
		"ENV_VAR:USER_SERVICE_URL:/users/:id/",
		"/users/:id(\\d+)",
		"/files/**",
	} {
		first := n.Normalize(raw)
		if first.Kind != URLInternal {
			t.Fatalf("Normalize(%q) kind = %v, want internal", raw, first.Kind)
		}
		second := n.Normalize(first.Path)
		if second.Kind != URLInternal || second.Path != first.Path {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", raw, second.Path, first.Path)
		}
	}
}

func TestURLKindString(t *testing.T) {
	if URLInternal.String() != "internal" || URLExternal.String() != "external" || URLUnclassified.String() != "unclassified" {
		t.Error("unexpected URLKind names")
	}
}

func TestPathsMatch(t *testing.T) {
	tests := []struct {
		endpoint, call string
		want           bool
	}{
		{"/users", "/users", true},
		{"/users", "/Users", false},
		{"/users", "/users/1", false},
		{"/users/:id", "/users/42", true},
		{"/users/:id", "/users", false},
		{"/users/:id", "/users/42/orders", false},
		{"/users/{id}", "/users/42", true},
		{"/users/:id", "/users/:userid", true},
		{"/users/me", "/users/:id", false},
		{"/users/:id(\\d+)", "/users/42", true},
		{"/users/:id(\\d+)", "/users/me", false},
		{"/users/:id(\\d+)", "/users/:id", true},

		// trailing optional parameters
		{"/users/:id?", "/users", true},
		{"/users/:id?", "/users/42", true},
		{"/users/:id?", "/users/42/x", false},
		{"/a/:b?/:c?", "/a", true},
		{"/a/:b?/:c?", "/a/1/2", true},
		{"/a/:b?/:c?", "/a/1/2/3", false},
		// non-trailing optional is required
		{"/a/:b?/c", "/a/1/c", true},
		{"/a/:b?/c", "/a/c", false},

		// wildcards and catch-alls
		{"/files/*", "/files/a", true},
		{"/files/*", "/files", false},
		{"/files/*", "/files/a/b", false},
		{"/files/**", "/files", true},
		{"/files/**", "/files/a/b/c", true},
		{"/files/(.*)", "/files/a/b", true},
		{"/files/:path*", "/files", true},
		{"/files/:path+", "/files", false},
		{"/files/:path+", "/files/a/b", true},
		{"/files/**/ignored", "/files/x", true},
		{"/other/**", "/files/x", false},
	}
	for _, tt := range tests {
		got := PathsMatch(tt.endpoint, tt.call)
		if got != tt.want {
			t.Errorf("PathsMatch(%q, %q) = %v, want %v", tt.endpoint, tt.call, got, tt.want)
		}
	}
}

func TestPathsMatchReflexive(t *testing.T) {
	for _, p := range []string{"/", "/a", "/api/v1/users", "/users/:id", "/users/:id?", "/a/:b?/c"} {
		if !PathsMatch(p, p) {
			t.Errorf("PathsMatch(%q, %q) = false, want true", p, p)
		}
	}
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/", 0},
		{"/users/me", 0},
		{"/users/:id", 1},
		{"/users/{id}/orders/*", 2},
		{"/files/**", 1},
		{"/a/:b?/:c?", 2},
	}
	for _, tt := range tests {
		if got := Specificity(tt.path); got != tt.want {
			t.Errorf("Specificity(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

// resolved builds ResolvedEndpoints in registration order.
func resolved(repo string, specs ...string) []mountgraph.ResolvedEndpoint {
	out := make([]mountgraph.ResolvedEndpoint, 0, len(specs))
	for i, s := range specs {
		method, path, _ := strings.Cut(s, " ")
		out = append(out, mountgraph.ResolvedEndpoint{
			Method: method, FullPath: path, Repo: repo, Handler: "h" + path, Source: i, Seq: i,
		})
	}
	return out
}

func call(repo, method, url string) facts.Call {
	return facts.Call{Method: method, URL: url, Repo: repo}
}

func TestLinkAbsoluteInternalURL(t *testing.T) {
	eps := resolved("user-service", "GET /users/:id")
	calls := []facts.Call{call("web", "GET", "http://user-service.internal/users/42")}

	res := New(testConfig()).Link(eps, calls)
	if len(res.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", res.Issues)
	}
	if !res.Endpoints[0].Consumed {
		t.Error("expected endpoint consumed")
	}
	if eps[0].Consumed {
		t.Error("Link must not mutate its input")
	}
	if res.Stats.Matched != 1 || res.Stats.Internal != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestLinkMissingEndpoint(t *testing.T) {
	eps := resolved("user-service", "GET /users/:id")
	calls := []facts.Call{
		call("web", "GET", "/user/42"),
		call("admin", "GET", "/user/42"),
		call("web", "GET", "/user/42"), // duplicate
	}

	res := New(testConfig()).Link(eps, calls)
	missing := issue.Filter(res.Issues, issue.MissingEndpoint)
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing endpoint, got %+v", res.Issues)
	}
	m := missing[0]
	if m.Method != "GET" || m.Path != "/user/42" || m.Confidence != issue.High {
		t.Errorf("missing = %+v", m)
	}
	if strings.Join(m.CallerRepos, ",") != "admin,web" {
		t.Errorf("caller repos = %v, want [admin web]", m.CallerRepos)
	}
	if m.ID == "" || m.Message == "" {
		t.Error("expected finalized issue")
	}
	if res.Stats.Calls != 3 || res.Stats.UniqueCalls != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
	// Nothing reaches /users/:id.
	orphans := issue.Filter(res.Issues, issue.OrphanedEndpoint)
	if len(orphans) != 1 || orphans[0].Path != "/users/:id" {
		t.Errorf("orphans = %+v", orphans)
	}
}

func TestLinkDidYouMean(t *testing.T) {
	eps := resolved("user-service", "GET /api/users/:id", "POST /api/orders")
	calls := []facts.Call{call("web", "GET", "/api/user/:id")}

	res := New(testConfig()).Link(eps, calls)
	missing := issue.Filter(res.Issues, issue.MissingEndpoint)
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing, got %+v", res.Issues)
	}
	if missing[0].Suggestion != "/api/users/:id" {
		t.Errorf("suggestion = %q, want /api/users/:id", missing[0].Suggestion)
	}
	if missing[0].Confidence != issue.Medium {
		t.Errorf("templated call confidence = %q, want medium", missing[0].Confidence)
	}

	off := false
	cfg := testConfig()
	cfg.HTTPLinker.Suggestions = &off
	res = New(cfg).Link(eps, calls)
	if s := issue.Filter(res.Issues, issue.MissingEndpoint)[0].Suggestion; s != "" {
		t.Errorf("suggestions disabled, got %q", s)
	}
}

func TestLinkMethodMismatch(t *testing.T) {
	eps := resolved("orders", "GET /orders", "PUT /orders", "DELETE /orders/:id")
	calls := []facts.Call{
		call("web", "POST", "/orders"),
		call("cli", "POST", "/orders"),
	}

	res := New(testConfig()).Link(eps, calls)
	mm := issue.Filter(res.Issues, issue.MethodMismatch)
	if len(mm) != 1 {
		t.Fatalf("expected 1 mismatch, got %+v", res.Issues)
	}
	if mm[0].Method != "POST" || mm[0].Path != "/orders" {
		t.Errorf("mismatch = %+v", mm[0])
	}
	if strings.Join(mm[0].SupportedMethods, ",") != "GET,PUT" {
		t.Errorf("supported = %v, want [GET PUT]", mm[0].SupportedMethods)
	}
	if strings.Join(mm[0].CallerRepos, ",") != "cli,web" {
		t.Errorf("callers = %v", mm[0].CallerRepos)
	}
	if len(issue.Filter(res.Issues, issue.MissingEndpoint)) != 0 {
		t.Error("mismatch must not also be reported missing")
	}
}

func TestLinkAllMethodEndpoint(t *testing.T) {
	eps := resolved("proxy", "ALL /proxy/**")
	res := New(testConfig()).Link(eps, []facts.Call{call("web", "PATCH", "/proxy/a/b")})
	if len(res.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", res.Issues)
	}
}

func TestLinkTieBreak(t *testing.T) {
	eps := resolved("users",
		"GET /users/:id",
		"GET /users/me",
		"GET /users/:name",
	)
	res := New(testConfig()).Link(eps, []facts.Call{call("web", "GET", "/users/me")})
	if !res.Endpoints[1].Consumed {
		t.Error("literal /users/me should win over parameters")
	}
	if res.Endpoints[0].Consumed || res.Endpoints[2].Consumed {
		t.Error("only the best candidate is consumed")
	}

	res = New(testConfig()).Link(eps, []facts.Call{call("web", "GET", "/users/42")})
	if !res.Endpoints[0].Consumed || res.Endpoints[2].Consumed {
		t.Error("equal specificity should prefer the earliest registration")
	}
}

func TestLinkOrphanOncePerEndpoint(t *testing.T) {
	eps := resolved("svc", "GET /a", "GET /a", "POST /a", "GET /metrics")
	eps = append(eps, resolved("other", "GET /a")...)
	res := New(testConfig()).Link(eps, nil)

	orphans := issue.Filter(res.Issues, issue.OrphanedEndpoint)
	if len(orphans) != 3 {
		t.Fatalf("expected 3 orphans, got %+v", orphans)
	}
	seen := map[string]bool{}
	for _, o := range orphans {
		key := o.Repo + " " + o.Method + " " + o.Path
		if seen[key] {
			t.Errorf("duplicate orphan %s", key)
		}
		seen[key] = true
	}
	if res.Stats.Orphaned != 3 {
		t.Errorf("stats.Orphaned = %d", res.Stats.Orphaned)
	}
}

func TestLinkConsumedDuplicateIsNotOrphaned(t *testing.T) {
	eps := resolved("svc", "GET /a", "GET /a")
	res := New(testConfig()).Link(eps, []facts.Call{call("web", "GET", "/a")})
	if len(res.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", res.Issues)
	}
}

func TestLinkExternalAndEnvVarSuggestions(t *testing.T) {
	eps := resolved("svc", "GET /x")
	calls := []facts.Call{
		call("web", "POST", "https://api.stripe.com/v1/charges"),
		call("web", "GET", "ENV_VAR:STRIPE_URL:/v1/charges"),
		call("web", "GET", "ENV_VAR:MYSTERY_URL:/a"),
		call("web", "GET", "ENV_VAR:MYSTERY_URL:/b"),
		call("cli", "GET", "ENV_VAR:MYSTERY_URL:/a"),
		call("web", "GET", "${PAYMENTS_URL}/x"),
	}
	res := New(testConfig()).Link(eps, calls)

	sugg := issue.Filter(res.Issues, issue.EnvVarCallSuggestion)
	got := map[string]bool{}
	for _, s := range sugg {
		got[s.EnvVar+"@"+s.Repo] = true
	}
	want := []string{"MYSTERY_URL@web", "MYSTERY_URL@cli", "PAYMENTS_URL@web"}
	if len(sugg) != len(want) {
		t.Fatalf("suggestions = %+v, want %v", sugg, want)
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("missing suggestion %s", w)
		}
	}
	// The templated call is still linked, so /x is consumed.
	if len(issue.Filter(res.Issues, issue.OrphanedEndpoint, issue.MissingEndpoint)) != 0 {
		t.Errorf("unexpected connectivity issues: %+v", res.Issues)
	}
	if res.Stats.External != 5 {
		t.Errorf("stats.External = %d, want 5", res.Stats.External)
	}
}

func TestLinkUnclassifiedCall(t *testing.T) {
	res := New(testConfig()).Link(nil, []facts.Call{
		call("web", "GET", "apiUrl"),
		call("cli", "GET", "apiUrl"),
	})
	missing := issue.Filter(res.Issues, issue.MissingEndpoint)
	if len(missing) != 1 {
		t.Fatalf("expected 1 unknown missing endpoint, got %+v", res.Issues)
	}
	m := missing[0]
	if m.Path != issue.UnknownPath || m.URL != "apiUrl" || m.Confidence != issue.Low {
		t.Errorf("unknown = %+v", m)
	}
	if len(m.CallerRepos) != 2 {
		t.Errorf("callers = %v", m.CallerRepos)
	}
	if res.Stats.Unclassified != 2 {
		t.Errorf("stats.Unclassified = %d", res.Stats.Unclassified)
	}
}

func TestLinkTrailingOptionalParameter(t *testing.T) {
	eps := resolved("users", "GET /users/:id?")
	res := New(testConfig()).Link(eps, []facts.Call{call("web", "GET", "/users")})
	if len(res.Issues) != 0 {
		t.Errorf("expected no issues, got %+v", res.Issues)
	}
}

func TestLinkExcludePaths(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPLinker.ExcludePaths = []string{"/internal/status", "/healthz"}
	eps := resolved("svc", "GET /internal/status", "GET /healthz", "GET /real")
	res := New(cfg).Link(eps, nil)
	orphans := issue.Filter(res.Issues, issue.OrphanedEndpoint)
	if len(orphans) != 1 || orphans[0].Path != "/real" {
		t.Errorf("orphans = %+v", orphans)
	}
}

func TestLinkUncalledHealthRouteIsOrphan(t *testing.T) {
	eps := resolved("svc", "GET /health")
	res := New(DefaultConfig()).Link(eps, nil)
	orphans := issue.Filter(res.Issues, issue.OrphanedEndpoint)
	if len(orphans) != 1 || orphans[0].Path != "/health" || orphans[0].Method != "GET" {
		t.Errorf("orphans = %+v, want one GET /health", orphans)
	}
}

func TestNewNilConfig(t *testing.T) {
	l := New(nil)
	if l.Normalizer() == nil {
		t.Fatal("expected normalizer")
	}
	if got := l.Normalizer().Normalize("http://example.com/x"); got.Kind != URLExternal {
		t.Errorf("no internal domains: kind = %v, want external", got.Kind)
	}
}

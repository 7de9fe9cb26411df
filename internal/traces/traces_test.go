package traces

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/contractcheck/internal/facts"
)

func attr(k, v string) Attribute {
	return Attribute{Key: k, Value: AttributeValue{StringValue: v}}
}

func TestExtractServiceName(t *testing.T) {
	r := Resource{
		Attributes: []Attribute{
			attr("service.name", "order-service"),
		},
	}
	if got := extractServiceName(r); got != "order-service" {
		t.Errorf("expected order-service, got %s", got)
	}
}

func TestExtractHTTPInfo(t *testing.T) {
	span := Span{
		Kind: spanKindServer,
		Attributes: []Attribute{
			attr("http.method", "get"),
			attr("http.route", "/api/orders/:id"),
			attr("url.path", "/api/orders/42?x=1"),
		},
	}
	info := extractHTTPInfo(&span, "svc")
	if info == nil {
		t.Fatal("expected HTTPSpanInfo")
	}
	if info.Method != "GET" {
		t.Errorf("expected GET, got %s", info.Method)
	}
	if info.Route != "/api/orders/:id" {
		t.Errorf("expected /api/orders/:id, got %s", info.Route)
	}
	if info.URL != "/api/orders/42" {
		t.Errorf("expected path fallback /api/orders/42, got %s", info.URL)
	}
}

func TestExtractHTTPInfoPrefersFullURL(t *testing.T) {
	span := Span{
		Kind: spanKindClient,
		Attributes: []Attribute{
			attr("http.request.method", "POST"),
			attr("url.path", "/users"),
			attr("url.full", "http://user-service.internal/users?debug=1"),
		},
	}
	info := extractHTTPInfo(&span, "web")
	if info == nil || info.URL != "http://user-service.internal/users" {
		t.Fatalf("info = %+v", info)
	}
}

func TestExtractHTTPInfoNonHTTPSpan(t *testing.T) {
	span := Span{
		Kind: 1,
		Attributes: []Attribute{
			attr("db.system", "postgresql"),
		},
	}
	info := extractHTTPInfo(&span, "svc")
	if info != nil {
		t.Error("expected nil for non-HTTP span")
	}
}

func TestConvert(t *testing.T) {
	export := &OTLPExport{ResourceSpans: []ResourceSpan{
		{
			Resource: Resource{Attributes: []Attribute{attr("service.name", "order-service")}},
			ScopeSpans: []ScopeSpan{{Spans: []Span{
				{Kind: spanKindServer, Attributes: []Attribute{attr("http.method", "GET"), attr("http.route", "/orders/{id}")}},
				{Kind: spanKindServer, Attributes: []Attribute{attr("http.method", "GET"), attr("http.route", "/orders/{id}")}},
				// No route: the concrete path is not a usable endpoint.
				{Kind: spanKindServer, Attributes: []Attribute{attr("http.method", "GET"), attr("url.path", "/orders/7")}},
				{Kind: 1, Attributes: []Attribute{attr("db.system", "postgresql")}},
			}}},
		},
		{
			Resource: Resource{Attributes: []Attribute{attr("service.name", "web")}},
			ScopeSpans: []ScopeSpan{{Spans: []Span{
				{Kind: spanKindClient, Attributes: []Attribute{attr("http.method", "GET"), attr("url.full", "http://orders.internal/orders/7")}},
				{Kind: spanKindClient, Attributes: []Attribute{attr("http.method", "DELETE"), attr("url.full", "http://orders.internal/orders/7")}},
			}}},
		},
		{
			// Spans from an unnamed service cannot be attributed to a repo.
			ScopeSpans: []ScopeSpan{{Spans: []Span{
				{Kind: spanKindClient, Attributes: []Attribute{attr("http.method", "GET"), attr("url.path", "/x")}},
			}}},
		},
	}}

	repos, stats := Convert(export)
	if stats.SpansProcessed != 6 {
		t.Errorf("SpansProcessed = %d, want 6", stats.SpansProcessed)
	}
	if stats.Endpoints != 1 || stats.Calls != 2 || stats.Skipped != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(repos) != 2 {
		t.Fatalf("got %d repos, want 2", len(repos))
	}

	orders := repos[0]
	if orders.Repo != "order-service" || len(orders.Facts) != 1 {
		t.Fatalf("order-service facts = %+v", orders)
	}
	ep := orders.Facts[0]
	if ep.Kind != facts.KindEndpoint || ep.Path != "/orders/{id}" || ep.Owner != "app" {
		t.Errorf("endpoint fact = %+v", ep)
	}

	web := repos[1]
	if web.Repo != "web" || len(web.Facts) != 2 {
		t.Fatalf("web facts = %+v", web)
	}
	if web.Facts[1].Kind != facts.KindCall || web.Facts[1].Method != "DELETE" {
		t.Errorf("call fact = %+v", web.Facts[1])
	}
}

func TestLoad(t *testing.T) {
	fixture := `{
		"resourceSpans": [{
			"resource": {"attributes": [{"key": "service.name", "value": {"stringValue": "order-service"}}]},
			"scopeSpans": [{
				"spans": [{
					"traceId": "abc123",
					"spanId": "def456",
					"name": "GET /api/orders",
					"kind": 2,
					"startTimeUnixNano": "1000000000",
					"endTimeUnixNano": "1050000000",
					"attributes": [
						{"key": "http.method", "value": {"stringValue": "GET"}},
						{"key": "http.route", "value": {"stringValue": "/api/orders"}}
					],
					"status": {"code": 1}
				}]
			}]
		}]
	}`

	tmpFile := filepath.Join(t.TempDir(), "traces.json")
	if err := os.WriteFile(tmpFile, []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}

	repos, stats, err := Load(tmpFile)
	if err != nil {
		t.Fatal(err)
	}
	if stats.SpansProcessed != 1 {
		t.Errorf("expected 1 span, got %d", stats.SpansProcessed)
	}
	if len(repos) != 1 || len(repos[0].Facts) != 1 || repos[0].Facts[0].Path != "/api/orders" {
		t.Errorf("repos = %+v", repos)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// Package traces turns an OTLP JSON trace export into observed facts: server
// spans with a route become endpoints, client spans become calls.
package traces

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/DeusData/contractcheck/internal/facts"
)

// OTLPExport represents the top-level structure of an OTLP JSON export.
type OTLPExport struct {
	ResourceSpans []ResourceSpan `json:"resourceSpans"`
}

// ResourceSpan contains spans from a single service/resource.
type ResourceSpan struct {
	Resource   Resource    `json:"resource"`
	ScopeSpans []ScopeSpan `json:"scopeSpans"`
}

// Resource describes the service that produced the spans.
type Resource struct {
	Attributes []Attribute `json:"attributes"`
}

// ScopeSpan groups spans by instrumentation scope.
type ScopeSpan struct {
	Spans []Span `json:"spans"`
}

// Span represents a single trace span.
type Span struct {
	TraceID      string      `json:"traceId"`
	SpanID       string      `json:"spanId"`
	ParentSpanID string      `json:"parentSpanId"`
	Name         string      `json:"name"`
	Kind         int         `json:"kind"` // 1=internal, 2=server, 3=client
	Attributes   []Attribute `json:"attributes"`
}

const (
	spanKindServer = 2
	spanKindClient = 3
)

// Attribute is a key-value pair in OTLP format.
type Attribute struct {
	Key   string         `json:"key"`
	Value AttributeValue `json:"value"`
}

// AttributeValue holds the typed value.
type AttributeValue struct {
	StringValue string `json:"stringValue,omitempty"`
	IntValue    string `json:"intValue,omitempty"`
}

// HTTPSpanInfo holds extracted HTTP info from a span.
type HTTPSpanInfo struct {
	ServiceName string
	Method      string
	Route       string // server: templated route, e.g. /users/:id
	URL         string // client: full URL, or path when no URL was recorded
	SpanKind    int
}

// Stats summarizes what a conversion found.
type Stats struct {
	SpansProcessed int `json:"spans_processed"`
	Endpoints      int `json:"endpoints"`
	Calls          int `json:"calls"`
	Skipped        int `json:"skipped"`
}

// Load reads an OTLP JSON file and converts it to observed facts.
func Load(filePath string) ([]facts.RepoFacts, *Stats, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read trace file: %w", err)
	}

	var export OTLPExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, nil, fmt.Errorf("parse OTLP JSON: %w", err)
	}
	repos, stats := Convert(&export)
	slog.Info("traces.load", "path", filePath, "spans", stats.SpansProcessed,
		"endpoints", stats.Endpoints, "calls", stats.Calls)
	return repos, stats, nil
}

// Convert maps HTTP spans to facts, one RepoFacts per service name. Each
// distinct endpoint or call is emitted once no matter how often it was seen.
func Convert(export *OTLPExport) ([]facts.RepoFacts, *Stats) {
	stats := &Stats{}
	var repos []facts.RepoFacts
	index := make(map[string]int)
	seen := make(map[string]bool)

	for _, rs := range export.ResourceSpans {
		serviceName := extractServiceName(rs.Resource)
		for _, ss := range rs.ScopeSpans {
			for i := range ss.Spans {
				info := extractHTTPInfo(&ss.Spans[i], serviceName)
				if info == nil {
					continue
				}
				stats.SpansProcessed++

				fact, ok := info.fact()
				if !ok || serviceName == "" {
					stats.Skipped++
					continue
				}
				key := serviceName + "\x00" + string(fact.Kind) + "\x00" + fact.Method + "\x00" + fact.Path + fact.URL
				if seen[key] {
					continue
				}
				seen[key] = true

				n, exists := index[serviceName]
				if !exists {
					n = len(repos)
					index[serviceName] = n
					repos = append(repos, facts.RepoFacts{Repo: serviceName})
				}
				repos[n].Facts = append(repos[n].Facts, fact)
				if fact.Kind == facts.KindEndpoint {
					stats.Endpoints++
				} else {
					stats.Calls++
				}
			}
		}
	}
	return repos, stats
}

// fact converts span info into an endpoint or call fact. Server spans without
// a route only carry the concrete path, which cannot stand in for a route
// template, so they are skipped.
func (h *HTTPSpanInfo) fact() (facts.Fact, bool) {
	switch h.SpanKind {
	case spanKindServer:
		if h.Route == "" {
			return facts.Fact{}, false
		}
		return facts.Fact{
			Kind:    facts.KindEndpoint,
			Method:  h.Method,
			Path:    h.Route,
			Owner:   "app",
			Handler: "trace",
		}, true
	case spanKindClient:
		if h.URL == "" {
			return facts.Fact{}, false
		}
		return facts.Fact{Kind: facts.KindCall, Method: h.Method, URL: h.URL}, true
	}
	return facts.Fact{}, false
}

// extractServiceName gets service.name from resource attributes.
func extractServiceName(r Resource) string {
	for _, attr := range r.Attributes {
		if attr.Key == "service.name" {
			return attr.Value.StringValue
		}
	}
	return ""
}

// extractHTTPInfo extracts HTTP method, route and URL from span attributes.
func extractHTTPInfo(span *Span, serviceName string) *HTTPSpanInfo {
	info := &HTTPSpanInfo{
		ServiceName: serviceName,
		SpanKind:    span.Kind,
	}

	hasHTTP := false
	var path string
	for _, attr := range span.Attributes {
		v := attr.Value.StringValue
		switch attr.Key {
		case "http.method", "http.request.method":
			info.Method = strings.ToUpper(v)
			hasHTTP = true
		case "http.route":
			info.Route = v
			hasHTTP = true
		case "http.target", "url.path":
			path = stripQuery(v)
			hasHTTP = true
		case "url.full", "http.url":
			info.URL = stripQuery(v)
			hasHTTP = true
		}
	}
	if !hasHTTP {
		return nil
	}
	if info.URL == "" {
		info.URL = path
	}
	return info
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

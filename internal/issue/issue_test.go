package issue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintIgnoresDescriptiveFields(t *testing.T) {
	a := Issue{Kind: MissingEndpoint, Method: "GET", Path: "/users", CallerRepos: []string{"web"}}
	b := a
	b.CallerRepos = []string{"web", "admin"}
	b.Message = "different wording"
	b.Suggestion = "/user"

	assert.Equal(t, Fingerprint(&a), Fingerprint(&b))
	assert.Len(t, Fingerprint(&a), 16, "xxh3-64 hex")
}

func TestFingerprintSeparatesFields(t *testing.T) {
	a := Issue{Kind: OrphanedEndpoint, Method: "GET", Path: "/ab", Repo: "c"}
	b := Issue{Kind: OrphanedEndpoint, Method: "GET", Path: "/a", Repo: "bc"}
	assert.NotEqual(t, Fingerprint(&a), Fingerprint(&b))

	c := Issue{Kind: MissingEndpoint, Method: "GET", Path: "/ab", Repo: "c"}
	assert.NotEqual(t, Fingerprint(&a), Fingerprint(&c))
}

func TestFinalizeMessages(t *testing.T) {
	tests := []struct {
		name string
		in   Issue
		want string
	}{
		{
			"missing",
			Issue{Kind: MissingEndpoint, Method: "GET", Path: "/x", CallerRepos: []string{"a", "b"}},
			"no endpoint serves GET /x (called from a, b)",
		},
		{
			"missing with suggestion",
			Issue{Kind: MissingEndpoint, Method: "GET", Path: "/user", CallerRepos: []string{"a"}, Suggestion: "/users"},
			"no endpoint serves GET /user (called from a); did you mean /users?",
		},
		{
			"unknown path",
			Issue{Kind: MissingEndpoint, Method: "POST", Path: UnknownPath, URL: "apiUrl"},
			"call POST apiUrl has no discernible path",
		},
		{
			"orphan",
			Issue{Kind: OrphanedEndpoint, Method: "DELETE", Path: "/x", Repo: "svc"},
			"DELETE /x in svc is never called",
		},
		{
			"mismatch",
			Issue{Kind: MethodMismatch, Method: "POST", Path: "/x", SupportedMethods: []string{"GET", "PUT"}},
			"POST /x is called but the path only supports GET, PUT",
		},
		{
			"unmounted",
			Issue{Kind: UnmountedRouter, Node: "adminRouter", Repo: "svc"},
			"router adminRouter in svc owns endpoints but is never mounted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := tt.in
			is.Finalize()
			assert.Equal(t, tt.want, is.Message)
			assert.NotEmpty(t, is.ID)
		})
	}

	custom := Issue{Kind: ClassificationGap, Message: "endpoint has unparseable method \"FETCH\""}
	custom.Finalize()
	assert.Equal(t, "endpoint has unparseable method \"FETCH\"", custom.Message)
}

func TestSort(t *testing.T) {
	issues := []Issue{
		{Kind: ClassificationGap, Repo: "a"},
		{Kind: OrphanedEndpoint, Path: "/b", Method: "GET", Repo: "svc"},
		{Kind: OrphanedEndpoint, Path: "/a", Method: "POST", Repo: "svc"},
		{Kind: OrphanedEndpoint, Path: "/a", Method: "GET", Repo: "svc"},
		{Kind: MissingEndpoint, Path: "/z", Method: "GET"},
		{Kind: MethodMismatch, Path: "/a", Method: "POST"},
	}
	Sort(issues)

	var got []string
	for _, i := range issues {
		got = append(got, string(i.Kind)+" "+i.Method+" "+i.Path)
	}
	assert.Equal(t, []string{
		"missing_endpoint GET /z",
		"method_mismatch POST /a",
		"orphaned_endpoint GET /a",
		"orphaned_endpoint POST /a",
		"orphaned_endpoint GET /b",
		"classification_gap  ",
	}, got)
}

func TestCountAndFilter(t *testing.T) {
	issues := []Issue{
		{Kind: OrphanedEndpoint}, {Kind: OrphanedEndpoint}, {Kind: MissingEndpoint}, {Kind: EnvVarCallSuggestion},
	}
	counts := CountByKind(issues)
	assert.Equal(t, 2, counts[OrphanedEndpoint])
	assert.Equal(t, 1, counts[MissingEndpoint])
	assert.Zero(t, counts[MethodMismatch])

	assert.Len(t, Filter(issues, OrphanedEndpoint, EnvVarCallSuggestion), 3)
	assert.Empty(t, Filter(issues, UnmountedRouter))
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"missing_endpoint":     MissingEndpoint,
		"MissingEndpoint":      MissingEndpoint,
		" orphaned_endpoint ":  OrphanedEndpoint,
		"EnvVarCallSuggestion": EnvVarCallSuggestion,
		"unmountedrouter":      UnmountedRouter,
		"CLASSIFICATION_GAP":   ClassificationGap,
		"method_mismatch":      MethodMismatch,
	} {
		got, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("nope")
	assert.False(t, ok)
}

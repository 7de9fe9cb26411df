package httplink

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"api/orders", "api/order", 1},
		{"/api/v1/orders", "/api/v2/orders", 1},
	}
	for _, tt := range tests {
		got := levenshteinDistance(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizedLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"abc", "abc", 1.0, 1.0},
		{"", "", 1.0, 1.0},
		{"api/orders", "api/order", 0.88, 0.92},
		{"/api/v1/items", "/api/v2/items", 0.90, 0.94},
		{"completely", "different", 0.0, 0.4},
	}
	for _, tt := range tests {
		got := normalizedLevenshtein(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("normalizedLevenshtein(%q, %q) = %.3f, want [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}

func TestNgramOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		n    int
		min  float64
		max  float64
	}{
		{"api/orders", "api/orders", 3, 1.0, 1.0},
		{"api/orders", "api/order", 3, 0.8, 1.0},
		{"abcdef", "ghijkl", 3, 0.0, 0.0},
		{"ab", "cd", 3, 0.0, 0.0}, // too short for trigrams
	}
	for _, tt := range tests {
		got := ngramOverlap(tt.a, tt.b, tt.n)
		if got < tt.min || got > tt.max {
			t.Errorf("ngramOverlap(%q, %q, %d) = %.3f, want [%.2f, %.2f]", tt.a, tt.b, tt.n, got, tt.min, tt.max)
		}
	}
}

func TestClosestPath(t *testing.T) {
	candidates := []string{"/api/users/:id", "/api/orders", "/ab/ce", "/ab/cx"}
	tests := []struct {
		path string
		min  float64
		want string
	}{
		{"/api/user/:id", 0.6, "/api/users/:id"},
		{"/api/order", 0.6, "/api/orders"},
		{"/x", 0.6, ""},
		{"/api/orders", 0.6, ""},    // exact candidate: nothing to suggest
		{"/ab/cd", 0.6, "/ab/ce"},   // tie keeps candidate order
		{"/api/user/:id", 0.99, ""}, // below threshold
	}
	for _, tt := range tests {
		got := closestPath(tt.path, candidates, tt.min)
		if got != tt.want {
			t.Errorf("closestPath(%q, %.2f) = %q, want %q", tt.path, tt.min, got, tt.want)
		}
	}
}

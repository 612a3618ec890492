package observability

import "testing"

func Test_NormalizeOutcome(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"answered", "answered", "answered"},
		{"blocked", "blocked", "blocked"},
		{"error", "error", "error"},
		{"other empty", "", "other"},
		{"other random", "timeout", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeOutcome(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeOutcome(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func Test_NormalizeReason(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowed  map[string]bool
		expected string
	}{
		{"block below_threshold", "below_threshold", AllowedBlockReasons, "below_threshold"},
		{"block high_variance", "high_variance", AllowedBlockReasons, "high_variance"},
		{"block low_coverage", "low_coverage", AllowedBlockReasons, "low_coverage"},
		{"error invalid_query", "invalid_query", AllowedErrorReasons, "invalid_query"},
		{"error index_empty", "index_empty", AllowedErrorReasons, "index_empty"},
		{"empty maps to none", "", AllowedBlockReasons, "none"},
		{"unknown maps to other", "solar_flare", AllowedBlockReasons, "other"},
		{"wrong family maps to other", "below_threshold", AllowedErrorReasons, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeReason(tt.input, tt.allowed)
			if got != tt.expected {
				t.Errorf("NormalizeReason(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func Test_NormalizeCacheName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"query_embedding", "query_embedding", "query_embedding"},
		{"unknown", "session", "other"},
		{"empty", "", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCacheName(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeCacheName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

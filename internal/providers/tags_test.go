package providers

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseTags(t *testing.T) {
	long := strings.Repeat("x", MaxTagLen)
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"basic", "Go, Kubernetes ,yaml", []string{"go", "kubernetes", "yaml"}},
		{"empty tokens", " , go,, ,", []string{"go"}},
		{"dedupe keeps first", "YAML, go, yaml, Go", []string{"yaml", "go"}},
		{"drops long", "ok," + long + "," + long[:MaxTagLen-1], []string{"ok", long[:MaxTagLen-1]}},
		{"empty input", "", []string{}},
		{"multibyte length", "café, " + strings.Repeat("é", 29), []string{"café", strings.Repeat("é", 29)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTags(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("EstimateTokens(abcd) = %d, want 1", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("EstimateTokens(abcde) = %d, want 2", got)
	}
	if got := EstimateTokens("ab", "cde"); got != 2 {
		t.Errorf("EstimateTokens(ab, cde) = %d, want 2", got)
	}
}

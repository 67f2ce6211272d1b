package router

import (
	"encoding/json"
	"testing"
)

type stringerValue struct{ s string }

func (v stringerValue) String() string { return v.s }

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{
			name: "plain string",
			raw:  "hello",
			want: "hello",
		},
		{
			name: "nil",
			raw:  nil,
			want: "",
		},
		{
			name: "map with content",
			raw:  map[string]any{"content": "from map", "model": "x"},
			want: "from map",
		},
		{
			name: "nested content",
			raw:  map[string]any{"content": map[string]any{"content": "deep"}},
			want: "deep",
		},
		{
			name: "map without content",
			raw:  map[string]any{"text": "elsewhere"},
			want: "map[text:elsewhere]",
		},
		{
			name: "raw json with content",
			raw:  json.RawMessage(`{"content":"from json","usage":{"tokens":12}}`),
			want: "from json",
		},
		{
			name: "raw json without content",
			raw:  json.RawMessage(`{"text":"plain"}`),
			want: `{"text":"plain"}`,
		},
		{
			name: "byte payload with content",
			raw:  []byte(`{"content":"bytes"}`),
			want: "bytes",
		},
		{
			name: "byte payload plain text",
			raw:  []byte("not json at all"),
			want: "not json at all",
		},
		{
			name: "stringer",
			raw:  stringerValue{s: "stringed"},
			want: "stringed",
		},
		{
			name: "fallback formatting",
			raw:  42,
			want: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeContent(tt.raw); got != tt.want {
				t.Errorf("normalizeContent(%v) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

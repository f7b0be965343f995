package idempotency

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/orders", nil)
	r.Header.Set(Header, "  abc-123  ")
	if got := Key(r); got != "abc-123" {
		t.Fatalf("Key() = %q, want %q", got, "abc-123")
	}
	r.Header.Del(Header)
	if got := Key(r); got != "" {
		t.Fatalf("Key() without header = %q, want empty", got)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"abc", true},
		{strings.Repeat("k", MaxKeyLen), true},
		{strings.Repeat("k", MaxKeyLen+1), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.key); got != tt.want {
			t.Errorf("Valid(%d chars) = %v, want %v", len(tt.key), got, tt.want)
		}
	}
}

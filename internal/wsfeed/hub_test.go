package wsfeed

import (
	"testing"
)

func TestNewHubStartsEmpty(t *testing.T) {
	h := NewHub()
	if len(h.viewers) != 0 {
		t.Fatalf("expected no viewers, got %d", len(h.viewers))
	}
}

func TestWriteWithNoViewersDoesNotBlock(t *testing.T) {
	h := NewHub()
	n, err := h.Write([]byte("A2\t199.0\t50\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len("A2\t199.0\t50\n") {
		t.Fatalf("unexpected byte count: %d", n)
	}
}

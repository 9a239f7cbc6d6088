package main

import (
	"strings"
	"testing"
)

func TestIsWeakSecret(t *testing.T) {
	cases := []struct {
		secret string
		weak   bool
	}{
		{"short", true},
		{"change-me-" + strings.Repeat("a", 32), true},
		{strings.Repeat("k9", 20), false},
	}
	for _, tc := range cases {
		if got := isWeakSecret(tc.secret); got != tc.weak {
			t.Fatalf("isWeakSecret(%q) want %v got %v", tc.secret, tc.weak, got)
		}
	}
}

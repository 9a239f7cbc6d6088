package main

import "testing"

func TestBuildSeedProducts(t *testing.T) {
	if got := buildSeedProducts(0); len(got) != 0 {
		t.Fatalf("expected no products, got %d", len(got))
	}
	items := buildSeedProducts(len(catalog) + 2)
	if len(items) != len(catalog)+2 {
		t.Fatalf("expected %d products, got %d", len(catalog)+2, len(items))
	}
	seen := map[string]struct{}{}
	for _, item := range items {
		if _, ok := seen[item.Name]; ok {
			t.Fatalf("duplicate product name %s", item.Name)
		}
		seen[item.Name] = struct{}{}
	}
}

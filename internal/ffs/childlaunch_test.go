package ffs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSortedEndpoints(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ep0", "ep2", "ep10", "ep1", "notanendpoint"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := sortedEndpoints(dir)
	if err != nil {
		t.Fatalf("sortedEndpoints: %v", err)
	}
	want := []string{"ep1", "ep2", "ep10"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

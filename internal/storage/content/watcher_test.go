package content

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestWikiStore_watch(t *testing.T) {
	ctx := t.Context()
	dir := newTestDir(t, trivialPages)
	w := openTestStore(t, dir, Options{Watch: true})
	if got, _ := w.PageTitles(ctx); len(got) != 2 {
		t.Fatalf("PageTitles = %v", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "OutsidePage"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := w.PageTitles(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if slices.Contains(got, "OutsidePage") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("external page never showed up: %v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	// Close is idempotent.
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_watchMissingDir(t *testing.T) {
	if _, err := Open(t.Context(), filepath.Join(t.TempDir(), "gone"), Options{Watch: true}); err == nil {
		t.Error("Open succeeded watching a missing directory")
	}
}

package content

import (
	"os"
	"path/filepath"
	"testing"
)

// Page sets used across tests.
var (
	simplePages = map[string]string{
		"WikiIndex":        "This is the index\n",
		"OswaldoPetterson": "Oswaldo is a friend of ours.\n",
		"IdontHaveDoubleU": "I don't have that letter!\n",
	}
	trivialPages = map[string]string{
		"SomethingElse": "Some other content\n",
		"WikiIndex":     "Index page\n",
	}
	contentSearchPages = map[string]string{
		"WikiIndex":            "Welcome to the front page of this wiki.\n",
		"ProgrammingLanguages": "Go is used for the backend, JavaScript for the frontend.\n",
		"NothingToSee":         "Effrontery is not a word we look for.\n",
	}
)

// newTestDir writes pages as files in a fresh directory.
func newTestDir(t *testing.T, pages map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// newTestStore opens a store holding pages.
func newTestStore(t *testing.T, pages map[string]string) *WikiStore {
	t.Helper()
	return openTestStore(t, newTestDir(t, pages), Options{})
}

func openTestStore(t *testing.T, dir string, opts Options) *WikiStore {
	t.Helper()
	w, err := Open(t.Context(), dir, opts)
	if err != nil {
		t.Fatalf("Open(%s) error: %v", dir, err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// writeSource writes content to a file outside the store and returns its path.
func writeSource(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

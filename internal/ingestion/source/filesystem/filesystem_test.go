package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b-policies.md"), "# Policies\nDetails.")
	writeFile(t, filepath.Join(dir, "a-intro.markdown"), "# Intro\nHello.")
	writeFile(t, filepath.Join(dir, "nested", "c.MD"), "# Nested")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	docs, err := New(dir).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents: %+v", len(docs), docs)
	}
	wantIDs := []string{"a-intro.markdown", "b-policies.md", "nested/c.MD"}
	wantTitles := []string{"a-intro", "b-policies", "c"}
	for i, d := range docs {
		if d.ID != wantIDs[i] || d.Title != wantTitles[i] {
			t.Errorf("doc %d = %q/%q, want %q/%q", i, d.ID, d.Title, wantIDs[i], wantTitles[i])
		}
		if !strings.HasPrefix(d.Link, "file://") {
			t.Errorf("link = %q", d.Link)
		}
	}
	if docs[1].RawText != "# Policies\nDetails." {
		t.Errorf("raw text = %q", docs[1].RawText)
	}
}

func TestFetchMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")).Fetch(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

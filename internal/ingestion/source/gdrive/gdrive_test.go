package gdrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

type fakeDrive struct {
	exports    map[string]string
	listCalls  atomic.Int32
	failExport atomic.Int32
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/files":
		f.listCalls.Add(1)
		if !strings.Contains(r.URL.Query().Get("q"), "'folder-1' in parents") {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken": "p2",
				"files": []map[string]any{
					{"id": "doc-1", "name": "Handbook", "mimeType": MimeTypeDocument, "webViewLink": "https://docs.google.com/document/d/doc-1/edit"},
					{"id": "img-1", "name": "Logo", "mimeType": "image/png"},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]any{
				{"id": "sc-1", "name": "Shortcut to Guide", "mimeType": MimeTypeShortcut,
					"shortcutDetails": map[string]any{"targetId": "doc-2", "targetMimeType": MimeTypeDocument}},
				{"id": "sc-2", "name": "Shortcut to Sheet", "mimeType": MimeTypeShortcut,
					"shortcutDetails": map[string]any{"targetId": "sheet-1", "targetMimeType": "application/vnd.google-apps.spreadsheet"}},
			},
		})
	case strings.HasSuffix(r.URL.Path, "/export"):
		if r.URL.Query().Get("mimeType") != exportMimeType {
			http.Error(w, "bad export type", http.StatusBadRequest)
			return
		}
		if f.failExport.Load() > 0 {
			f.failExport.Add(-1)
			http.Error(w, "backend error", http.StatusInternalServerError)
			return
		}
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), "/export")
		text, ok := f.exports[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(text))
	default:
		http.NotFound(w, r)
	}
}

func newTestSource(t *testing.T, fake *fakeDrive) *Source {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	src, err := New(context.Background(), Config{
		FolderID:          "folder-1",
		RequestsPerSecond: 1000,
		Burst:             100,
		Retry:             resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func TestFetchExportsDocumentsAndShortcuts(t *testing.T) {
	fake := &fakeDrive{exports: map[string]string{
		"doc-1": "# Introduction\nOverview of advising.",
		"doc-2": "# Guide\nMinor requirements.",
	}}
	docs, err := newTestSource(t, fake).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents: %+v", len(docs), docs)
	}
	if docs[0].ID != "doc-1" || docs[0].Title != "Handbook" || docs[0].Link != "https://docs.google.com/document/d/doc-1/edit" {
		t.Errorf("doc[0] = %+v", docs[0])
	}
	if docs[1].ID != "doc-2" || docs[1].Title != "Shortcut to Guide" || docs[1].Link != "https://docs.google.com/document/d/doc-2" {
		t.Errorf("doc[1] = %+v", docs[1])
	}
	if docs[1].RawText != "# Guide\nMinor requirements." {
		t.Errorf("raw text = %q", docs[1].RawText)
	}
	if got := fake.listCalls.Load(); got != 2 {
		t.Errorf("list calls = %d, want 2 pages", got)
	}
}

func TestFetchRetriesExport(t *testing.T) {
	fake := &fakeDrive{exports: map[string]string{"doc-1": "a", "doc-2": "b"}}
	fake.failExport.Store(2)
	docs, err := newTestSource(t, fake).Fetch(context.Background())
	if err != nil {
		t.Fatalf("transient export failures should be retried: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d documents", len(docs))
	}
}

func TestFetchFailsOnMissingExport(t *testing.T) {
	fake := &fakeDrive{exports: map[string]string{"doc-1": "a"}}
	if _, err := newTestSource(t, fake).Fetch(context.Background()); err == nil {
		t.Error("expected error when an export fails")
	}
}

func TestExportTarget(t *testing.T) {
	tests := []struct {
		name   string
		file   *drive.File
		wantID string
		wantOK bool
	}{
		{"document", &drive.File{Id: "d", MimeType: MimeTypeDocument}, "d", true},
		{"shortcut to doc", &drive.File{Id: "s", MimeType: MimeTypeShortcut, ShortcutDetails: &drive.FileShortcutDetails{TargetId: "t", TargetMimeType: MimeTypeDocument}}, "t", true},
		{"shortcut without details", &drive.File{Id: "s", MimeType: MimeTypeShortcut}, "", false},
		{"shortcut to pdf", &drive.File{Id: "s", MimeType: MimeTypeShortcut, ShortcutDetails: &drive.FileShortcutDetails{TargetId: "t", TargetMimeType: "application/pdf"}}, "", false},
		{"pdf", &drive.File{Id: "p", MimeType: "application/pdf"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := exportTarget(tt.file)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("exportTarget = %q, %v", id, ok)
			}
		})
	}
}

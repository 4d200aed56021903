// Package gdrive retrieves the documents of one Google Drive folder as
// markdown. Native documents and shortcuts to native documents are exported;
// every other file type is skipped.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const (
	MimeTypeDocument = "application/vnd.google-apps.document"
	MimeTypeShortcut = "application/vnd.google-apps.shortcut"

	exportMimeType = "text/markdown"
	maxExportSize  = 8 << 20
	pageSize       = 100

	listFields = "nextPageToken, files(id, name, mimeType, webViewLink, shortcutDetails)"
)

// Config is passed in by the caller; the package keeps no credentials of
// its own.
type Config struct {
	FolderID          string
	CredentialsFile   string
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.RetryConfig
}

type Source struct {
	svc      *drive.Service
	folderID string
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

// New builds a Drive client from the service account credentials file in
// cfg. Extra client options (endpoint, HTTP client) are appended.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Source, error) {
	clientOpts := []option.ClientOption{option.WithScopes(drive.DriveReadonlyScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)
	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

func NewWithService(svc *drive.Service, cfg Config) *Source {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	retry := cfg.Retry
	if retry.Retryable == nil {
		retry.Retryable = retryable
	}
	return &Source{
		svc:      svc,
		folderID: cfg.FolderID,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		retry:    retry,
		logger:   slog.Default().With("component", "gdrive", "folder_id", cfg.FolderID),
	}
}

func (s *Source) Name() string { return "gdrive" }

// Fetch lists the folder and exports each document. Files are returned in
// listing order; a failed export fails the whole fetch so a refresh never
// replaces the corpus with a partial one.
func (s *Source) Fetch(ctx context.Context) ([]ingestion.SourceDocument, error) {
	files, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]ingestion.SourceDocument, 0, len(files))
	skipped := 0
	for _, f := range files {
		exportID, ok := exportTarget(f)
		if !ok {
			skipped++
			s.logger.Debug("skipping non-document file", "file_id", f.Id, "mime_type", f.MimeType)
			continue
		}
		text, err := s.export(ctx, exportID)
		if err != nil {
			return nil, fmt.Errorf("exporting %q (%s): %w", f.Name, exportID, err)
		}
		docs = append(docs, ingestion.SourceDocument{
			ID:      exportID,
			Title:   f.Name,
			Link:    documentLink(f, exportID),
			RawText: text,
		})
	}
	s.logger.Info("drive folder fetched", "documents", len(docs), "skipped", skipped)
	return docs, nil
}

func (s *Source) list(ctx context.Context) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", strings.ReplaceAll(s.folderID, "'", `\'`))
	var files []*drive.File
	pageToken := ""
	for {
		var page *drive.FileList
		err := s.call(ctx, "drive.files.list", func() error {
			call := s.svc.Files.List().
				Q(query).
				Fields(listFields).
				PageSize(pageSize).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			page, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing folder %s: %w", s.folderID, err)
		}
		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

func (s *Source) export(ctx context.Context, fileID string) (string, error) {
	var text string
	err := s.call(ctx, "drive.files.export", func() error {
		resp, err := s.svc.Files.Export(fileID, exportMimeType).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
		if err != nil {
			return fmt.Errorf("reading export body: %w", err)
		}
		text = string(data)
		return nil
	})
	return text, err
}

// call waits for the rate limiter before every attempt.
func (s *Source) call(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := resilience.Retry(ctx, name, s.retry, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn()
	})
	s.logger.Debug("drive call", "operation", name, "duration", time.Since(start), "error", err)
	return err
}

// retryable accepts rate limiting, server errors and transport failures.
func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// exportTarget returns the id to export: the file itself for a native
// document, the target for a shortcut to one.
func exportTarget(f *drive.File) (string, bool) {
	switch f.MimeType {
	case MimeTypeDocument:
		return f.Id, true
	case MimeTypeShortcut:
		if f.ShortcutDetails == nil || f.ShortcutDetails.TargetId == "" {
			return "", false
		}
		if t := f.ShortcutDetails.TargetMimeType; t != "" && t != MimeTypeDocument {
			return "", false
		}
		return f.ShortcutDetails.TargetId, true
	}
	return "", false
}

func documentLink(f *drive.File, exportID string) string {
	if f.WebViewLink != "" && f.MimeType == MimeTypeDocument {
		return f.WebViewLink
	}
	return "https://docs.google.com/document/d/" + exportID
}

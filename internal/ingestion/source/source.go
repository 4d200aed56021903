// Package source selects where raw documents come from.
package source

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source/filesystem"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/source/gdrive"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

// Source returns the complete current set of raw documents.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]ingestion.SourceDocument, error)
}

// New builds the source named by cfg.Kind.
func New(ctx context.Context, cfg config.SourceConfig) (Source, error) {
	switch cfg.Kind {
	case "gdrive":
		src, err := gdrive.New(ctx, gdrive.Config{
			FolderID:          cfg.FolderID,
			CredentialsFile:   cfg.CredentialsFile,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "filesystem":
		return filesystem.New(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

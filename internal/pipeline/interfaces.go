package pipeline

import (
	"context"

	"github.com/dvloznov/asset-tracker/internal/gcs"
)

// StorageService is the subset of storage operations the importer needs.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

var _ StorageService = (gcs.StorageService)(nil)

// StatementHint tells the parser what kind of account a statement belongs to.
type StatementHint struct {
	AccountType string
	Currency    string
	Institution string
}

// AIParser provides an interface for AI-powered statement parsing.
type AIParser interface {
	// ParseStatement sends PDF bytes to a model and returns its JSON output,
	// shaped as {"transactions": [...]}.
	ParseStatement(ctx context.Context, pdfBytes []byte, hint StatementHint) (map[string]any, error)
}

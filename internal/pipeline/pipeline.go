package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// ErrNoAccount is returned when a statement is imported without a target account.
var ErrNoAccount = errors.New("target account is required")

// Importer turns a statement PDF stored in GCS into transactions for one account.
type Importer struct {
	storage StorageService
	parser  AIParser
	loc     *time.Location
	log     zerolog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLocation sets the zone statement dates are interpreted in.
func WithLocation(loc *time.Location) ImporterOption {
	return func(i *Importer) {
		if loc != nil {
			i.loc = loc
		}
	}
}

// NewImporter creates an Importer. Dates default to the local zone.
func NewImporter(storage StorageService, parser AIParser, log zerolog.Logger, opts ...ImporterOption) *Importer {
	i := &Importer{
		storage: storage,
		parser:  parser,
		loc:     time.Local,
		log:     log.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportStatement fetches gcsURI, parses it and returns the transactions it
// holds. Transactions without a currency take the account's. Nothing is
// written; the caller decides where the result goes.
func (i *Importer) ImportStatement(ctx context.Context, gcsURI string, account *models.Account) ([]*models.Transaction, error) {
	if account == nil {
		return nil, fmt.Errorf("ImportStatement: %w", ErrNoAccount)
	}

	log := i.log.With().
		Str("gcs_uri", gcsURI).
		Str("account_id", account.ID).
		Logger()

	log.Info().
		Str("filename", i.storage.ExtractFilenameFromGCSURI(gcsURI)).
		Msg("fetching statement")

	pdfBytes, err := i.storage.FetchFromGCS(ctx, gcsURI)
	if err != nil {
		return nil, fmt.Errorf("ImportStatement: fetching PDF: %w", err)
	}

	hint := StatementHint{
		AccountType: string(account.Type),
		Currency:    account.Currency,
		Institution: account.Institution,
	}
	rawOutput, err := i.parser.ParseStatement(ctx, pdfBytes, hint)
	if err != nil {
		return nil, fmt.Errorf("ImportStatement: parsing with model: %w", err)
	}

	transactions, err := transformModelOutputToTransactions(rawOutput, account.Type, i.loc)
	if err != nil {
		return nil, fmt.Errorf("ImportStatement: transforming model output: %w", err)
	}

	for _, t := range transactions {
		if t.Currency == "" {
			t.Currency = account.Currency
		}
	}

	log.Info().Int("transactions", len(transactions)).Msg("statement parsed")
	return transactions, nil
}

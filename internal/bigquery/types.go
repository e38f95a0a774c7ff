package bigquery

import (
	"context"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// AnalyticsRepository exports profile transactions to the analytics warehouse.
type AnalyticsRepository interface {
	// EnsureTable creates the dataset and transactions table when missing.
	EnsureTable(ctx context.Context) error

	// ReplaceProfileTransactions replaces every exported row of the profile
	// with its current transactions and returns how many rows were written.
	ReplaceProfileTransactions(ctx context.Context, profile *models.Profile) (int, error)
}

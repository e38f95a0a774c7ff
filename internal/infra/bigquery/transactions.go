package bigquery

import (
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// TransactionRow is one exported transaction.
type TransactionRow struct {
	ProfileID   string `bigquery:"profile_id"`   // REQUIRED
	AccountID   string `bigquery:"account_id"`   // REQUIRED
	AccountName string `bigquery:"account_name"` // NULLABLE
	AccountType string `bigquery:"account_type"` // NULLABLE

	// TransactionIndex is the position in the account's canonical order,
	// newest first.
	TransactionIndex int64      `bigquery:"transaction_index"`
	TransactionDate  civil.Date `bigquery:"transaction_date"`

	Type     string   `bigquery:"type"`
	Amount   *big.Rat `bigquery:"amount"` // NUMERIC
	Currency string   `bigquery:"currency"`

	AssetName     bigquery.NullString `bigquery:"asset_name"`
	AssetQuantity float64             `bigquery:"asset_quantity"`
	Note          bigquery.NullString `bigquery:"note"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// NewTransactionRows flattens every transaction of the profile. Accounts are
// visited in ID order and dates are taken in loc.
func NewTransactionRows(p *models.Profile, exportedAt time.Time, loc *time.Location) []*TransactionRow {
	if p == nil {
		return nil
	}

	ids := make([]string, 0, len(p.Accounts))
	for id := range p.Accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []*TransactionRow
	for _, id := range ids {
		a := p.Accounts[id]
		sorted := models.SortTransactions(append([]*models.Transaction(nil), a.Transactions...))
		for i, t := range sorted {
			rows = append(rows, &TransactionRow{
				ProfileID:        p.ID,
				AccountID:        a.ID,
				AccountName:      a.Name,
				AccountType:      string(a.Type),
				TransactionIndex: int64(i),
				TransactionDate:  civil.DateOf(t.Timestamp.In(loc)),
				Type:             string(t.Type),
				Amount:           decimal.NewFromFloat(t.Amount).Rat(),
				Currency:         t.Currency,
				AssetName:        nullString(t.AssetName),
				AssetQuantity:    t.AssetQuantity,
				Note:             nullString(t.Note),
				ExportedTS:       exportedAt,
			})
		}
	}
	return rows
}

// record is the newline-delimited JSON form used by load jobs.
func (r *TransactionRow) record() map[string]any {
	m := map[string]any{
		"profile_id":        r.ProfileID,
		"account_id":        r.AccountID,
		"account_name":      r.AccountName,
		"account_type":      r.AccountType,
		"transaction_index": r.TransactionIndex,
		"transaction_date":  r.TransactionDate.String(),
		"type":              r.Type,
		"amount":            bigquery.NumericString(r.Amount),
		"currency":          r.Currency,
		"asset_quantity":    r.AssetQuantity,
		"exported_ts":       r.ExportedTS.UTC().Format(time.RFC3339Nano),
	}
	if r.AssetName.Valid {
		m["asset_name"] = r.AssetName.StringVal
	}
	if r.Note.Valid {
		m["note"] = r.Note.StringVal
	}
	return m
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

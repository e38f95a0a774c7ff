package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// ErrInvalidTransaction is returned when a draft cannot become a transaction.
var ErrInvalidTransaction = errors.New("invalid transaction")

// DateChoice selects the day a new transaction is recorded on.
type DateChoice string

const (
	DateToday     DateChoice = "today"
	DateYesterday DateChoice = "yesterday"
	DateOther     DateChoice = "other"
)

// TransactionDraft is the content of the add-transaction form.
type TransactionDraft struct {
	Date          DateChoice
	OtherDate     string // YYYY-MM-DD, used with DateOther
	Type          models.TransactionType
	Amount        float64
	AssetName     string
	AssetQuantity float64
	Currency      string
	Note          string
}

// Build validates the draft against the account and returns the
// transaction to store. Transactions are pinned to noon on the chosen day.
func (d TransactionDraft) Build(now time.Time, a *models.Account) (*models.Transaction, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: no account", ErrInvalidTransaction)
	}
	if !models.IsTransactionTypeAllowed(a.Type, d.Type) {
		return nil, fmt.Errorf("%w: %q is not allowed for %q accounts", ErrInvalidTransaction, d.Type, a.Type)
	}

	day, err := d.day(now)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Timestamp:     time.Date(day.Year, day.Month, day.Day, 12, 0, 0, 0, now.Location()),
		Updated:       now,
		Type:          d.Type,
		Amount:        d.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(d.Currency)),
		AssetName:     strings.TrimSpace(d.AssetName),
		AssetQuantity: d.AssetQuantity,
		Note:          strings.TrimSpace(d.Note),
	}
	if tx.Amount < 0 {
		tx.Amount = 0
	}
	if tx.AssetQuantity <= 0 {
		tx.AssetQuantity = 1
	}
	if tx.Currency == "" {
		tx.Currency = a.Currency
	}
	if models.IsCashType(tx.Type) {
		tx.AssetName = models.AssetCash
	}
	if tx.AssetName == "" {
		return nil, fmt.Errorf("%w: asset name is required for %q", ErrInvalidTransaction, tx.Type)
	}
	return tx, nil
}

func (d TransactionDraft) day(now time.Time) (civil.Date, error) {
	switch d.Date {
	case DateToday, "":
		return civil.DateOf(now), nil
	case DateYesterday:
		return civil.DateOf(now).AddDays(-1), nil
	case DateOther:
		date, err := civil.ParseDate(strings.TrimSpace(d.OtherDate))
		if err != nil {
			return civil.Date{}, fmt.Errorf("%w: bad date %q", ErrInvalidTransaction, d.OtherDate)
		}
		return date, nil
	}
	return civil.Date{}, fmt.Errorf("%w: unknown date choice %q", ErrInvalidTransaction, d.Date)
}

package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// transformModelOutputToTransactions converts raw model output into
// transactions for an account of type accountType. Dates are pinned to noon
// in loc.
func transformModelOutputToTransactions(
	rawOutput map[string]any,
	accountType models.AccountType,
	loc *time.Location,
) ([]*models.Transaction, error) {
	txAny, ok := rawOutput["transactions"]
	if !ok {
		return nil, fmt.Errorf("transformModelOutputToTransactions: missing 'transactions' key in model output")
	}

	txSlice, ok := txAny.([]any)
	if !ok {
		return nil, fmt.Errorf("transformModelOutputToTransactions: 'transactions' is %T, want []any", txAny)
	}

	result := make([]*models.Transaction, 0, len(txSlice))

	for i, item := range txSlice {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("transformModelOutputToTransactions: element %d is %T, want map[string]any", i, item)
		}

		t, err := transformTransaction(obj, accountType, loc)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		result = append(result, t)
	}

	return result, nil
}

func transformTransaction(obj map[string]any, accountType models.AccountType, loc *time.Location) (*models.Transaction, error) {
	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return nil, err
	}
	desc, err := getStringField(obj, "description", false)
	if err != nil {
		return nil, err
	}
	currency, err := getStringField(obj, "currency", false)
	if err != nil {
		return nil, err
	}
	amount, err := getFloat64Field(obj, "amount", true)
	if err != nil {
		return nil, err
	}
	typ, err := getOptionalStringField(obj, "type")
	if err != nil {
		return nil, err
	}
	assetName, err := getOptionalStringField(obj, "asset_name")
	if err != nil {
		return nil, err
	}
	assetQuantity, err := getOptionalFloat64Field(obj, "asset_quantity")
	if err != nil {
		return nil, err
	}

	date, err := civil.ParseDate(strings.TrimSpace(dateStr))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	t := &models.Transaction{
		Timestamp: time.Date(date.Year, date.Month, date.Day, 12, 0, 0, 0, loc),
		Type:      transactionType(typ, amount, accountType),
		Amount:    math.Abs(amount),
		Currency:  strings.ToUpper(strings.TrimSpace(currency)),
		Note:      strings.TrimSpace(desc),
	}
	if assetName != nil {
		t.AssetName = *assetName
	}
	if assetQuantity != nil {
		t.AssetQuantity = math.Abs(*assetQuantity)
	}
	return t, nil
}

// transactionType keeps the model's type when the account accepts it and
// falls back to the direction of the amount otherwise.
func transactionType(typ *string, amount float64, accountType models.AccountType) models.TransactionType {
	if typ != nil {
		tt := models.TransactionType(strings.ToLower(*typ))
		if models.IsTransactionTypeAllowed(accountType, tt) {
			return tt
		}
	}
	if amount < 0 {
		return models.TransactionTypeWithdrawal
	}
	return models.TransactionTypeDeposit
}

func getStringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getFloat64Field(m map[string]any, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalFloat64Field(m map[string]any, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	case int:
		f := float64(val)
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}

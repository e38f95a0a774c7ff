// Package format renders numbers, dates and records for display.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dvloznov/asset-tracker/internal/models"
)

var printer = message.NewPrinter(language.English)

// FormatAsFloat renders v with exactly decimals fractional digits and ","
// between thousands. v is first rounded to decimals places with halves going
// toward +∞, so 2.5 gives "3", -2.5 gives "-2" and -2.25 at one place "-2.2".
func FormatAsFloat(v float64, decimals int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	if decimals < 0 {
		decimals = 0
	}

	rounded := roundHalfUp(decimal.NewFromFloat(v), int32(decimals))
	return printer.Sprintf("%."+strconv.Itoa(decimals)+"f", rounded.InexactFloat64())
}

// roundHalfUp rounds d to places fractional digits, halves toward +∞.
func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(decimal.New(5, -1)).Floor().Shift(-places)
}

// FormatAsDollarValue renders v as a dollar amount with two decimals.
func FormatAsDollarValue(v float64) string {
	if v < 0 {
		return "-$" + FormatAsFloat(-v, 2)
	}
	return "$" + FormatAsFloat(v, 2)
}

// FormatDate renders t as YYYY-MM-DD using its local calendar date.
func FormatDate(t time.Time) string {
	return civil.DateOf(t.Local()).String()
}

// FormatAccountTitle renders "institution: name (currency)", leaving out the
// parts that are empty. Accounts without a name use their ID.
func FormatAccountTitle(a *models.Account) string {
	if a == nil {
		return "Account "
	}
	title := a.Name
	if title == "" {
		title = "Account " + a.ID
	}
	if a.Currency != "" {
		title += " (" + a.Currency + ")"
	}
	if a.Institution != "" {
		title = a.Institution + ": " + title
	}
	return title
}

// ParseAmount reads a user-entered amount such as "$1,234.50". Input that is
// not a number yields 0.
func ParseAmount(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if r == '$' || r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// DescribeTransaction renders a one line summary such as
// "PURCHASE of $12.00 CAD on 2023-01-17 (3.000 x XYZ)".
func DescribeTransaction(t *models.Transaction) string {
	if t == nil {
		return ""
	}
	s := strings.ToUpper(string(t.Type)) + " of " + FormatAsDollarValue(t.Amount)
	if t.Currency != "" {
		s += " " + t.Currency
	}
	s += " on " + FormatDate(t.Timestamp)

	if t.Type == models.TransactionTypeDeposit || t.Type == models.TransactionTypeWithdrawal || t.AssetName == models.AssetCash {
		return s
	}
	return s + " (" + FormatAsFloat(t.AssetQuantity, 3) + " x " + t.AssetName + ")"
}

// FindByProperty returns the first element at or after start whose key
// equals value, with its index. When nothing matches it returns *def (or the
// zero value) with index -1 and false.
func FindByProperty[T any, V comparable](values []T, key func(T) V, value V, start int, def *T) (T, int, bool) {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(values); i++ {
		if key(values[i]) == value {
			return values[i], i, true
		}
	}
	var zero T
	if def != nil {
		zero = *def
	}
	return zero, -1, false
}

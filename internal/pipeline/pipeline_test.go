package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return []byte("mock pdf data"), nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

// MockAIParser is a mock implementation of AIParser for testing.
type MockAIParser struct {
	ParseStatementFunc func(ctx context.Context, pdfBytes []byte, hint StatementHint) (map[string]any, error)
}

func (m *MockAIParser) ParseStatement(ctx context.Context, pdfBytes []byte, hint StatementHint) (map[string]any, error) {
	if m.ParseStatementFunc != nil {
		return m.ParseStatementFunc(ctx, pdfBytes, hint)
	}
	return map[string]any{"transactions": []any{}}, nil
}

func investmentAccount() *models.Account {
	return &models.Account{
		ID:          "acc-1",
		Name:        "Brokerage",
		Institution: "Questrade",
		Type:        models.AccountTypeInvestment,
		Subtype:     models.AccountSubtypeTFSA,
		Currency:    "CAD",
	}
}

func TestImportStatement(t *testing.T) {
	var gotHint StatementHint
	var gotURI string
	storage := &MockStorageService{
		FetchFromGCSFunc: func(_ context.Context, gcsURI string) ([]byte, error) {
			gotURI = gcsURI
			return []byte("%PDF"), nil
		},
	}
	parser := &MockAIParser{
		ParseStatementFunc: func(_ context.Context, pdfBytes []byte, hint StatementHint) (map[string]any, error) {
			gotHint = hint
			if string(pdfBytes) != "%PDF" {
				t.Errorf("parser got %q", pdfBytes)
			}
			return map[string]any{
				"transactions": []any{
					map[string]any{"date": "2023-01-10", "description": "Payroll", "amount": 1500.0, "currency": "cad"},
					map[string]any{"date": "2023-01-11", "description": "Buy VFV", "amount": -980.5, "type": "purchase", "asset_name": "VFV", "asset_quantity": 10.0},
					map[string]any{"date": "2023-01-12", "description": "Interest", "amount": 2.0, "type": "interest"},
				},
			}, nil
		},
	}

	imp := NewImporter(storage, parser, zerolog.Nop(), WithLocation(time.UTC))
	got, err := imp.ImportStatement(context.Background(), "gs://bucket/statements/jan.pdf", investmentAccount())
	if err != nil {
		t.Fatalf("ImportStatement() error = %v", err)
	}

	if gotURI != "gs://bucket/statements/jan.pdf" {
		t.Errorf("fetched %q", gotURI)
	}
	wantHint := StatementHint{AccountType: "investment", Currency: "CAD", Institution: "Questrade"}
	if gotHint != wantHint {
		t.Errorf("hint = %+v, want %+v", gotHint, wantHint)
	}

	want := []*models.Transaction{
		{
			Timestamp: time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC),
			Type:      models.TransactionTypeDeposit,
			Amount:    1500,
			Currency:  "CAD",
			Note:      "Payroll",
		},
		{
			Timestamp:     time.Date(2023, 1, 11, 12, 0, 0, 0, time.UTC),
			Type:          models.TransactionTypePurchase,
			Amount:        980.5,
			Currency:      "CAD",
			AssetName:     "VFV",
			AssetQuantity: 10,
			Note:          "Buy VFV",
		},
		{
			// Interest is not recorded against investment accounts.
			Timestamp: time.Date(2023, 1, 12, 12, 0, 0, 0, time.UTC),
			Type:      models.TransactionTypeDeposit,
			Amount:    2,
			Currency:  "CAD",
			Note:      "Interest",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ImportStatement() mismatch (-want +got):\n%s", diff)
	}
}

func TestImportStatementErrors(t *testing.T) {
	errFetch := errors.New("object not found")
	errModel := errors.New("quota exceeded")

	tests := []struct {
		name    string
		account *models.Account
		fetch   error
		parse   func() (map[string]any, error)
		wantErr error
	}{
		{name: "no account", wantErr: ErrNoAccount},
		{name: "fetch failure", account: investmentAccount(), fetch: errFetch, wantErr: errFetch},
		{
			name:    "model failure",
			account: investmentAccount(),
			parse:   func() (map[string]any, error) { return nil, errModel },
			wantErr: errModel,
		},
		{
			name:    "bad date",
			account: investmentAccount(),
			parse: func() (map[string]any, error) {
				return map[string]any{"transactions": []any{
					map[string]any{"date": "10/01/2023", "amount": 1.0},
				}}, nil
			},
		},
		{
			name:    "missing amount",
			account: investmentAccount(),
			parse: func() (map[string]any, error) {
				return map[string]any{"transactions": []any{
					map[string]any{"date": "2023-01-10"},
				}}, nil
			},
		},
		{
			name:    "missing transactions key",
			account: investmentAccount(),
			parse:   func() (map[string]any, error) { return map[string]any{}, nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := &MockStorageService{
				FetchFromGCSFunc: func(context.Context, string) ([]byte, error) {
					return []byte("%PDF"), tt.fetch
				},
			}
			parser := &MockAIParser{}
			if tt.parse != nil {
				parser.ParseStatementFunc = func(context.Context, []byte, StatementHint) (map[string]any, error) {
					return tt.parse()
				}
			}

			imp := NewImporter(storage, parser, zerolog.Nop())
			got, err := imp.ImportStatement(context.Background(), "gs://bucket/s.pdf", tt.account)
			if err == nil {
				t.Fatalf("ImportStatement() = %v, want error", got)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ImportStatement() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionType(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name        string
		typ         *string
		amount      float64
		accountType models.AccountType
		want        models.TransactionType
	}{
		{name: "positive without type", amount: 5, accountType: models.AccountTypeBank, want: models.TransactionTypeDeposit},
		{name: "negative without type", amount: -5, accountType: models.AccountTypeBank, want: models.TransactionTypeWithdrawal},
		{name: "allowed type kept", typ: str("Interest"), amount: 5, accountType: models.AccountTypeBank, want: models.TransactionTypeInterest},
		{name: "disallowed type", typ: str("dividend"), amount: 5, accountType: models.AccountTypeBank, want: models.TransactionTypeDeposit},
		{name: "unknown type", typ: str("fee"), amount: -5, accountType: models.AccountTypeInvestment, want: models.TransactionTypeWithdrawal},
		{name: "sale on investment", typ: str("sale"), amount: 100, accountType: models.AccountTypeInvestment, want: models.TransactionTypeSale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transactionType(tt.typ, tt.amount, tt.accountType); got != tt.want {
				t.Errorf("transactionType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain array", raw: `[{"a":1}]`, want: `[{"a":1}]`},
		{name: "json fence", raw: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "surrounding text", raw: "Here you go:\n[1, 2]\nThanks", want: `[1, 2]`},
		{name: "object", raw: "```\n{\"transactions\": []}\n```", want: `{"transactions": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeModelOutput(t *testing.T) {
	out, err := decodeModelOutput("```json\n[{\"date\": \"2023-01-10\"}]\n```")
	if err != nil {
		t.Fatalf("decodeModelOutput() error = %v", err)
	}
	if items, ok := out["transactions"].([]any); !ok || len(items) != 1 {
		t.Errorf("decodeModelOutput() = %v", out)
	}

	out, err = decodeModelOutput(`{"transactions": []}`)
	if err != nil {
		t.Fatalf("decodeModelOutput(wrapped) error = %v", err)
	}
	if items, ok := out["transactions"].([]any); !ok || len(items) != 0 {
		t.Errorf("decodeModelOutput(wrapped) = %v", out)
	}

	if _, err := decodeModelOutput("not json"); err == nil {
		t.Error("decodeModelOutput(garbage) expected error")
	}
}

func TestBuildStatementPrompt(t *testing.T) {
	prompt := buildStatementPrompt(StatementHint{AccountType: "bank", Currency: "USD", Institution: "Chase"})
	for _, want := range []string{"issued by Chase", `"USD"`, "purchase, interest, deposit, withdrawal"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "dividend") {
		t.Error("bank prompt should not offer dividend")
	}
}

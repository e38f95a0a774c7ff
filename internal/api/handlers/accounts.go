package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/api/middleware"
	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/format"
	"github.com/dvloznov/asset-tracker/internal/models"
)

// AccountService is the account side of the app.
type AccountService interface {
	Accounts() ([]*models.Account, error)
	Account(id string) (*models.Account, error)
	Summary(id string) (models.Summary, error)
	CreateAccount(ctx context.Context, in app.AccountInput) (*models.Account, error)
	BeginEdit(id string) (*app.AccountEditor, error)
	DeleteAccount(ctx context.Context, id string) error
	AddTransaction(ctx context.Context, id string, d app.TransactionDraft) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string, index int) error
}

// AccountsHandler handles account and transaction endpoints.
type AccountsHandler struct {
	app      AccountService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(service AccountService, validate *validator.Validate, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{
		app:      service,
		validate: validate,
		log:      log,
	}
}

type accountRequest struct {
	Name        string `json:"name" validate:"max=100"`
	Institution string `json:"institution" validate:"max=100"`
	Type        string `json:"type" validate:"omitempty,account_type"`
	Subtype     string `json:"subtype" validate:"omitempty,account_subtype"`
	Currency    string `json:"currency" validate:"omitempty,iso4217"`
}

func (req accountRequest) input() app.AccountInput {
	return app.AccountInput{
		Name:        req.Name,
		Institution: req.Institution,
		Type:        models.AccountType(req.Type),
		Subtype:     models.AccountSubtype(req.Subtype),
		Currency:    req.Currency,
	}
}

type transactionRequest struct {
	Date          string  `json:"date" validate:"omitempty,date_choice"`
	OtherDate     string  `json:"other_date" validate:"required_if=Date other,omitempty,datetime=2006-01-02"`
	Type          string  `json:"type" validate:"required,transaction_type"`
	Amount        amount  `json:"amount"`
	AssetName     string  `json:"asset_name" validate:"max=50"`
	AssetQuantity float64 `json:"asset_quantity" validate:"gte=0"`
	Currency      string  `json:"currency" validate:"omitempty,iso4217"`
	Note          string  `json:"note" validate:"max=500"`
}

// amount accepts a JSON number or a user-entered string like "$1,234.50".
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(format.ParseAmount(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = amount(f)
	return nil
}

type accountResponse struct {
	*models.Account
	Title   string          `json:"title"`
	Summary *models.Summary `json:"summary,omitempty"`
	Lines   []string        `json:"lines,omitempty"`
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.app.Accounts()
	if err != nil {
		writeError(w, h.log, err, "Failed to list accounts")
		return
	}

	views := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountResponse{Account: a, Title: format.FormatAccountTitle(a)})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"accounts": views,
		"count":    len(views),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAccount(w, r)
	if !ok {
		return
	}

	acc, err := h.app.CreateAccount(r.Context(), req.input())
	if err != nil {
		writeError(w, h.log, err, "Failed to create account")
		return
	}

	h.log.Info().Str("account_id", acc.ID).Msg("Account created")
	middleware.WriteJSON(w, http.StatusCreated, accountResponse{Account: acc, Title: format.FormatAccountTitle(acc)})
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	acc, err := h.app.Account(id)
	if err != nil {
		writeError(w, h.log, err, "Failed to get account")
		return
	}
	summary, err := h.app.Summary(id)
	if err != nil {
		writeError(w, h.log, err, "Failed to get account")
		return
	}

	lines := make([]string, len(acc.Transactions))
	for i, t := range acc.Transactions {
		lines[i] = format.DescribeTransaction(t)
	}

	middleware.WriteJSON(w, http.StatusOK, accountResponse{
		Account: acc,
		Title:   format.FormatAccountTitle(acc),
		Summary: &summary,
		Lines:   lines,
	})
}

// UpdateAccount handles PUT /api/accounts/{id}
// The descriptive fields are replaced; transactions are left alone.
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAccount(w, r)
	if !ok {
		return
	}

	editor, err := h.app.BeginEdit(r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, err, "Failed to update account")
		return
	}
	defer editor.Cancel()

	draft, err := editor.Draft()
	if err != nil {
		writeError(w, h.log, err, "Failed to update account")
		return
	}
	in := req.input()
	draft.Name = in.Name
	draft.Institution = in.Institution
	draft.Currency = in.Currency
	if in.Type != "" && in.Type != draft.Type {
		if err := editor.SetType(in.Type); err != nil {
			writeError(w, h.log, err, "Failed to update account")
			return
		}
	}
	if in.Subtype != "" {
		draft.Subtype = in.Subtype
	}

	if err := editor.SaveInfo(r.Context()); err != nil {
		writeError(w, h.log, err, "Failed to update account")
		return
	}

	acc, err := h.app.Account(r.PathValue("id"))
	if err != nil {
		writeError(w, h.log, err, "Failed to update account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, accountResponse{Account: acc, Title: format.FormatAccountTitle(acc)})
}

// DeleteAccount handles DELETE /api/accounts/{id}
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.app.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, h.log, err, "Failed to delete account")
		return
	}
	h.log.Info().Str("account_id", id).Msg("Account deleted")
	w.WriteHeader(http.StatusNoContent)
}

// AddTransaction handles POST /api/accounts/{id}/transactions
func (h *AccountsHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, err, "Invalid transaction")
		return
	}

	draft := app.TransactionDraft{
		Date:          app.DateChoice(req.Date),
		OtherDate:     req.OtherDate,
		Type:          models.TransactionType(req.Type),
		Amount:        float64(req.Amount),
		AssetName:     req.AssetName,
		AssetQuantity: req.AssetQuantity,
		Currency:      req.Currency,
		Note:          req.Note,
	}
	if draft.Date == "" {
		draft.Date = app.DateToday
	}

	tx, err := h.app.AddTransaction(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		writeError(w, h.log, err, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// DeleteTransaction handles DELETE /api/accounts/{id}/transactions/{index}
func (h *AccountsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Transaction index must be a number")
		return
	}
	if err := h.app.DeleteTransaction(r.Context(), r.PathValue("id"), index); err != nil {
		writeError(w, h.log, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountsHandler) decodeAccount(w http.ResponseWriter, r *http.Request) (accountRequest, bool) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.log, err, "Invalid account")
		return req, false
	}
	return req, true
}

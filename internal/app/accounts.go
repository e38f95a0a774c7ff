package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// AccountInput holds the user-editable fields of an account.
type AccountInput struct {
	Name        string
	Institution string
	Type        models.AccountType
	Subtype     models.AccountSubtype
	Currency    string
}

func (in *AccountInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Institution = strings.TrimSpace(in.Institution)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Type == "" {
		in.Type = models.AccountTypeBank
	}
	if !models.IsValidAccountType(in.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAccount, in.Type)
	}
	if in.Subtype == "" {
		in.Subtype = models.DefaultSubtype(in.Type)
	}
	if !models.IsSubtypeAllowed(in.Type, in.Subtype) {
		return fmt.Errorf("%w: subtype %q is not offered for %q accounts", ErrInvalidAccount, in.Subtype, in.Type)
	}
	return nil
}

// Accounts returns copies of the loaded accounts, most recently updated first.
func (a *App) Accounts() ([]*models.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, err := a.loaded()
	if err != nil {
		return nil, err
	}
	sorted := models.SortAccountsByUpdated(p)
	out := make([]*models.Account, len(sorted))
	for i, acc := range sorted {
		out[i] = models.CloneAccount(acc)
	}
	return out, nil
}

// Account returns a copy of one account.
func (a *App) Account(id string) (*models.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, acc, err := a.account(id)
	if err != nil {
		return nil, err
	}
	return models.CloneAccount(acc), nil
}

// Summary counts an account's transactions by type.
func (a *App) Summary(id string) (models.Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, acc, err := a.account(id)
	if err != nil {
		return models.Summary{}, err
	}
	return models.Summarize(acc, nil), nil
}

// CreateAccount stores a new, empty account.
func (a *App) CreateAccount(ctx context.Context, in AccountInput) (*models.Account, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.loaded()
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Name:         in.Name,
		Institution:  in.Institution,
		Type:         in.Type,
		Subtype:      in.Subtype,
		Currency:     in.Currency,
		Transactions: []*models.Transaction{},
	}
	if err := a.gateway.AddAccount(ctx, p, acc); err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	a.log.Info().Str("account_id", acc.ID).Msg("account created")
	return models.CloneAccount(acc), nil
}

// DeleteAccount removes an account and its transactions.
func (a *App) DeleteAccount(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, acc, err := a.account(id)
	if err != nil {
		return err
	}
	if err := a.gateway.DeleteAccount(ctx, p, acc); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}

	a.log.Info().Str("account_id", id).Msg("account deleted")
	return nil
}

// AddTransaction builds a transaction from the draft and stores it.
func (a *App) AddTransaction(ctx context.Context, id string, d TransactionDraft) (*models.Transaction, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, acc, err := a.account(id)
	if err != nil {
		return nil, err
	}
	tx, err := d.Build(a.now(), acc)
	if err != nil {
		return nil, err
	}

	if err := a.writeTransactions(ctx, acc, func(draft *models.Account) {
		draft.Transactions = append(draft.Transactions, tx)
	}); err != nil {
		return nil, fmt.Errorf("AddTransaction: %w", err)
	}
	return models.CloneTransaction(tx), nil
}

// ImportTransactions appends already-built transactions, filling in the
// account currency and update time where missing.
func (a *App) ImportTransactions(ctx context.Context, id string, txs []*models.Transaction) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, acc, err := a.account(id)
	if err != nil {
		return 0, err
	}

	now := a.now()
	imported := make([]*models.Transaction, 0, len(txs))
	for i, t := range txs {
		if t == nil {
			continue
		}
		if !models.IsValidTransactionType(t.Type) {
			return 0, fmt.Errorf("%w: transaction %d has type %q", ErrInvalidTransaction, i, t.Type)
		}
		tx := models.CloneTransaction(t)
		if tx.Currency == "" {
			tx.Currency = acc.Currency
		}
		if tx.Updated.IsZero() {
			tx.Updated = now
		}
		if models.IsCashType(tx.Type) || tx.AssetName == "" {
			tx.AssetName = models.AssetCash
		}
		if tx.AssetQuantity == 0 {
			tx.AssetQuantity = 1
		}
		imported = append(imported, tx)
	}
	if len(imported) == 0 {
		return 0, nil
	}

	if err := a.writeTransactions(ctx, acc, func(draft *models.Account) {
		draft.Transactions = append(draft.Transactions, imported...)
	}); err != nil {
		return 0, fmt.Errorf("ImportTransactions: %w", err)
	}

	a.log.Info().Str("account_id", id).Int("count", len(imported)).Msg("transactions imported")
	return len(imported), nil
}

// DeleteTransaction removes the transaction at index in the account's
// canonical order.
func (a *App) DeleteTransaction(ctx context.Context, id string, index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, acc, err := a.account(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(acc.Transactions) {
		return fmt.Errorf("%w: index %d", ErrTransactionNotFound, index)
	}

	if err := a.writeTransactions(ctx, acc, func(draft *models.Account) {
		draft.Transactions = append(draft.Transactions[:index], draft.Transactions[index+1:]...)
	}); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// writeTransactions applies change to a copy of acc, stores the copy and,
// only on success, moves the result into acc. The caller holds the lock.
func (a *App) writeTransactions(ctx context.Context, acc *models.Account, change func(*models.Account)) error {
	draft := models.CloneAccount(acc)
	change(draft)
	if err := a.gateway.UpdateAccountTransactions(ctx, draft); err != nil {
		return err
	}
	acc.Transactions = draft.Transactions
	acc.Updated = draft.Updated
	return nil
}

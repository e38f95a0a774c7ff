package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// ErrNotEditing is returned by an editor that was saved or cancelled.
var ErrNotEditing = errors.New("account is not being edited")

// AccountEditor edits a copy of an account. Nothing reaches the loaded
// profile until SaveInfo succeeds.
type AccountEditor struct {
	app    *App
	source *models.Account

	mu    sync.Mutex
	draft *models.Account
}

// BeginEdit starts editing the account's descriptive fields.
func (a *App) BeginEdit(id string) (*AccountEditor, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, acc, err := a.account(id)
	if err != nil {
		return nil, err
	}
	return &AccountEditor{app: a, source: acc, draft: models.CloneAccount(acc)}, nil
}

// Draft returns the working copy. Changes to it are kept until SaveInfo or
// Cancel.
func (e *AccountEditor) Draft() (*models.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return nil, ErrNotEditing
	}
	return e.draft, nil
}

// SetType changes the draft's type and resets its subtype to the first one
// offered for the new type.
func (e *AccountEditor) SetType(t models.AccountType) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNotEditing
	}
	if !models.IsValidAccountType(t) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAccount, t)
	}
	e.draft.Type = t
	e.draft.Subtype = models.DefaultSubtype(t)
	return nil
}

// SaveInfo stores the draft's descriptive fields and copies them into the
// loaded account. On failure the editor stays open.
func (e *AccountEditor) SaveInfo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNotEditing
	}

	in := AccountInput{
		Name:        e.draft.Name,
		Institution: e.draft.Institution,
		Type:        e.draft.Type,
		Subtype:     e.draft.Subtype,
		Currency:    e.draft.Currency,
	}
	if err := in.normalize(); err != nil {
		return err
	}
	e.draft.Name = in.Name
	e.draft.Institution = in.Institution
	e.draft.Type = in.Type
	e.draft.Subtype = in.Subtype
	e.draft.Currency = in.Currency

	a := e.app
	a.mu.Lock()
	defer a.mu.Unlock()

	_, acc, err := a.account(e.source.ID)
	if err != nil {
		return err
	}
	if acc != e.source {
		return fmt.Errorf("%w: %s was reloaded", ErrAccountNotFound, e.source.ID)
	}

	if err := a.gateway.UpdateAccountInfo(ctx, e.draft); err != nil {
		return fmt.Errorf("SaveInfo: %w", err)
	}

	e.source.Name = e.draft.Name
	e.source.Institution = e.draft.Institution
	e.source.Type = e.draft.Type
	e.source.Subtype = e.draft.Subtype
	e.source.Currency = e.draft.Currency
	e.source.Updated = e.draft.Updated
	e.draft = nil

	a.log.Info().Str("account_id", e.source.ID).Msg("account info saved")
	return nil
}

// Cancel discards the draft.
func (e *AccountEditor) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNotEditing
	}
	e.draft = nil
	return nil
}

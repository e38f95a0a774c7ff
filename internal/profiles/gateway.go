// Package profiles reads and writes a signed-in user's profile and accounts.
//
// Every write goes to the document store first. The in-memory records passed
// in are only changed after the store accepts the write, so a failed call
// leaves them exactly as they were.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/asset-tracker/internal/docstore"
	"github.com/dvloznov/asset-tracker/internal/identity"
	"github.com/dvloznov/asset-tracker/internal/models"
)

const (
	ProfilesCollection = "profiles"
	AccountsCollection = "accounts"
)

var (
	// ErrNotLoggedIn is returned when an operation needs a signed-in user.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrMissingAccountID is returned for account writes without an ID.
	ErrMissingAccountID = errors.New("account has no id")
	// ErrProfileNotFound is returned when the profile document does not exist.
	ErrProfileNotFound = errors.New("profile not found")
)

// Identity is the view of the session the gateway needs.
type Identity interface {
	IsLoggedIn() bool
	UID() string
	User() *identity.User
}

// Gateway maps profiles and accounts onto document store paths.
type Gateway struct {
	store    docstore.Store
	session  Identity
	basePath string
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock sets the clock used for the local copies of server timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a gateway rooted at basePath, which may be empty.
func NewGateway(store docstore.Store, session Identity, basePath string, log zerolog.Logger, opts ...Option) *Gateway {
	if basePath != "" && !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	g := &Gateway{
		store:    store,
		session:  session,
		basePath: basePath,
		now:      time.Now,
		log:      log.With().Str("component", "profiles").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Path returns the current user's profile document path, extended by segments.
func (g *Gateway) Path(segments ...string) (string, error) {
	if !g.session.IsLoggedIn() {
		return "", ErrNotLoggedIn
	}
	path := g.basePath + ProfilesCollection + "/" + g.session.UID()
	for _, s := range segments {
		path += "/" + s
	}
	return path, nil
}

// AccountPath returns the path of one account document.
func (g *Gateway) AccountPath(accountID string) (string, error) {
	return g.Path(AccountsCollection, accountID)
}

// CreateProfile returns the current user's profile, creating it from the
// identity when it does not exist yet. Accounts are not loaded.
func (g *Gateway) CreateProfile(ctx context.Context) (*models.Profile, error) {
	path, err := g.Path()
	if err != nil {
		return nil, fmt.Errorf("CreateProfile: %w", err)
	}

	snap, err := g.store.Get(ctx, path)
	if err != nil {
		g.log.Error().Err(err).Str("path", path).Msg("failed to read profile")
		return nil, fmt.Errorf("CreateProfile: reading profile: %w", err)
	}
	if snap.Exists {
		docstore.NormalizeTimestamps(snap.Data)
		return models.ProfileFromData(snap.Data), nil
	}

	p := &models.Profile{ID: g.session.UID()}
	if u := g.session.User(); u != nil {
		p.Owner = models.Owner{Name: u.DisplayName, Email: u.Email, PhotoURL: u.PhotoURL}
	}
	data := map[string]any{
		models.FieldID:      p.ID,
		models.FieldCreated: docstore.ServerTimestamp,
		models.FieldUpdated: docstore.ServerTimestamp,
		models.FieldOwner:   p.OwnerData(),
	}

	g.log.Debug().Str("path", path).Msg("creating profile")
	if err := g.store.Set(ctx, path, data); err != nil {
		g.log.Error().Err(err).Str("path", path).Msg("failed to create profile")
		return nil, fmt.Errorf("CreateProfile: writing profile: %w", err)
	}

	p.Created = g.now()
	p.Updated = p.Created
	return p, nil
}

// GetFullProfile loads the profile and all of its accounts. Nothing is
// returned unless both reads succeed.
func (g *Gateway) GetFullProfile(ctx context.Context) (*models.Profile, error) {
	path, err := g.Path()
	if err != nil {
		return nil, fmt.Errorf("GetFullProfile: %w", err)
	}
	accountsPath := path + "/" + AccountsCollection

	var (
		base     *docstore.Snapshot
		accounts []*docstore.Snapshot
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		snap, err := g.store.Get(egCtx, path)
		if err != nil {
			return fmt.Errorf("reading profile: %w", err)
		}
		base = snap
		return nil
	})
	eg.Go(func() error {
		snaps, err := g.store.List(egCtx, accountsPath)
		if err != nil {
			return fmt.Errorf("listing accounts: %w", err)
		}
		accounts = snaps
		return nil
	})
	if err := eg.Wait(); err != nil {
		g.log.Error().Err(err).Str("path", path).Msg("failed to load profile")
		return nil, fmt.Errorf("GetFullProfile: %w", err)
	}

	if !base.Exists {
		return nil, fmt.Errorf("GetFullProfile: %s: %w", path, ErrProfileNotFound)
	}

	docstore.NormalizeTimestamps(base.Data)
	p := models.ProfileFromData(base.Data)
	p.Accounts = make(map[string]*models.Account, len(accounts))
	for _, snap := range accounts {
		docstore.NormalizeTimestamps(snap.Data)
		a := models.AccountFromData(snap.ID, snap.Data)
		models.SortTransactions(a.Transactions)
		p.Accounts[a.ID] = a
	}

	g.log.Debug().Str("path", path).Int("accounts", len(p.Accounts)).Msg("loaded profile")
	return p, nil
}

// AddAccount stores a new account and, on success, records it in the profile
// with its assigned ID.
func (g *Gateway) AddAccount(ctx context.Context, p *models.Profile, a *models.Account) error {
	collection, err := g.Path(AccountsCollection)
	if err != nil {
		return fmt.Errorf("AddAccount: %w", err)
	}

	models.SortTransactions(a.Transactions)
	data := a.Data()
	data[models.FieldCreated] = docstore.ServerTimestamp
	data[models.FieldUpdated] = docstore.ServerTimestamp

	id, err := g.store.Add(ctx, collection, data)
	if err != nil {
		g.log.Error().Err(err).Str("path", collection).Msg("failed to add account")
		return fmt.Errorf("AddAccount: writing account: %w", err)
	}

	now := g.now()
	a.ID = id
	a.Created = now
	a.Updated = now
	if a.Transactions == nil {
		a.Transactions = []*models.Transaction{}
	}
	if p.Accounts == nil {
		p.Accounts = make(map[string]*models.Account)
	}
	p.Accounts[id] = a

	g.log.Debug().Str("account_id", id).Msg("added account")
	return nil
}

// UpdateAccountInfo writes the account's descriptive fields.
func (g *Gateway) UpdateAccountInfo(ctx context.Context, a *models.Account) error {
	if a.ID == "" {
		return fmt.Errorf("UpdateAccountInfo: %w", ErrMissingAccountID)
	}
	path, err := g.AccountPath(a.ID)
	if err != nil {
		return fmt.Errorf("UpdateAccountInfo: %w", err)
	}

	data := a.InfoData()
	data[models.FieldUpdated] = docstore.ServerTimestamp

	if err := g.store.Update(ctx, path, data); err != nil {
		g.log.Error().Err(err).Str("account_id", a.ID).Msg("failed to update account info")
		return fmt.Errorf("UpdateAccountInfo: writing %s: %w", a.ID, err)
	}

	a.Updated = g.now()
	g.log.Debug().Str("account_id", a.ID).Msg("updated account info")
	return nil
}

// UpdateAccountTransactions sorts and writes the account's transaction list.
func (g *Gateway) UpdateAccountTransactions(ctx context.Context, a *models.Account) error {
	if a.ID == "" {
		return fmt.Errorf("UpdateAccountTransactions: %w", ErrMissingAccountID)
	}
	path, err := g.AccountPath(a.ID)
	if err != nil {
		return fmt.Errorf("UpdateAccountTransactions: %w", err)
	}

	models.SortTransactions(a.Transactions)
	data := map[string]any{
		models.FieldTransactions: models.TransactionsData(a.Transactions),
		models.FieldUpdated:      docstore.ServerTimestamp,
	}

	if err := g.store.Update(ctx, path, data); err != nil {
		g.log.Error().Err(err).Str("account_id", a.ID).Msg("failed to update transactions")
		return fmt.Errorf("UpdateAccountTransactions: writing %s: %w", a.ID, err)
	}

	a.Updated = g.now()
	g.log.Debug().Str("account_id", a.ID).Int("transactions", len(a.Transactions)).Msg("updated transactions")
	return nil
}

// DeleteAccount removes the account document and, on success, its profile entry.
func (g *Gateway) DeleteAccount(ctx context.Context, p *models.Profile, a *models.Account) error {
	if a.ID == "" {
		return fmt.Errorf("DeleteAccount: %w", ErrMissingAccountID)
	}
	path, err := g.AccountPath(a.ID)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}

	if err := g.store.Delete(ctx, path); err != nil {
		g.log.Error().Err(err).Str("account_id", a.ID).Msg("failed to delete account")
		return fmt.Errorf("DeleteAccount: deleting %s: %w", a.ID, err)
	}

	if p != nil {
		delete(p.Accounts, a.ID)
	}
	g.log.Debug().Str("account_id", a.ID).Msg("deleted account")
	return nil
}

// Package app drives the signed-in experience: it waits for the identity
// backend, loads or creates the user's profile and applies account edits.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/identity"
	"github.com/dvloznov/asset-tracker/internal/models"
	"github.com/dvloznov/asset-tracker/internal/profiles"
)

var (
	// ErrProfileNotLoaded is returned by mutations before a profile is available.
	ErrProfileNotLoaded = errors.New("profile not loaded")
	// ErrAccountNotFound is returned for an unknown account ID.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransactionNotFound is returned for an out of range transaction index.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidAccount is returned when account fields fail validation.
	ErrInvalidAccount = errors.New("invalid account")
)

// State is the phase of the signed-in view.
type State int

const (
	StateAuthNotReady State = iota
	StateLoggedOut
	StateLoadingProfile
	StateProfileLoaded
	StateProfileFailed
)

func (s State) String() string {
	switch s {
	case StateAuthNotReady:
		return "auth_not_ready"
	case StateLoggedOut:
		return "logged_out"
	case StateLoadingProfile:
		return "loading_profile"
	case StateProfileLoaded:
		return "profile_loaded"
	case StateProfileFailed:
		return "profile_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is the part of the identity session the app uses.
type Session interface {
	SetOnAuthReady(fn identity.ReadyFunc)
	Logout(ctx context.Context) error
	User() *identity.User
	ProfilePic() string
	LoginURL() string
}

// Gateway persists profiles and accounts.
type Gateway interface {
	CreateProfile(ctx context.Context) (*models.Profile, error)
	GetFullProfile(ctx context.Context) (*models.Profile, error)
	AddAccount(ctx context.Context, p *models.Profile, a *models.Account) error
	UpdateAccountInfo(ctx context.Context, a *models.Account) error
	UpdateAccountTransactions(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, p *models.Profile, a *models.Account) error
}

// App holds the single profile view of the process.
//
// Mutations hold the lock across the remote write, so at most one write is
// in flight and readers never see a half-applied change.
type App struct {
	session Session
	gateway Gateway
	log     zerolog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	ctx       context.Context
	state     State
	profile   *models.Profile
	err       error
	gen       int
	observers []func(State)
}

// Option configures an App.
type Option func(*App)

// WithClock sets the clock used for transaction dates.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New creates an App. Call Start to begin following the session.
func New(session Session, gateway Gateway, log zerolog.Logger, opts ...Option) *App {
	a := &App{
		session: session,
		gateway: gateway,
		log:     log.With().Str("component", "app").Logger(),
		now:     time.Now,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start registers for identity changes. ctx bounds the profile loads
// triggered by those changes. If the session is already ready the first
// load happens before Start returns.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	a.session.SetOnAuthReady(a.handleAuth)
}

// Stop detaches from the session.
func (a *App) Stop() {
	a.session.SetOnAuthReady(nil)
}

// OnStateChange registers fn to be called after every state transition.
func (a *App) OnStateChange(fn func(State)) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

// State returns the current phase.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Err returns the failure behind StateProfileFailed.
func (a *App) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Profile returns a copy of the loaded profile, or nil.
func (a *App) Profile() *models.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.profile == nil {
		return nil
	}
	return cloneProfile(a.profile)
}

// User returns the signed-in identity, or nil.
func (a *App) User() *identity.User {
	return a.session.User()
}

// ProfilePic returns the picture to show for the signed-in user.
func (a *App) ProfilePic() string {
	return a.session.ProfilePic()
}

// SignInURL builds the redirect a logged-out visitor should follow.
func (a *App) SignInURL(scheme, host, returnTo string) string {
	return identity.SignInURL(scheme, host, a.session.LoginURL(), returnTo)
}

// Logout asks the session to sign out. The state follows once the identity
// backend reports the change.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

func (a *App) handleAuth(_ *identity.Session, u *identity.User) {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	ctx := a.ctx
	a.profile = nil
	a.err = nil
	if u == nil {
		a.state = StateLoggedOut
		a.mu.Unlock()
		a.log.Info().Msg("logged out")
		a.notify(StateLoggedOut)
		return
	}
	a.state = StateLoadingProfile
	a.mu.Unlock()
	a.notify(StateLoadingProfile)

	p, err := a.loadProfile(ctx)

	a.mu.Lock()
	if gen != a.gen {
		// A newer identity change superseded this load.
		a.mu.Unlock()
		return
	}
	next := StateProfileLoaded
	if err != nil {
		next = StateProfileFailed
		a.err = err
	} else {
		a.profile = p
	}
	a.state = next
	a.mu.Unlock()

	if err != nil {
		a.log.Error().Err(err).Str("uid", u.UID).Msg("failed to load profile")
	} else {
		a.log.Info().Str("uid", u.UID).Int("accounts", p.AccountCount()).Msg("profile loaded")
	}
	a.notify(next)
}

func (a *App) loadProfile(ctx context.Context) (*models.Profile, error) {
	p, err := a.gateway.GetFullProfile(ctx)
	if errors.Is(err, profiles.ErrProfileNotFound) {
		p, err = a.gateway.CreateProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
		p.Accounts = make(map[string]*models.Account)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

func (a *App) notify(s State) {
	a.mu.RLock()
	observers := make([]func(State), len(a.observers))
	copy(observers, a.observers)
	a.mu.RUnlock()

	for _, fn := range observers {
		fn(s)
	}
}

// loaded returns the profile; the caller holds the lock.
func (a *App) loaded() (*models.Profile, error) {
	if a.state != StateProfileLoaded || a.profile == nil {
		return nil, ErrProfileNotLoaded
	}
	return a.profile, nil
}

// account looks up an account; the caller holds the lock.
func (a *App) account(id string) (*models.Profile, *models.Account, error) {
	p, err := a.loaded()
	if err != nil {
		return nil, nil, err
	}
	acc, ok := p.Accounts[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return p, acc, nil
}

func cloneProfile(p *models.Profile) *models.Profile {
	c := *p
	if p.Accounts != nil {
		c.Accounts = make(map[string]*models.Account, len(p.Accounts))
		for id, acc := range p.Accounts {
			c.Accounts[id] = models.CloneAccount(acc)
		}
	}
	return &c
}

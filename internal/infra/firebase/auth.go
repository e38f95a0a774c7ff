// Package firebase connects the identity session and the document store to a
// Firebase project.
package firebase

import (
	"context"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/asset-tracker/internal/identity"
	infrafirestore "github.com/dvloznov/asset-tracker/internal/infra/firestore"
)

// Config selects the Firebase project. CredentialsFile is optional; without
// it Application Default Credentials are used.
type Config struct {
	ProjectID       string
	CredentialsFile string
}

// NewApp initializes a Firebase app for the project.
func NewApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewApp: initializing firebase app: %w", err)
	}
	return app, nil
}

// NewStore opens the app's Firestore database as a document store.
func NewStore(ctx context.Context, app *firebase.App) (*infrafirestore.Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: initializing firestore client: %w", err)
	}
	return infrafirestore.NewStore(client), nil
}

// AuthClient is the subset of the Firebase Auth client the provider uses.
type AuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// AuthProvider is a server-side identity.Provider. A client signs in by
// handing over a Firebase ID token, which is verified before the identity
// is published.
type AuthProvider struct {
	client AuthClient
	log    zerolog.Logger

	// deliver serializes deliveries so listeners see changes in order.
	deliver sync.Mutex

	mu        sync.Mutex
	current   *identity.User
	changes   int
	listeners map[int]func(*identity.User)
	nextID    int
}

// NewAuthProvider creates an app for cfg and wraps its Auth client.
func NewAuthProvider(ctx context.Context, cfg Config, log zerolog.Logger) (*AuthProvider, error) {
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewAuthProvider: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewAuthProvider: initializing auth client: %w", err)
	}
	return NewAuthProviderWithClient(client, log), nil
}

// NewAuthProviderWithClient wraps an existing Auth client.
func NewAuthProviderWithClient(client AuthClient, log zerolog.Logger) *AuthProvider {
	return &AuthProvider{
		client:    client,
		log:       log.With().Str("component", "firebase_auth").Logger(),
		listeners: make(map[int]func(*identity.User)),
	}
}

// OnAuthStateChanged registers fn and delivers the current state to it
// before returning.
func (p *AuthProvider) OnAuthStateChanged(fn func(*identity.User)) func() {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// SignIn verifies idToken, loads the user record and publishes it.
func (p *AuthProvider) SignIn(ctx context.Context, idToken string) (*identity.User, error) {
	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		p.log.Warn().Err(err).Msg("rejected id token")
		return nil, fmt.Errorf("SignIn: verifying id token: %w", err)
	}

	record, err := p.client.GetUser(ctx, token.UID)
	if err != nil {
		p.log.Error().Err(err).Str("uid", token.UID).Msg("failed to load user record")
		return nil, fmt.Errorf("SignIn: loading user %s: %w", token.UID, err)
	}

	u := &identity.User{UID: token.UID}
	if record.UserInfo != nil {
		u.DisplayName = record.DisplayName
		u.Email = record.Email
		u.PhotoURL = record.PhotoURL
	}

	p.log.Info().Str("uid", u.UID).Msg("signed in")
	p.publish(u)
	return u, nil
}

// SignOut revokes the user's refresh tokens and publishes the signed-out
// state before returning. A sign-in that lands while the tokens are being
// revoked wins and is not overwritten.
func (p *AuthProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current, seen := p.current, p.changes
	p.mu.Unlock()

	if current == nil {
		return nil
	}
	if err := p.client.RevokeRefreshTokens(ctx, current.UID); err != nil {
		return fmt.Errorf("SignOut: revoking tokens for %s: %w", current.UID, err)
	}

	if p.publishIfUnchanged(seen, nil) {
		p.log.Info().Str("uid", current.UID).Msg("signed out")
	} else {
		p.log.Info().Str("uid", current.UID).Msg("tokens revoked, newer sign-in kept")
	}
	return nil
}

func (p *AuthProvider) publish(u *identity.User) {
	p.publishIfUnchanged(-1, u)
}

// publishIfUnchanged records u and delivers it to every listener. With a
// non-negative seen, nothing happens unless the state is still the one
// observed at change count seen.
func (p *AuthProvider) publishIfUnchanged(seen int, u *identity.User) bool {
	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	if seen >= 0 && seen != p.changes {
		p.mu.Unlock()
		return false
	}
	p.changes++
	p.current = u
	fns := make([]func(*identity.User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
	return true
}

// Package identity tracks who is signed in and when the auth backend has
// reported for the first time.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrInvalidConfig is returned by NewSession when required settings are missing.
var ErrInvalidConfig = errors.New("invalid identity configuration")

// User is the identity reported by the auth provider.
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Provider is an auth backend that pushes identity changes.
type Provider interface {
	// OnAuthStateChanged registers fn for every change, nil meaning signed out.
	// The returned function unsubscribes.
	OnAuthStateChanged(fn func(*User)) func()
	SignOut(ctx context.Context) error
}

// Config holds the auth backend settings and presentation defaults.
type Config struct {
	APIKey                string
	AuthDomain            string
	ProjectID             string
	DefaultProfilePicture string
	LoginURL              string
	UseProviderPhotos     bool
}

// Validate checks the settings the backend cannot run without.
func (c Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.AuthDomain == "" {
		missing = append(missing, "auth domain")
	}
	if c.ProjectID == "" {
		missing = append(missing, "project id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrInvalidConfig, missing)
	}
	return nil
}

// ReadyFunc is called every time the identity changes once the provider
// has reported. u is nil when nobody is signed in.
type ReadyFunc func(s *Session, u *User)

// Session mirrors the provider's view of the current identity.
type Session struct {
	cfg      Config
	provider Provider
	log      zerolog.Logger

	mu          sync.Mutex
	user        *User
	ready       bool
	onReady     ReadyFunc
	unsubscribe func()
}

// NewSession validates cfg and subscribes to provider.
func NewSession(cfg Config, provider Provider, log zerolog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewSession: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("NewSession: %w: nil provider", ErrInvalidConfig)
	}

	s := &Session{
		cfg:      cfg,
		provider: provider,
		log:      log.With().Str("component", "identity").Logger(),
	}
	unsubscribe := provider.OnAuthStateChanged(s.handleChange)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return s, nil
}

func (s *Session) handleChange(u *User) {
	s.mu.Lock()
	if u != nil {
		copied := *u
		u = &copied
	}
	s.user = u
	s.ready = true
	fn := s.onReady
	s.mu.Unlock()

	if u != nil {
		s.log.Debug().Str("uid", u.UID).Msg("identity changed")
	} else {
		s.log.Debug().Msg("signed out")
	}

	if fn != nil {
		fn(s, u)
	}
}

// SetOnAuthReady registers the readiness callback, replacing any previous
// one. When the provider has already reported, fn runs immediately with the
// current identity. A nil fn clears the registration.
func (s *Session) SetOnAuthReady(fn ReadyFunc) {
	s.mu.Lock()
	s.onReady = fn
	ready, u := s.ready, s.user
	s.mu.Unlock()

	if fn != nil && ready {
		fn(s, u)
	}
}

// User returns the current identity, or nil.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UID returns the current user's id or "".
func (s *Session) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.UID
}

// IsLoggedIn reports whether an identity is present.
func (s *Session) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// IsAuthReady reports whether the provider has reported at least once.
func (s *Session) IsAuthReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Logout asks the provider to sign out. The identity is cleared when the
// provider reports the change.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.Error().Err(err).Msg("sign out failed")
		return fmt.Errorf("Logout: %w", err)
	}
	return nil
}

// ProfilePic returns the picture to show for the current user.
func (s *Session) ProfilePic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.UseProviderPhotos && s.user != nil && s.user.PhotoURL != "" {
		return AddSizeToGoogleProfilePic(s.user.PhotoURL)
	}
	return s.cfg.DefaultProfilePicture
}

// LoginURL returns the configured sign-in path.
func (s *Session) LoginURL() string {
	return s.cfg.LoginURL
}

// Close stops listening to the provider.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

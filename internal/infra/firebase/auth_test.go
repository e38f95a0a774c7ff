package firebase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/dvloznov/asset-tracker/internal/identity"
	"github.com/dvloznov/asset-tracker/internal/logger"
)

type mockAuthClient struct {
	VerifyIDTokenFunc       func(ctx context.Context, idToken string) (*auth.Token, error)
	GetUserFunc             func(ctx context.Context, uid string) (*auth.UserRecord, error)
	RevokeRefreshTokensFunc func(ctx context.Context, uid string) error
}

func (m *mockAuthClient) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	return m.VerifyIDTokenFunc(ctx, idToken)
}

func (m *mockAuthClient) GetUser(ctx context.Context, uid string) (*auth.UserRecord, error) {
	return m.GetUserFunc(ctx, uid)
}

func (m *mockAuthClient) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return m.RevokeRefreshTokensFunc(ctx, uid)
}

func validClient() *mockAuthClient {
	return &mockAuthClient{
		VerifyIDTokenFunc: func(_ context.Context, idToken string) (*auth.Token, error) {
			if idToken != "good-token" {
				return nil, errors.New("invalid token")
			}
			return &auth.Token{UID: "uid-1"}, nil
		},
		GetUserFunc: func(_ context.Context, uid string) (*auth.UserRecord, error) {
			return &auth.UserRecord{UserInfo: &auth.UserInfo{
				UID:         uid,
				DisplayName: "Ada Lovelace",
				Email:       "ada@example.com",
				PhotoURL:    "https://lh3.googleusercontent.com/a/ada",
			}}, nil
		},
		RevokeRefreshTokensFunc: func(context.Context, string) error { return nil },
	}
}

func TestAuthProviderSignIn(t *testing.T) {
	p := NewAuthProviderWithClient(validClient(), logger.NewWithWriter(io.Discard))

	var seen []*identity.User
	unsubscribe := p.OnAuthStateChanged(func(u *identity.User) { seen = append(seen, u) })
	defer unsubscribe()

	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("initial state = %v, want a single nil delivery", seen)
	}

	u, err := p.SignIn(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if u.UID != "uid-1" || u.Email != "ada@example.com" || u.DisplayName != "Ada Lovelace" {
		t.Errorf("SignIn() = %+v", u)
	}
	if len(seen) != 2 || seen[1].UID != "uid-1" {
		t.Errorf("listener saw %v", seen)
	}

	if _, err := p.SignIn(context.Background(), "bad-token"); err == nil {
		t.Errorf("SignIn(bad-token) should fail")
	}
	if len(seen) != 2 {
		t.Errorf("failed sign in published a change")
	}
}

func TestAuthProviderSignOut(t *testing.T) {
	client := validClient()
	var revoked string
	client.RevokeRefreshTokensFunc = func(_ context.Context, uid string) error {
		revoked = uid
		return nil
	}
	p := NewAuthProviderWithClient(client, logger.NewWithWriter(io.Discard))

	var last *identity.User
	p.OnAuthStateChanged(func(u *identity.User) { last = u })

	if _, err := p.SignIn(context.Background(), "good-token"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if revoked != "uid-1" {
		t.Errorf("revoked tokens for %q, want uid-1", revoked)
	}
	if last != nil {
		t.Errorf("listener still sees %+v after SignOut()", last)
	}
}

func TestAuthProviderSignInAfterSignOut(t *testing.T) {
	p := NewAuthProviderWithClient(validClient(), logger.NewWithWriter(io.Discard))
	s, err := identity.NewSession(identity.Config{APIKey: "k", AuthDomain: "d", ProjectID: "p"}, p, logger.NewWithWriter(io.Discard))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if _, err := p.SignIn(ctx, "good-token"); err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if err := p.SignOut(ctx); err != nil {
			t.Fatalf("SignOut() error = %v", err)
		}
		if _, err := p.SignIn(ctx, "good-token"); err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		time.Sleep(time.Millisecond)
		if !s.IsLoggedIn() {
			t.Fatalf("round %d: session logged out after sign in, sign out, sign in", i)
		}
		if err := p.SignOut(ctx); err != nil {
			t.Fatalf("SignOut() error = %v", err)
		}
		if s.IsLoggedIn() {
			t.Fatalf("round %d: session still logged in after SignOut()", i)
		}
	}
}

func TestAuthProviderSignInDuringSignOut(t *testing.T) {
	client := validClient()
	p := NewAuthProviderWithClient(client, logger.NewWithWriter(io.Discard))
	client.RevokeRefreshTokensFunc = func(ctx context.Context, _ string) error {
		_, err := p.SignIn(ctx, "good-token")
		return err
	}

	var seen []*identity.User
	p.OnAuthStateChanged(func(u *identity.User) { seen = append(seen, u) })

	if _, err := p.SignIn(context.Background(), "good-token"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	if len(seen) != 3 || seen[2] == nil {
		t.Errorf("deliveries = %v, want nil then two sign-ins and no sign out", seen)
	}
}

func TestAuthProviderSignOutWhenSignedOut(t *testing.T) {
	client := validClient()
	client.RevokeRefreshTokensFunc = func(context.Context, string) error {
		t.Error("RevokeRefreshTokens called without a user")
		return nil
	}
	p := NewAuthProviderWithClient(client, logger.NewWithWriter(io.Discard))
	if err := p.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut() error = %v", err)
	}
}

func TestAuthProviderFeedsSession(t *testing.T) {
	p := NewAuthProviderWithClient(validClient(), logger.NewWithWriter(io.Discard))
	cfg := identity.Config{APIKey: "k", AuthDomain: "d", ProjectID: "p"}

	s, err := identity.NewSession(cfg, p, logger.NewWithWriter(io.Discard))
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer s.Close()

	if !s.IsAuthReady() || s.IsLoggedIn() {
		t.Fatalf("session should be ready and logged out right after subscribing")
	}
	if _, err := p.SignIn(context.Background(), "good-token"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if s.UID() != "uid-1" {
		t.Errorf("session UID = %q, want uid-1", s.UID())
	}
}

// Package identitytest provides a controllable identity.Provider for tests.
package identitytest

import (
	"context"
	"sync"

	"github.com/dvloznov/asset-tracker/internal/identity"
)

// Provider is a fake auth backend. Nothing is reported until Publish is called.
type Provider struct {
	mu        sync.Mutex
	listeners map[int]func(*identity.User)
	nextID    int

	// SignOutFunc, when set, replaces the default sign out, which publishes nil.
	SignOutFunc func(ctx context.Context) error
	SignOuts    int
}

// NewProvider returns a provider with no listeners.
func NewProvider() *Provider {
	return &Provider{listeners: make(map[int]func(*identity.User))}
}

// OnAuthStateChanged registers fn.
func (p *Provider) OnAuthStateChanged(fn func(*identity.User)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Publish delivers u to every listener synchronously.
func (p *Provider) Publish(u *identity.User) {
	p.mu.Lock()
	fns := make([]func(*identity.User), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

// Listeners returns the number of active subscriptions.
func (p *Provider) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// SignOut records the call and, by default, publishes nil.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.SignOuts++
	fn := p.SignOutFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	p.Publish(nil)
	return nil
}

// Config returns a configuration that passes validation.
func Config() identity.Config {
	return identity.Config{
		APIKey:                "test-api-key",
		AuthDomain:            "test.firebaseapp.com",
		ProjectID:             "test-project",
		DefaultProfilePicture: "/img/default-profile.png",
		LoginURL:              "/login",
	}
}

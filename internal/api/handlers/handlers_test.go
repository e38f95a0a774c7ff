package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/docstore/memory"
	"github.com/dvloznov/asset-tracker/internal/identity"
	"github.com/dvloznov/asset-tracker/internal/identity/identitytest"
	"github.com/dvloznov/asset-tracker/internal/logger"
	"github.com/dvloznov/asset-tracker/internal/models"
	"github.com/dvloznov/asset-tracker/internal/profiles"
)

var (
	testNow  = time.Date(2023, 1, 17, 15, 30, 0, 0, time.UTC)
	testUser = &identity.User{UID: "uid-1", DisplayName: "Ada Lovelace", Email: "ada@example.com"}
)

// mockSignIn accepts the token "good" unless SignInFunc is set.
type mockSignIn struct {
	provider   *identitytest.Provider
	SignInFunc func(ctx context.Context, idToken string) (*identity.User, error)
}

func (m *mockSignIn) SignIn(ctx context.Context, idToken string) (*identity.User, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, idToken)
	}
	if idToken != "good" {
		return nil, errors.New("token has expired")
	}
	m.provider.Publish(testUser)
	return testUser, nil
}

type harness struct {
	app      *app.App
	provider *identitytest.Provider
	signIn   *mockSignIn
	store    *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return testNow }
	log := logger.NewWithWriter(io.Discard)

	store := memory.New(memory.WithClock(clock))
	provider := identitytest.NewProvider()
	session, err := identity.NewSession(identitytest.Config(), provider, log)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(session.Close)

	gw := profiles.NewGateway(store, session, "", log, profiles.WithClock(clock))
	a := app.New(session, gw, log, app.WithClock(clock))
	a.Start(context.Background())
	provider.Publish(nil)

	return &harness{
		app:      a,
		provider: provider,
		signIn:   &mockSignIn{provider: provider},
		store:    store,
	}
}

func signedIn(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.provider.Publish(testUser)
	if h.app.State() != app.StateProfileLoaded {
		t.Fatalf("State() = %v, want profile_loaded", h.app.State())
	}
	return h
}

// do calls handler with a request built from method, target and body.
// pathValues are name, value pairs.
func do(handler http.HandlerFunc, method, target, body string, pathValues ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// doWithType posts body as a PDF when it starts with %PDF and as JSON otherwise.
func doWithType(handler http.HandlerFunc, body string, pathValues ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if strings.HasPrefix(body, "%PDF") {
		req.Header.Set("Content-Type", "application/pdf")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSessionEndpoints(t *testing.T) {
	h := newHarness(t)
	sh := NewSessionHandler(h.signIn, h.app, NewValidator(), logger.NewWithWriter(io.Discard))

	rec := do(sh.GetState, http.MethodGet, "http://tracker.test/api/state?return_to=/accounts", "")
	state := decode[map[string]any](t, rec)
	if state["state"] != "logged_out" {
		t.Errorf("state = %v, want logged_out", state["state"])
	}
	if want := "http://tracker.test/login?to=%2Faccounts"; state["sign_in_url"] != want {
		t.Errorf("sign_in_url = %v, want %s", state["sign_in_url"], want)
	}

	if rec := do(sh.GetProfile, http.MethodGet, "/api/profile", ""); rec.Code != http.StatusConflict {
		t.Errorf("GetProfile() before sign-in status = %d, want 409", rec.Code)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed body", body: "{", want: http.StatusBadRequest},
		{name: "missing token", body: `{}`, want: http.StatusBadRequest},
		{name: "rejected token", body: `{"id_token": "expired"}`, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(sh.SignIn, http.MethodPost, "/api/session", tt.body); rec.Code != tt.want {
				t.Errorf("SignIn() status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec = do(sh.SignIn, http.MethodPost, "/api/session", `{"id_token": "good"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("SignIn() status = %d: %s", rec.Code, rec.Body)
	}
	state = decode[map[string]any](t, rec)
	if state["state"] != "profile_loaded" || state["profile_pic"] != "/img/default-profile.png" {
		t.Errorf("state after sign-in = %v", state)
	}

	rec = do(sh.GetProfile, http.MethodGet, "/api/profile", "")
	profile := decode[models.Profile](t, rec)
	if profile.ID != "uid-1" || profile.Owner.Email != "ada@example.com" {
		t.Errorf("GetProfile() = %+v", profile)
	}

	if rec := do(sh.SignOut, http.MethodDelete, "/api/session", ""); rec.Code != http.StatusNoContent {
		t.Errorf("SignOut() status = %d", rec.Code)
	}
	if h.app.State() != app.StateLoggedOut {
		t.Errorf("State() after sign-out = %v", h.app.State())
	}
}

func TestAccountEndpoints(t *testing.T) {
	h := signedIn(t)
	ah := NewAccountsHandler(h.app, NewValidator(), logger.NewWithWriter(io.Discard))

	invalid := []struct {
		name string
		body string
	}{
		{name: "unknown type", body: `{"name": "X", "type": "crypto"}`},
		{name: "subtype for other type", body: `{"name": "X", "type": "bank", "subtype": "TFSA"}`},
		{name: "unknown currency", body: `{"name": "X", "currency": "ABC"}`},
		{name: "malformed", body: `[`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(ah.CreateAccount, http.MethodPost, "/api/accounts", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("CreateAccount() status = %d, want 400: %s", rec.Code, rec.Body)
			}
		})
	}

	rec := do(ah.CreateAccount, http.MethodPost, "/api/accounts",
		`{"name": "Brokerage", "institution": "Questrade", "type": "investment", "currency": "cad"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("CreateAccount() status = %d: %s", rec.Code, rec.Body)
	}
	created := decode[accountResponse](t, rec)
	if created.Subtype != models.AccountSubtypeNonReg || created.Currency != "CAD" || created.Title != "Questrade: Brokerage (CAD)" {
		t.Errorf("created = %+v", created.Account)
	}
	id := created.ID

	rec = do(ah.AddTransaction, http.MethodPost, "/api/accounts/"+id+"/transactions",
		`{"date": "other", "other_date": "2023-01-10", "type": "purchase", "amount": "$1,234.50", "asset_name": "VFV", "asset_quantity": 10}`,
		"id", id)
	if rec.Code != http.StatusCreated {
		t.Fatalf("AddTransaction() status = %d: %s", rec.Code, rec.Body)
	}
	tx := decode[models.Transaction](t, rec)
	if tx.Amount != 1234.5 || tx.AssetName != "VFV" || tx.Currency != "CAD" {
		t.Errorf("transaction = %+v", tx)
	}

	badTx := []string{
		`{"type": "gift", "amount": 1}`,
		`{"date": "other", "type": "deposit", "amount": 1}`,
		`{"date": "tomorrow", "type": "deposit", "amount": 1}`,
		`{"type": "deposit", "amount": true}`,
	}
	for _, body := range badTx {
		if rec := do(ah.AddTransaction, http.MethodPost, "/", body, "id", id); rec.Code != http.StatusBadRequest {
			t.Errorf("AddTransaction(%s) status = %d, want 400", body, rec.Code)
		}
	}
	// Interest is not recorded against investment accounts.
	if rec := do(ah.AddTransaction, http.MethodPost, "/", `{"type": "interest", "amount": 1}`, "id", id); rec.Code != http.StatusBadRequest {
		t.Errorf("AddTransaction(interest) status = %d, want 400", rec.Code)
	}

	rec = do(ah.GetAccount, http.MethodGet, "/", "", "id", id)
	got := decode[accountResponse](t, rec)
	if got.Summary == nil || got.Summary.Total != 1 || len(got.Lines) != 1 || !strings.HasPrefix(got.Lines[0], "PURCHASE of $1,234.50 CAD") {
		t.Errorf("GetAccount() = %+v / %v", got.Summary, got.Lines)
	}

	rec = do(ah.UpdateAccount, http.MethodPut, "/", `{"name": "Savings", "institution": "Questrade", "type": "bank", "currency": "usd"}`, "id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("UpdateAccount() status = %d: %s", rec.Code, rec.Body)
	}
	updated := decode[accountResponse](t, rec)
	if updated.Type != models.AccountTypeBank || updated.Subtype != models.AccountSubtypeChequing || updated.Currency != "USD" || len(updated.Transactions) != 1 {
		t.Errorf("updated = %+v", updated.Account)
	}

	rec = do(ah.ListAccounts, http.MethodGet, "/api/accounts", "")
	list := decode[struct {
		Accounts []accountResponse `json:"accounts"`
		Count    int               `json:"count"`
	}](t, rec)
	if list.Count != 1 || list.Accounts[0].Title != "Questrade: Savings (USD)" {
		t.Errorf("ListAccounts() = %+v", list)
	}

	if rec := do(ah.DeleteTransaction, http.MethodDelete, "/", "", "id", id, "index", "x"); rec.Code != http.StatusBadRequest {
		t.Errorf("DeleteTransaction(x) status = %d, want 400", rec.Code)
	}
	if rec := do(ah.DeleteTransaction, http.MethodDelete, "/", "", "id", id, "index", "3"); rec.Code != http.StatusNotFound {
		t.Errorf("DeleteTransaction(3) status = %d, want 404", rec.Code)
	}
	if rec := do(ah.DeleteTransaction, http.MethodDelete, "/", "", "id", id, "index", "0"); rec.Code != http.StatusNoContent {
		t.Errorf("DeleteTransaction(0) status = %d, want 204", rec.Code)
	}

	if rec := do(ah.DeleteAccount, http.MethodDelete, "/", "", "id", id); rec.Code != http.StatusNoContent {
		t.Errorf("DeleteAccount() status = %d", rec.Code)
	}
	if rec := do(ah.GetAccount, http.MethodGet, "/", "", "id", id); rec.Code != http.StatusNotFound {
		t.Errorf("GetAccount() after delete status = %d, want 404", rec.Code)
	}
}

func TestAccountEndpointsSignedOut(t *testing.T) {
	h := newHarness(t)
	ah := NewAccountsHandler(h.app, NewValidator(), logger.NewWithWriter(io.Discard))

	if rec := do(ah.ListAccounts, http.MethodGet, "/api/accounts", ""); rec.Code != http.StatusConflict {
		t.Errorf("ListAccounts() status = %d, want 409", rec.Code)
	}
}

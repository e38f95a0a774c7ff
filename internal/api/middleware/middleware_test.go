package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dvloznov/asset-tracker/internal/logger"
)

type fakeSession bool

func (f fakeSession) IsLoggedIn() bool { return bool(f) }

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("generated request ID %q is not a UUID", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("header = %q, context = %q", rec.Header().Get(RequestIDHeader), seen)
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("incoming ID not kept: %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad\nid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad\nid" {
		t.Error("malformed incoming ID should be replaced")
	}
}

func TestAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		loggedIn bool
		method   string
		path     string
		want     int
	}{
		{name: "signed in", loggedIn: true, method: http.MethodGet, path: "/api/accounts", want: http.StatusNoContent},
		{name: "signed out", method: http.MethodGet, path: "/api/accounts", want: http.StatusUnauthorized},
		{name: "public path", method: http.MethodPost, path: "/api/session", want: http.StatusNoContent},
		{name: "preflight", method: http.MethodOptions, path: "/api/accounts", want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(fakeSession(tt.loggedIn), "/api/session", "/health")(ok)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestChainLogsAndRecovers(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf)

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.FromContext(r.Context())
		reqLog.Info().Msg("inside handler")
		panic("boom")
	}), Recovery(log), Logger(log), RequestID, CORS)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers missing")
	}
	out := buf.String()
	id := rec.Header().Get(RequestIDHeader)
	if !strings.Contains(out, "inside handler") || !strings.Contains(out, id) || !strings.Contains(out, "Panic recovered") {
		t.Errorf("log output missing entries:\n%s", out)
	}
}

package main

import (
	"net/http"
	"time"

	"github.com/dvloznov/asset-tracker/internal/api/handlers"
	"github.com/dvloznov/asset-tracker/internal/api/middleware"
)

// publicPrefixes are reachable without a signed-in user.
var publicPrefixes = []string{"/api/session", "/api/state", "/health"}

type routes struct {
	session  *handlers.SessionHandler
	accounts *handlers.AccountsHandler
	jobs     *handlers.JobsHandler
	exports  *handlers.ExportsHandler

	// importsEnabled is false when no statement importer could be built.
	importsEnabled bool
}

func newRouter(rt routes) *http.ServeMux {
	mux := http.NewServeMux()

	// Session endpoints
	mux.HandleFunc("POST /api/session", rt.session.SignIn)
	mux.HandleFunc("DELETE /api/session", rt.session.SignOut)
	mux.HandleFunc("GET /api/state", rt.session.GetState)
	mux.HandleFunc("GET /api/profile", rt.session.GetProfile)

	// Accounts endpoints
	mux.HandleFunc("GET /api/accounts", rt.accounts.ListAccounts)
	mux.HandleFunc("POST /api/accounts", rt.accounts.CreateAccount)
	mux.HandleFunc("GET /api/accounts/{id}", rt.accounts.GetAccount)
	mux.HandleFunc("PUT /api/accounts/{id}", rt.accounts.UpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", rt.accounts.DeleteAccount)
	mux.HandleFunc("POST /api/accounts/{id}/transactions", rt.accounts.AddTransaction)
	mux.HandleFunc("DELETE /api/accounts/{id}/transactions/{index}", rt.accounts.DeleteTransaction)

	// Import jobs
	if rt.importsEnabled {
		mux.HandleFunc("POST /api/accounts/{id}/import", rt.jobs.ImportStatement)
	} else {
		mux.HandleFunc("POST /api/accounts/{id}/import", func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Statement imports are disabled")
		})
	}
	mux.HandleFunc("GET /api/jobs", rt.jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", rt.jobs.GetJob)

	// Exports
	mux.HandleFunc("POST /api/backup", rt.exports.Backup)
	mux.HandleFunc("POST /api/analytics/sync", rt.exports.SyncAnalytics)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

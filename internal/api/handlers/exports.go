package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/api/middleware"
	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/bigquery"
	"github.com/dvloznov/asset-tracker/internal/models"
)

// ProfileSource returns a copy of the loaded profile, or nil.
type ProfileSource interface {
	Profile() *models.Profile
}

// BackupWriter stores a profile snapshot and returns its URI.
type BackupWriter interface {
	Export(ctx context.Context, p *models.Profile) (string, error)
}

// ExportsHandler handles backup and analytics exports.
type ExportsHandler struct {
	profiles  ProfileSource
	backups   BackupWriter
	analytics bigquery.AnalyticsRepository
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler. Either destination may
// be nil, which disables its endpoint.
func NewExportsHandler(profiles ProfileSource, backups BackupWriter, analytics bigquery.AnalyticsRepository, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		profiles:  profiles,
		backups:   backups,
		analytics: analytics,
		log:       log,
	}
}

// Backup handles POST /api/backup
func (h *ExportsHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Backups are disabled")
		return
	}
	p := h.profiles.Profile()
	if p == nil {
		writeError(w, h.log, app.ErrProfileNotLoaded, "Profile not loaded")
		return
	}

	uri, err := h.backups.Export(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err, "Failed to back up profile")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"uri":      uri,
		"accounts": p.AccountCount(),
	})
}

// SyncAnalytics handles POST /api/analytics/sync
func (h *ExportsHandler) SyncAnalytics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Analytics export is disabled")
		return
	}
	p := h.profiles.Profile()
	if p == nil {
		writeError(w, h.log, app.ErrProfileNotLoaded, "Profile not loaded")
		return
	}

	start := time.Now()
	if err := h.analytics.EnsureTable(r.Context()); err != nil {
		writeError(w, h.log, err, "Failed to prepare analytics table")
		return
	}
	rows, err := h.analytics.ReplaceProfileTransactions(r.Context(), p)
	if err != nil {
		writeError(w, h.log, err, "Failed to export transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"rows":        rows,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

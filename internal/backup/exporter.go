// Package backup writes and reads JSON snapshots of a profile in GCS.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/gcs"
	"github.com/dvloznov/asset-tracker/internal/models"
)

const (
	// SnapshotVersion is written into every snapshot.
	SnapshotVersion = 1

	prefix          = "backups"
	timestampLayout = "20060102T150405Z"
	contentType     = "application/json"
)

var (
	// ErrNoBucket is returned when no bucket is configured.
	ErrNoBucket = errors.New("backup bucket is not configured")
	// ErrInvalidSnapshot is returned when a stored snapshot cannot be used.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Snapshot is the stored form of a profile.
type Snapshot struct {
	Version    int             `json:"version" validate:"required,eq=1"`
	ExportedAt time.Time       `json:"exportedAt" validate:"required"`
	Profile    *models.Profile `json:"profile" validate:"required"`
}

// Exporter stores snapshots under gs://<bucket>/backups/<profile id>/.
type Exporter struct {
	storage  gcs.StorageService
	bucket   string
	now      func() time.Time
	validate *validator.Validate
	log      zerolog.Logger
}

// NewExporter creates an Exporter writing to bucket.
func NewExporter(storage gcs.StorageService, bucket string, log zerolog.Logger) *Exporter {
	return &Exporter{
		storage:  storage,
		bucket:   bucket,
		now:      time.Now,
		validate: validator.New(),
		log:      log.With().Str("component", "backup").Logger(),
	}
}

// ObjectName is where a snapshot of profileID taken at t is stored.
func ObjectName(profileID string, t time.Time) string {
	return path.Join(prefix, profileID, t.UTC().Format(timestampLayout)+".json")
}

// Export writes a snapshot of p and returns its URI.
func (e *Exporter) Export(ctx context.Context, p *models.Profile) (string, error) {
	if e.bucket == "" {
		return "", fmt.Errorf("Export: %w", ErrNoBucket)
	}
	if p == nil || p.ID == "" {
		return "", fmt.Errorf("Export: %w: profile ID is required", ErrInvalidSnapshot)
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: e.now().UTC(),
		Profile:    p,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Export: encoding snapshot: %w", err)
	}

	uri, err := e.storage.UploadBytes(ctx, e.bucket, ObjectName(p.ID, snap.ExportedAt), contentType, data)
	if err != nil {
		return "", fmt.Errorf("Export: %w", err)
	}

	e.log.Info().
		Str("profile_id", p.ID).
		Int("accounts", p.AccountCount()).
		Str("uri", uri).
		Msg("profile exported")
	return uri, nil
}

// Load reads the snapshot stored at uri.
func (e *Exporter) Load(ctx context.Context, uri string) (*Snapshot, error) {
	data, err := e.storage.FetchFromGCS(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Load: %w: %w", ErrInvalidSnapshot, err)
	}
	if err := e.validate.Struct(snap); err != nil {
		return nil, fmt.Errorf("Load: %w: %w", ErrInvalidSnapshot, err)
	}
	if snap.Profile.Accounts == nil {
		snap.Profile.Accounts = map[string]*models.Account{}
	}
	for _, a := range snap.Profile.Accounts {
		if a.Transactions == nil {
			a.Transactions = []*models.Transaction{}
		}
	}
	return &snap, nil
}

// Package bootstrap builds the services shared by the API server and the CLI
// from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/backup"
	"github.com/dvloznov/asset-tracker/internal/config"
	"github.com/dvloznov/asset-tracker/internal/docstore"
	"github.com/dvloznov/asset-tracker/internal/docstore/memory"
	"github.com/dvloznov/asset-tracker/internal/gcsuploader"
	"github.com/dvloznov/asset-tracker/internal/identity"
	infraBQ "github.com/dvloznov/asset-tracker/internal/infra/bigquery"
	"github.com/dvloznov/asset-tracker/internal/infra/firebase"
	"github.com/dvloznov/asset-tracker/internal/pipeline"
	"github.com/dvloznov/asset-tracker/internal/profiles"
)

// Services holds the wired components. Storage, Importer, Backups and
// Analytics are nil when their backing service is not configured or could
// not be reached at startup.
type Services struct {
	Config  *config.Config
	Auth    *firebase.AuthProvider
	Session *identity.Session
	Store   docstore.Store
	App     *app.App

	Storage   *gcsuploader.Client
	Importer  *pipeline.Importer
	Backups   *backup.Exporter
	Analytics *infraBQ.BigQueryAnalyticsRepository

	closers []func() error
	log     zerolog.Logger
}

// New connects to Firebase, opens the configured store and starts the app.
// Optional services that fail to initialize are logged and left nil.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	s := &Services{Config: cfg, log: log}

	fbApp, err := firebase.NewApp(ctx, firebase.Config{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: initializing auth client: %w", err)
	}
	s.Auth = firebase.NewAuthProviderWithClient(authClient, log)

	switch cfg.StoreBackend {
	case config.BackendFirestore:
		store, err := firebase.NewStore(ctx, fbApp)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		s.Store = store
		s.closers = append(s.closers, store.Close)
	default:
		log.Warn().Msg("Using the in-memory store, profiles will not survive a restart")
		s.Store = memory.New()
	}

	s.Session, err = identity.NewSession(cfg.Identity(), s.Auth, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	s.closers = append(s.closers, func() error {
		s.Session.Close()
		return nil
	})

	gateway := profiles.NewGateway(s.Store, s.Session, cfg.FirestoreBasePath, log)
	s.App = app.New(s.Session, gateway, log)
	s.App.Start(ctx)
	s.closers = append(s.closers, func() error {
		s.App.Stop()
		return nil
	})

	s.initStorage(ctx)
	s.initAnalytics(ctx)
	return s, nil
}

func (s *Services) initStorage(ctx context.Context) {
	storage, err := gcsuploader.NewClient(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("GCS is unavailable, statement imports and backups are disabled")
		return
	}
	s.Storage = storage
	s.closers = append(s.closers, storage.Close)

	if s.Config.GCSBucket != "" {
		s.Backups = backup.NewExporter(storage, s.Config.GCSBucket, s.log)
	} else {
		s.log.Warn().Msg("No GCS bucket configured, statement uploads and backups are disabled")
	}

	parser, err := pipeline.NewGeminiParser(ctx, s.Config.GeminiModel)
	if err != nil {
		s.log.Warn().Err(err).Msg("Gemini is unavailable, statement imports are disabled")
		return
	}
	s.Importer = pipeline.NewImporter(storage, parser, s.log)
}

func (s *Services) initAnalytics(ctx context.Context) {
	if s.Config.BigQueryProjectID == "" {
		s.log.Warn().Msg("No BigQuery project configured, analytics sync is disabled")
		return
	}
	repo, err := infraBQ.NewBigQueryAnalyticsRepository(ctx, s.Config.BigQueryProjectID, s.Config.BigQueryDataset, s.log)
	if err != nil {
		s.log.Warn().Err(err).Msg("BigQuery is unavailable, analytics sync is disabled")
		return
	}
	s.Analytics = repo
	s.closers = append(s.closers, repo.Close)
}

// SignIn verifies idToken and waits for the signed-in user's profile.
func (s *Services) SignIn(ctx context.Context, idToken string) error {
	if _, err := s.Auth.SignIn(ctx, idToken); err != nil {
		return err
	}
	if s.App.State() != app.StateProfileLoaded {
		return fmt.Errorf("SignIn: %w", errors.Join(app.ErrProfileNotLoaded, s.App.Err()))
	}
	return nil
}

// Close releases every client in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dvloznov/asset-tracker/internal/identity"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Config holds application configuration
type Config struct {
	// Server
	Port      string
	LogLevel  string
	LogFormat string

	// Storage
	StoreBackend      string
	FirestoreBasePath string

	// Firebase
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseAuthDomain      string
	FirebaseCredentialsFile string

	// Presentation
	DefaultProfilePicture string
	LoginURL              string
	UseProviderPhotos     bool

	// Import, backup and analytics
	GCSBucket         string
	BigQueryProjectID string
	BigQueryDataset   string
	GeminiModel       string
	ImportWorkers     int
	ImportQueueSize   int
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendFirestore)),
		FirestoreBasePath: getEnv("FIRESTORE_BASE_PATH", ""),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:          getEnv("FIREBASE_API_KEY", ""),
		FirebaseAuthDomain:      getEnv("FIREBASE_AUTH_DOMAIN", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),

		DefaultProfilePicture: getEnv("DEFAULT_PROFILE_PICTURE", "/img/default-profile.png"),
		LoginURL:              getEnv("LOGIN_URL", "/login"),
		UseProviderPhotos:     getBoolEnv("USE_PROVIDER_PHOTOS", false),

		GCSBucket:         getEnv("GCS_BUCKET", ""),
		BigQueryProjectID: getEnv("BIGQUERY_PROJECT_ID", ""),
		BigQueryDataset:   getEnv("BIGQUERY_DATASET", "asset_tracker"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}

	var errs []error
	var err error
	if cfg.ImportWorkers, err = getIntEnv("IMPORT_WORKERS", 2); err != nil {
		errs = append(errs, err)
	}
	if cfg.ImportQueueSize, err = getIntEnv("IMPORT_QUEUE_SIZE", 100); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}

	if cfg.BigQueryProjectID == "" {
		cfg.BigQueryProjectID = cfg.FirebaseProjectID
	}
	return cfg, nil
}

// Validate checks settings that would make startup fail later anyway.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// Identity returns the settings for the identity session.
func (c *Config) Identity() identity.Config {
	return identity.Config{
		APIKey:                c.FirebaseAPIKey,
		AuthDomain:            c.FirebaseAuthDomain,
		ProjectID:             c.FirebaseProjectID,
		DefaultProfilePicture: c.DefaultProfilePicture,
		LoginURL:              c.LoginURL,
		UseProviderPhotos:     c.UseProviderPhotos,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/bootstrap"
	"github.com/dvloznov/asset-tracker/internal/config"
	"github.com/dvloznov/asset-tracker/internal/format"
	"github.com/dvloznov/asset-tracker/internal/gcsuploader"
	"github.com/dvloznov/asset-tracker/internal/logger"
	"github.com/dvloznov/asset-tracker/internal/models"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "profile":
		runProfile(log)
	case "add-account":
		runAddAccount(log)
	case "import":
		runImport(log)
	case "backup":
		runBackup(log)
	case "sync-analytics":
		runSyncAnalytics(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Asset Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> -id-token TOKEN [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  profile         Print the signed-in profile and its accounts")
	fmt.Println("  add-account     Create an account")
	fmt.Println("  import          Import a statement PDF into an account")
	fmt.Println("  backup          Write a JSON snapshot of the profile to GCS")
	fmt.Println("  sync-analytics  Replace the profile's rows in BigQuery")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nThe ID token may also be set with ID_TOKEN.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// command holds the flags every subcommand shares.
type command struct {
	fs      *flag.FlagSet
	idToken *string
	timeout *time.Duration
}

func newCommand(name string) *command {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &command{
		fs:      fs,
		idToken: fs.String("id-token", os.Getenv("ID_TOKEN"), "Firebase ID token of the user"),
		timeout: fs.Duration("timeout", 5*time.Minute, "Overall deadline"),
	}
}

// start parses the flags, wires the services and signs in.
func (c *command) start(log zerolog.Logger) (context.Context, *bootstrap.Services, func()) {
	c.fs.Parse(os.Args[2:])

	if *c.idToken == "" {
		log.Fatal().Msg("Error: -id-token is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log = logger.NewWithLevel(cfg.LogLevel, logger.FormatConsole)

	ctx, cancel := context.WithTimeout(context.Background(), *c.timeout)
	ctx = logger.WithContext(ctx, log)

	services, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	if err := services.SignIn(ctx, *c.idToken); err != nil {
		services.Close()
		cancel()
		log.Fatal().Err(err).Msg("Sign-in failed")
	}

	return ctx, services, func() {
		services.Close()
		cancel()
	}
}

func runProfile(log zerolog.Logger) {
	cmd := newCommand("profile")
	asJSON := cmd.fs.Bool("json", false, "Print the profile as JSON")
	_, services, done := cmd.start(log)
	defer done()

	p := services.App.Profile()
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode profile")
		}
		return
	}

	fmt.Printf("Profile: %s (%s)\n", p.Owner.Name, p.ID)
	accounts, err := services.App.Accounts()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts.")
		return
	}
	for _, acc := range accounts {
		summary, _ := services.App.Summary(acc.ID)
		fmt.Printf("\n%s  [%s]  %d transactions\n", format.FormatAccountTitle(acc), acc.ID, summary.Total)
		for _, t := range acc.Transactions {
			fmt.Printf("  %s\n", format.DescribeTransaction(t))
		}
	}
}

func runAddAccount(log zerolog.Logger) {
	cmd := newCommand("add-account")
	name := cmd.fs.String("name", "", "Account name")
	institution := cmd.fs.String("institution", "", "Financial institution")
	accountType := cmd.fs.String("type", string(models.AccountTypeBank), "Account type (bank or investment)")
	subtype := cmd.fs.String("subtype", "", "Account subtype (defaults to the type's first option)")
	currency := cmd.fs.String("currency", "", "ISO 4217 currency code")
	ctx, services, done := cmd.start(log)
	defer done()

	acc, err := services.App.CreateAccount(ctx, app.AccountInput{
		Name:        *name,
		Institution: *institution,
		Type:        models.AccountType(*accountType),
		Subtype:     models.AccountSubtype(*subtype),
		Currency:    *currency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create account")
	}

	fmt.Printf("Created %s [%s]\n", format.FormatAccountTitle(acc), acc.ID)
}

func runImport(log zerolog.Logger) {
	cmd := newCommand("import")
	accountID := cmd.fs.String("account", "", "Account ID to import into")
	gcsURI := cmd.fs.String("gcs-uri", "", "GCS URI of the statement PDF")
	filePath := cmd.fs.String("file", "", "Local statement PDF, uploaded to GCS_BUCKET first")
	ctx, services, done := cmd.start(log)
	defer done()

	if *accountID == "" || (*gcsURI == "") == (*filePath == "") {
		log.Fatal().Msg("Usage: cli import -account ID (-gcs-uri URI | -file PATH)")
	}
	if services.Importer == nil {
		log.Fatal().Msg("Statement imports are disabled, check GCS and Gemini credentials")
	}

	account, err := services.App.Account(*accountID)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown account")
	}

	uri := *gcsURI
	if *filePath != "" {
		if services.Config.GCSBucket == "" {
			log.Fatal().Msg("GCS_BUCKET is required to upload a local statement")
		}
		objectName := path.Join("statements", account.ID, time.Now().Format("2006/01/02"), uuid.NewString()+filepath.Ext(*filePath))
		if err := services.Storage.UploadFile(ctx, services.Config.GCSBucket, objectName, *filePath); err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
		uri = gcsuploader.ObjectURI(services.Config.GCSBucket, objectName)
		log.Info().Str("gcs_uri", uri).Msg("Statement uploaded")
	}

	txs, err := services.Importer.ImportStatement(ctx, uri, account)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}
	n, err := services.App.ImportTransactions(ctx, account.ID, txs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save imported transactions")
	}

	fmt.Printf("Imported %d transactions into %s.\n", n, format.FormatAccountTitle(account))
}

func runBackup(log zerolog.Logger) {
	cmd := newCommand("backup")
	ctx, services, done := cmd.start(log)
	defer done()

	if services.Backups == nil {
		log.Fatal().Msg("Backups are disabled, set GCS_BUCKET")
	}
	uri, err := services.Backups.Export(ctx, services.App.Profile())
	if err != nil {
		log.Fatal().Err(err).Msg("Backup failed")
	}

	fmt.Printf("Backup written to %s\n", uri)
}

func runSyncAnalytics(log zerolog.Logger) {
	cmd := newCommand("sync-analytics")
	ctx, services, done := cmd.start(log)
	defer done()

	if services.Analytics == nil {
		log.Fatal().Msg("Analytics sync is disabled, set BIGQUERY_PROJECT_ID")
	}
	if err := services.Analytics.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare the analytics table")
	}
	n, err := services.Analytics.ReplaceProfileTransactions(ctx, services.App.Profile())
	if err != nil {
		log.Fatal().Err(err).Msg("Analytics sync failed")
	}

	fmt.Printf("Synced %d transaction rows to BigQuery.\n", n)
}

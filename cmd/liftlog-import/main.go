package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	filePath := flag.String("file", "", "path to Alpha Progression CSV export (required)")
	subject := flag.String("subject", "", "subject claim of the user to import for (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without inserting into database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *filePath == "" || *subject == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-import -config config.yaml -file export.csv -subject <sub> [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Error("cannot open export", "path", *filePath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	opts := cfg.Database.Options()

	// Run migrations
	if err := storage.RunMigrations(opts); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	if *dryRun {
		log.Info("dry run: nothing will be written to the database")
	}

	// Connect database
	db, err := storage.New(ctx, opts)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	resolve := db.ResolveUser
	if cfg.Auth.CreateUsers() {
		resolve = func(ctx context.Context, subject string) (models.User, error) {
			return db.EnsureUser(ctx, subject, "")
		}
	}
	user, err := resolve(ctx, *subject)
	if err != nil {
		log.Error("resolving user failed", "subject", *subject, "error", err)
		os.Exit(1)
	}

	// Run import
	result, err := alpha.NewProvider(db, log).Ingest(ctx, f, user.ID, *dryRun)
	if err != nil {
		log.Error("import failed", "error", err)
		printResult(log, result)
		os.Exit(1)
	}

	printResult(log, result)
	log.Info("import complete")
}

func printResult(log *slog.Logger, result *ingest.Result) {
	if result == nil {
		return
	}
	log.Info("import stats",
		"dry_run", result.DryRun,
		"sessions_received", result.SessionsReceived,
		"sessions_inserted", result.SessionsInserted,
		"sessions_skipped", result.SessionsSkipped,
		"exercise_classes_created", result.ExerciseClassesCreated,
		"sets_received", result.SetsReceived,
		"sets_inserted", result.SetsInserted,
	)
}

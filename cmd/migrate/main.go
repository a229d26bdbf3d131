package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dompet-app/dompet/internal/app"
	"github.com/dompet-app/dompet/internal/config"
	infraBQ "github.com/dompet-app/dompet/internal/infra/bigquery"
	"github.com/dompet-app/dompet/internal/infra/sqlite"
	"github.com/rs/zerolog"
)

const (
	targetSQLite   = "sqlite"
	targetBigQuery = "bigquery"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	var (
		target    = flag.String("target", targetBigQuery, "What to migrate: sqlite or bigquery")
		projectID = flag.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT)")
		datasetID = flag.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID (or set BIGQUERY_DATASET)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dir       = flag.String("migrations", "", "Read BigQuery migrations from this directory instead of the embedded set")
		dbPath    = flag.String("db", cfg.SQLiteDBPath, "SQLite database path (or set SQLITE_DB_PATH)")
		list      = flag.Bool("list", false, "List the BigQuery migrations and exit")
	)
	flag.Parse()

	log := app.NewLogger(cfg, "dompet-migrate")

	switch *target {
	case targetSQLite:
		if err := sqlite.RunMigrations(*dbPath); err != nil {
			log.Fatal().Err(err).Str("path", *dbPath).Msg("SQLite migration failed")
		}
		log.Info().Str("path", *dbPath).Msg("SQLite database is up to date")

	case targetBigQuery:
		if *projectID == "" {
			log.Fatal().Msg("-project is required. Please specify your GCP project ID.")
		}
		migrations, err := loadMigrations(*dir, *projectID, *datasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read migrations")
		}
		log.Info().Int("count", len(migrations)).Msg("Found migration files")

		if *list {
			for _, m := range migrations {
				fmt.Printf("%04d_%s  %s\n", m.Version, m.Name, m.Checksum[:12])
			}
			return
		}
		if err := migrateBigQuery(*projectID, *datasetID, *appliedBy, migrations, log); err != nil {
			log.Fatal().Err(err).Msg("BigQuery migration failed")
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown target %q (want %s or %s)\n", *target, targetSQLite, targetBigQuery)
		os.Exit(2)
	}
}

// loadMigrations reads dir when given, otherwise the migrations embedded in
// the bigquery package.
func loadMigrations(dir, projectID, datasetID string) ([]infraBQ.Migration, error) {
	if dir == "" {
		return infraBQ.EmbeddedMigrations(projectID, datasetID)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations directory not found: %s", dir)
	}
	return infraBQ.ReadMigrations(os.DirFS(dir), projectID, datasetID)
}

func migrateBigQuery(projectID, datasetID, appliedBy string, migrations []infraBQ.Migration, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("create BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", projectID).Str("dataset", datasetID).Msg("Connected to BigQuery")

	migrator := infraBQ.NewMigrator(client, projectID, datasetID, appliedBy, log)
	n, err := migrator.Apply(ctx, migrations)
	if err != nil {
		return err
	}

	if n == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", n).Msg("Successfully applied migrations")
	}
	return nil
}

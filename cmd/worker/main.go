package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dompet-app/dompet/internal/app"
	"github.com/dompet-app/dompet/internal/config"
	"github.com/dompet-app/dompet/internal/events"
	infraBQ "github.com/dompet-app/dompet/internal/infra/bigquery"
	"github.com/rs/zerolog"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	// Initialize logger
	log := app.NewLogger(cfg, "dompet-worker")

	if err := cfg.RequireWorker(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, err := infraBQ.NewBigQueryMirror(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery mirror")
	}
	defer mirror.Close()

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
	}
	defer client.Close()

	log.Info().
		Str("queue", cfg.AMQPQueue).
		Str("project", cfg.BigQueryProject).
		Str("dataset", cfg.BigQueryDataset).
		Msg("Worker service started, waiting for transaction events...")

	err = client.ConsumeWithRetry(ctx, logged(infraBQ.EventHandler(mirror), log))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Worker stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Worker service stopped")
}

// logged wraps a handler with per-event logging.
func logged(next events.Handler, log zerolog.Logger) events.Handler {
	return func(ctx context.Context, event *events.TransactionEvent) error {
		l := log.With().
			Str("event", string(event.Type)).
			Str("transaction_id", event.TransactionID).
			Str("owner", event.Owner).
			Logger()

		if err := next(ctx, event); err != nil {
			l.Error().Err(err).Msg("Failed to mirror transaction event")
			return err
		}
		l.Debug().Msg("Transaction event mirrored")
		return nil
	}
}

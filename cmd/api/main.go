package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dompet-app/dompet/internal/api/handlers"
	"github.com/dompet-app/dompet/internal/app"
	"github.com/dompet-app/dompet/internal/assistant"
	"github.com/dompet-app/dompet/internal/auth"
	"github.com/dompet-app/dompet/internal/completion"
	"github.com/dompet-app/dompet/internal/config"
	"github.com/dompet-app/dompet/internal/events"
	"github.com/dompet-app/dompet/internal/gcsuploader"
	"github.com/dompet-app/dompet/internal/interpreter"
	"github.com/dompet-app/dompet/internal/jobs"
	"github.com/dompet-app/dompet/internal/jobs/inmemory"
	"github.com/dompet-app/dompet/internal/reports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var errCompletionUnavailable = errors.New("completion service is not configured")

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	// Parse command-line flags
	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()
	cfg.Port = *port

	// Initialize logger
	log := app.NewLogger(cfg, "dompet-api")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.RequireAPI(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize repositories
	st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close(context.Background())

	loc := cfg.Location()
	taxonomy := app.Taxonomy(cfg)
	completer := newCompleter(ctx, cfg, log)

	interp := interpreter.New(completer,
		interpreter.WithTimeout(cfg.InterpretTimeout),
		interpreter.WithMaxTokens(cfg.CompletionMaxTokens),
		interpreter.WithLogger(log.With().Str("component", "interpreter").Logger()),
	)
	ask := assistant.New(completer, st,
		assistant.WithMaxTokens(cfg.CompletionMaxTokens),
		assistant.WithLogger(log.With().Str("component", "assistant").Logger()),
	)
	accounts := auth.NewService(st, st, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), auth.WithLogger(log))

	// Transaction events for the analytics mirror
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		defer client.Close()
		publisher = client
	} else {
		log.Warn().Msg("No AMQP_URL configured - transaction events will not be published")
	}

	// Report exports
	reportOpts := []reports.Option{reports.WithLocation(loc), reports.WithLogger(log)}
	var exportPublisher jobs.Publisher
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.ExportWorkers, jobStore, log)
	if cfg.GCSBucket != "" {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()
		reportOpts = append(reportOpts, reports.WithStorage(storage, cfg.GCSBucket))
		exportPublisher = jobQueue
	} else {
		log.Warn().Msg("No GCS bucket configured - report exports to storage will be disabled")
	}
	reportSvc := reports.NewService(st, reportOpts...)

	router := handlers.NewRouter(handlers.Handlers{
		Auth:         handlers.NewAuthHandler(accounts, log),
		Transactions: handlers.NewTransactionsHandler(st, interp, publisher, taxonomy, loc, log),
		Reports:      handlers.NewReportsHandler(reportSvc, log),
		Jobs:         handlers.NewJobsHandler(exportPublisher, jobStore, loc, log),
		Assistant:    handlers.NewAssistantHandler(ask, taxonomy, log),
	}, accounts, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Start job consumer in background
	g.Go(func() error {
		log.Info().Msg("Starting export worker")
		return jobQueue.Start(gctx, reportSvc.HandleJob)
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		// Stop job queue and wait for in-flight jobs
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited")
}

// newCompleter connects to Gemini. Without credentials the API still
// serves everything except interpretation and the assistant.
func newCompleter(ctx context.Context, cfg *config.Config, log zerolog.Logger) interpreter.Completer {
	c, err := completion.NewGeminiCompleter(ctx, completion.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable - free-text commands and the assistant will fail")
		return interpreter.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", errCompletionUnavailable
		})
	}
	log.Info().Str("model", c.Model()).Msg("Using Gemini completer")
	return c
}

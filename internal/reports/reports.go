// Package reports loads an owner's transactions and runs them through the
// aggregation engine and the export renderers.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dompet-app/dompet/internal/aggregate"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/export"
	"github.com/dompet-app/dompet/internal/gcsuploader"
	"github.com/dompet-app/dompet/internal/jobs"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/rs/zerolog"
)

// ErrStorageNotConfigured is returned by HandleJob when no bucket is set.
var ErrStorageNotConfigured = errors.New("export storage is not configured")

// Query selects the transactions a report covers. Zero Start or End leave
// that side open.
type Query struct {
	Granularity aggregate.Granularity
	Start       time.Time
	End         time.Time
}

// ExportRequest describes an export file.
type ExportRequest struct {
	Format export.Format
	Scope  export.Scope
	Query
}

// Service builds dashboards, monthly reports and export files.
type Service struct {
	transactions store.TransactionRepository
	storage      gcsuploader.StorageService
	bucket       string
	loc          *time.Location
	log          zerolog.Logger
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStorage enables HandleJob uploads to bucket.
func WithStorage(storage gcsuploader.StorageService, bucket string) Option {
	return func(s *Service) {
		s.storage = storage
		s.bucket = bucket
	}
}

// WithLocation sets the time zone calendar periods are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a report service over transactions.
func NewService(transactions store.TransactionRepository, opts ...Option) *Service {
	s := &Service{
		transactions: transactions,
		loc:          time.UTC,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the reporting time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Dashboard reports on the owner's transactions in the queried period.
func (s *Service) Dashboard(ctx context.Context, owner string, q Query) (aggregate.Report, error) {
	txs, err := s.load(ctx, owner, q.Start, q.End)
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("Dashboard: %w", err)
	}

	report := aggregate.BuildReport(txs, granularityOrMonth(q.Granularity))
	s.logSkipped(owner, report.Trend)
	return report, nil
}

// Monthly reports on one calendar month with daily buckets.
func (s *Service) Monthly(ctx context.Context, owner string, year int, month time.Month) (aggregate.MonthlyReport, error) {
	start, end := aggregate.MonthRange(year, month, s.loc)
	txs, err := s.load(ctx, owner, start, end)
	if err != nil {
		return aggregate.MonthlyReport{}, fmt.Errorf("Monthly: %w", err)
	}
	return aggregate.BuildMonthlyReport(txs, year, month, s.loc), nil
}

// Export renders the requested file to w.
func (s *Service) Export(ctx context.Context, owner string, req ExportRequest, w io.Writer) error {
	txs, err := s.load(ctx, owner, req.Start, req.End)
	if err != nil {
		return fmt.Errorf("Export: %w", err)
	}

	var table export.Table
	switch req.Scope {
	case export.ScopeTrend:
		trend := aggregate.BucketByPeriod(txs, granularityOrMonth(req.Granularity))
		s.logSkipped(owner, trend)
		table = export.TrendTable(trend)
	default:
		table = export.TransactionsTable(txs)
	}

	if err := export.Render(w, req.Format, table); err != nil {
		return fmt.Errorf("Export: %w", err)
	}
	return nil
}

// HandleJob renders an export job and uploads the file. It is the handler
// the export queue runs.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	exportJob, ok := job.(*jobs.ExportReportJob)
	if !ok {
		return fmt.Errorf("HandleJob: unsupported job type %q", job.GetType())
	}
	if s.storage == nil || s.bucket == "" {
		return ErrStorageNotConfigured
	}

	req := ExportRequest{
		Format: exportJob.Format,
		Scope:  exportJob.Scope,
		Query: Query{
			Granularity: aggregate.Granularity(exportJob.Granularity),
			Start:       exportJob.Start,
			End:         exportJob.End,
		},
	}

	var buf bytes.Buffer
	if err := s.Export(ctx, exportJob.Owner, req, &buf); err != nil {
		return fmt.Errorf("HandleJob: %w", err)
	}

	name := gcsuploader.ExportObjectName(exportJob.Owner, export.FileName(req.Scope, req.Format, s.now().In(s.loc)))
	uri, err := s.storage.Upload(ctx, s.bucket, name, req.Format.ContentType(), &buf)
	if err != nil {
		return fmt.Errorf("HandleJob: %w", err)
	}

	exportJob.ObjectURI = uri
	s.log.Info().
		Str("job_id", exportJob.JobID).
		Str("owner", exportJob.Owner).
		Str("object_uri", uri).
		Msg("Export uploaded")
	return nil
}

// load fetches the owner's transactions with dates moved into the
// reporting time zone.
func (s *Service) load(ctx context.Context, owner string, start, end time.Time) ([]domain.Transaction, error) {
	txs, err := s.transactions.FindTransactionsByOwner(ctx, owner, store.TransactionFilter{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	// Stores return newest first; breakdowns list categories by first entry.
	store.SortInsertionOrder(txs)
	for i := range txs {
		if !txs[i].OccurredAt.IsZero() {
			txs[i].OccurredAt = txs[i].OccurredAt.In(s.loc)
		}
	}
	return txs, nil
}

func (s *Service) logSkipped(owner string, trend aggregate.Trend) {
	if trend.Skipped > 0 {
		s.log.Warn().
			Str("owner", owner).
			Int("skipped", trend.Skipped).
			Msg("Undated transactions left out of trend")
	}
}

func granularityOrMonth(g aggregate.Granularity) aggregate.Granularity {
	if g == aggregate.Day {
		return aggregate.Day
	}
	return aggregate.Month
}

package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dompet-app/dompet/internal/aggregate"
	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/dompet-app/dompet/internal/export"
	"github.com/dompet-app/dompet/internal/reports"
	"github.com/rs/zerolog"
)

// ReportService is the part of reports.Service the handlers use.
type ReportService interface {
	Location() *time.Location
	Dashboard(ctx context.Context, owner string, q reports.Query) (aggregate.Report, error)
	Monthly(ctx context.Context, owner string, year int, month time.Month) (aggregate.MonthlyReport, error)
	Export(ctx context.Context, owner string, req reports.ExportRequest, w io.Writer) error
}

// ReportsHandler handles dashboard and report endpoints.
type ReportsHandler struct {
	reports ReportService
	now     func() time.Time
	log     zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(svc ReportService, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{reports: svc, now: time.Now, log: log}
}

// parseQuery reads granularity and the date range. Granularity defaults to
// month.
func parseQuery(r *http.Request, loc *time.Location) (reports.Query, error) {
	q := reports.Query{Granularity: aggregate.Month}
	if g := r.URL.Query().Get("granularity"); g != "" {
		parsed, err := aggregate.ParseGranularity(g)
		if err != nil {
			return reports.Query{}, err
		}
		q.Granularity = parsed
	}

	start, end, err := parseDateRange(r, loc)
	if err != nil {
		return reports.Query{}, err
	}
	q.Start, q.End = start, end
	return q, nil
}

// Dashboard handles GET /api/dashboard
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r, h.reports.Location())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reports.Dashboard(r.Context(), owner(r), q)
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "build dashboard")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// Monthly handles GET /api/reports/monthly?month=YYYY-MM. The current month
// is used when month is omitted.
func (h *ReportsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	loc := h.reports.Location()
	now := h.now().In(loc)
	year, month := now.Year(), now.Month()

	if m := r.URL.Query().Get("month"); m != "" {
		var err error
		year, month, err = aggregate.ParseMonth(m, loc)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
	}

	report, err := h.reports.Monthly(r.Context(), owner(r), year, month)
	if err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "build monthly report")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// Export handles GET /api/reports/export and returns the file inline.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := parseExportRequest(r, h.reports.Location())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Render fully first so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.reports.Export(r.Context(), owner(r), req, &buf); err != nil {
		writeServiceError(w, requestLog(r, h.log), err, "export report")
		return
	}

	name := export.FileName(req.Scope, req.Format, h.now().In(h.reports.Location()))
	w.Header().Set("Content-Type", req.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func parseExportRequest(r *http.Request, loc *time.Location) (reports.ExportRequest, error) {
	query := r.URL.Query()
	format, err := export.ParseFormat(query.Get("format"))
	if err != nil {
		return reports.ExportRequest{}, err
	}
	scope, err := export.ParseScope(query.Get("scope"))
	if err != nil {
		return reports.ExportRequest{}, err
	}
	q, err := parseQuery(r, loc)
	if err != nil {
		return reports.ExportRequest{}, err
	}
	return reports.ExportRequest{Format: format, Scope: scope, Query: q}, nil
}

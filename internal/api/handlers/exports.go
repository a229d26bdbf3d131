package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dompet-app/dompet/internal/aggregate"
	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/dompet-app/dompet/internal/export"
	"github.com/dompet-app/dompet/internal/jobs"
	"github.com/rs/zerolog"
)

// JobsHandler handles export job endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	loc       *time.Location
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. A nil publisher disables
// POST /api/exports.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, loc *time.Location, log zerolog.Logger) *JobsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &JobsHandler{publisher: publisher, store: store, loc: loc, log: log}
}

// EnqueueExport handles POST /api/exports
func (h *JobsHandler) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Exports are not configured")
		return
	}

	var req struct {
		Format      string `json:"format"`
		Scope       string `json:"scope"`
		Granularity string `json:"granularity"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := h.exportJob(owner(r), req.Format, req.Scope, req.Granularity, req.StartDate, req.EndDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := requestLog(r, h.log)
	if err := h.publisher.PublishExportReport(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("format", string(job.Format)).Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

func (h *JobsHandler) exportJob(owner, format, scope, granularity, startDate, endDate string) (*jobs.ExportReportJob, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	s, err := export.ParseScope(scope)
	if err != nil {
		return nil, err
	}
	g := aggregate.Month
	if granularity != "" {
		if g, err = aggregate.ParseGranularity(granularity); err != nil {
			return nil, err
		}
	}
	start, err := parseDate(startDate, h.loc)
	if err != nil {
		return nil, errors.New("Invalid start_date format")
	}
	end, err := parseDate(endDate, h.loc)
	if err != nil {
		return nil, errors.New("Invalid end_date format")
	}
	if len(endDate) == len(DateLayout) {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	return &jobs.ExportReportJob{
		Owner:       owner,
		Format:      f,
		Scope:       s,
		Granularity: string(g),
		Start:       start,
		End:         end,
	}, nil
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil || job.Owner != owner(r) {
		if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
			log := requestLog(r, h.log)
			log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		}
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		Owner:  owner(r),
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := requestLog(r, h.log)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Package handlers implements the JSON HTTP endpoints of the API server.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dompet-app/dompet/internal/api/middleware"
	"github.com/dompet-app/dompet/internal/auth"
	"github.com/dompet-app/dompet/internal/domain"
	"github.com/dompet-app/dompet/internal/logger"
	"github.com/dompet-app/dompet/internal/store"
	"github.com/rs/zerolog"
)

// DateLayout is the format of date query parameters and request fields.
const DateLayout = "2006-01-02"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var errBadRequestBody = errors.New("invalid request body")

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequestBody
	}
	return nil
}

// requestLog returns the request-scoped logger, falling back to log.
func requestLog(r *http.Request, log zerolog.Logger) zerolog.Logger {
	if l, ok := r.Context().Value(logger.LoggerKey).(zerolog.Logger); ok {
		return l
	}
	return log
}

// owner returns the authenticated user id. Routes behind middleware.Auth
// always have one.
func owner(r *http.Request) string {
	return middleware.OwnerFrom(r.Context())
}

// parseDate parses a YYYY-MM-DD value in loc. Empty input yields the zero
// time.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseDateRange reads start_date and end_date. The end date covers its
// whole day.
func parseDateRange(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	query := r.URL.Query()
	start, err := parseDate(query.Get("start_date"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("Invalid start_date format")
	}
	endStr := query.Get("end_date")
	end, err := parseDate(endStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("Invalid end_date format")
	}
	if len(endStr) == len(DateLayout) {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end_date is before start_date")
	}
	return start, end, nil
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeServiceError maps service and store errors to HTTP statuses.
// Unexpected errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, store.ErrDuplicateEmail):
		middleware.WriteError(w, http.StatusBadRequest, "Email already registered")
	case isValidationError(err):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("Failed to " + action)
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidKind,
		domain.ErrNegativeAmount,
		domain.ErrAmountTooLarge,
		domain.ErrUnknownCategory,
		domain.ErrNoteTooLong,
		auth.ErrMissingName,
		auth.ErrInvalidEmail,
		auth.ErrPasswordTooShort,
		auth.ErrPasswordTooLong,
		auth.ErrWrongPassword,
		errBadRequestBody,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

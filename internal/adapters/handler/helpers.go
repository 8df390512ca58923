package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/IANDYI/trends-service/internal/adapters/middleware"
	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/relvacode/iso8601"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds ingestion request bodies
const maxBodyBytes = 8 << 20

// requestID returns the ID assigned by the request logging middleware, or a new one
func requestID(r *http.Request) string {
	if id, ok := middleware.GetRequestID(r.Context()); ok {
		return id
	}
	return uuid.NewString()
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, domain.ErrInvalidTimezone),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrInvalidReading):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status of err; internal details are logged, not returned
func writeError(w http.ResponseWriter, logger logrus.FieldLogger, err error) int {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		http.Error(w, "internal server error", status)
		return status
	}
	logger.WithError(err).Debug("Request rejected")
	http.Error(w, err.Error(), status)
	return status
}

func writeJSON(w http.ResponseWriter, logger logrus.FieldLogger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

// logStructured logs one line per handled request with its metadata
func logStructured(logger logrus.FieldLogger, patientID string, method, endpoint string, statusCode int, duration time.Duration) {
	logger.WithFields(logrus.Fields{
		"patient_id":  patientID,
		"method":      method,
		"endpoint":    endpoint,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Handler completed")
}

// parsePatientID reads the {patient_id} path value
func parsePatientID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("patient_id"))
}

// parseTimePrefs reads timezone and timezone_aware query parameters.
// It returns nil when neither is present so the patient's timezone applies.
func parseTimePrefs(query url.Values) (*domain.TimePrefs, error) {
	timezone := query.Get("timezone")
	awareParam := query.Get("timezone_aware")
	if timezone == "" && awareParam == "" {
		return nil, nil
	}

	aware := timezone != ""
	if awareParam != "" {
		parsed, err := strconv.ParseBool(awareParam)
		if err != nil {
			return nil, errors.New("invalid timezone_aware parameter (must be true or false)")
		}
		aware = parsed
	}
	return &domain.TimePrefs{TimezoneAware: aware, TimezoneName: timezone}, nil
}

// parseTimestamp parses an ISO-8601 query parameter
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return iso8601.ParseString(value)
}

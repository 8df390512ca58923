package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// TrendsHandler handles HTTP requests for the trend chart
type TrendsHandler struct {
	trendsService ports.TrendsService
	logger        logrus.FieldLogger
}

// NewTrendsHandler creates a new trends handler
func NewTrendsHandler(trendsService ports.TrendsService, logger logrus.FieldLogger) *TrendsHandler {
	return &TrendsHandler{
		trendsService: trendsService,
		logger:        logger,
	}
}

// GetTrends handles GET /patients/{patient_id}/trends
// Query: start, end (ISO-8601, required), timezone, timezone_aware, sort=time
func (h *TrendsHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := h.logger.WithField("request_id", requestID(r))

	patientID, err := parsePatientID(r)
	if err != nil {
		http.Error(w, "invalid patient ID", http.StatusBadRequest)
		return
	}
	logger = logger.WithField("patient_id", patientID.String())

	query := r.URL.Query()
	start, err := parseTimestamp(query.Get("start"))
	if err != nil {
		http.Error(w, "invalid start parameter (must be ISO-8601)", http.StatusBadRequest)
		return
	}
	end, err := parseTimestamp(query.Get("end"))
	if err != nil {
		http.Error(w, "invalid end parameter (must be ISO-8601)", http.StatusBadRequest)
		return
	}

	prefs, err := parseTimePrefs(query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sortByTime := false
	switch sortParam := query.Get("sort"); sortParam {
	case "", "seen":
	case "time":
		sortByTime = true
	default:
		http.Error(w, "invalid sort parameter (must be time or seen)", http.StatusBadRequest)
		return
	}

	slices, err := h.trendsService.GetTrendSlices(r.Context(), patientID, ports.TrendsQuery{
		Start:      start,
		End:        end,
		TimePrefs:  prefs,
		SortByTime: sortByTime,
	})
	if err != nil {
		status := writeError(w, logger, err)
		logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/trends", status, time.Since(startTime))
		return
	}

	w.Header().Set("X-Slice-Count", strconv.Itoa(len(slices)))
	writeJSON(w, logger, http.StatusOK, slices)
	logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/trends", http.StatusOK, time.Since(startTime))
}

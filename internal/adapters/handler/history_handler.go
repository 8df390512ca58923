package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
	"github.com/IANDYI/trends-service/internal/core/format"
	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// HistoryHandler handles HTTP requests for the parameter history table
type HistoryHandler struct {
	historyService ports.ParameterHistoryService
	logger         logrus.FieldLogger
}

// NewHistoryHandler creates a new parameter history handler
func NewHistoryHandler(historyService ports.ParameterHistoryService, logger logrus.FieldLogger) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// HistoryRow is a history table row with display-ready values
type HistoryRow struct {
	domain.HistorizedParameter
	FormattedValue         string `json:"formattedValue,omitempty"`
	FormattedPreviousValue string `json:"formattedPreviousValue,omitempty"`
}

// newHistoryRow formats the values of a data row; separator rows stay bare
func newHistoryRow(p domain.HistorizedParameter) HistoryRow {
	row := HistoryRow{HistorizedParameter: p}
	if p.IsGroupedParameterHeader {
		return row
	}
	row.FormattedValue = format.ParameterValue(domain.Text(p.Value), p.Unit)
	if p.PreviousValue != "" {
		row.FormattedPreviousValue = format.ParameterValue(domain.Text(p.PreviousValue), p.PreviousUnit)
	}
	return row
}

// GetHistory handles GET /patients/{patient_id}/parameters/history
// Query: timezone, timezone_aware
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := h.logger.WithField("request_id", requestID(r))

	patientID, err := parsePatientID(r)
	if err != nil {
		http.Error(w, "invalid patient ID", http.StatusBadRequest)
		return
	}
	logger = logger.WithField("patient_id", patientID.String())

	prefs, err := parseTimePrefs(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params, err := h.historyService.GetHistory(r.Context(), patientID, prefs)
	if err != nil {
		status := writeError(w, logger, err)
		logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/parameters/history", status, time.Since(startTime))
		return
	}

	rows := make([]HistoryRow, len(params))
	for i, p := range params {
		rows[i] = newHistoryRow(p)
	}

	writeJSON(w, logger, http.StatusOK, rows)
	logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/parameters/history", http.StatusOK, time.Since(startTime))
}

// IngestChanges handles POST /patients/{patient_id}/parameters/history
// Body: {"changeDate": "...", "parameters": [...]}
func (h *HistoryHandler) IngestChanges(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := h.logger.WithField("request_id", requestID(r))

	patientID, err := parsePatientID(r)
	if err != nil {
		http.Error(w, "invalid patient ID", http.StatusBadRequest)
		return
	}
	logger = logger.WithField("patient_id", patientID.String())

	var group domain.ChangeDateParameterGroup
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&group); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.historyService.IngestChanges(r.Context(), patientID, group); err != nil {
		status := writeError(w, logger, err)
		logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/parameters/history", status, time.Since(startTime))
		return
	}

	writeJSON(w, logger, http.StatusCreated, map[string]interface{}{
		"changeDate": group.ChangeDate,
		"stored":     len(group.Parameters),
	})
	logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/parameters/history", http.StatusCreated, time.Since(startTime))
}

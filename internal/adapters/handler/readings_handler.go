package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// ReadingsHandler handles HTTP requests for CBG ingestion
type ReadingsHandler struct {
	readingsService ports.ReadingsService
	logger          logrus.FieldLogger
}

// NewReadingsHandler creates a new readings handler
func NewReadingsHandler(readingsService ports.ReadingsService, logger logrus.FieldLogger) *ReadingsHandler {
	return &ReadingsHandler{
		readingsService: readingsService,
		logger:          logger,
	}
}

// IngestReadingsRequest represents the request body for ingesting readings
type IngestReadingsRequest struct {
	Readings []ports.ReadingInput `json:"readings"`
}

// IngestReadings handles POST /patients/{patient_id}/readings
func (h *ReadingsHandler) IngestReadings(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := h.logger.WithField("request_id", requestID(r))

	patientID, err := parsePatientID(r)
	if err != nil {
		http.Error(w, "invalid patient ID", http.StatusBadRequest)
		return
	}
	logger = logger.WithField("patient_id", patientID.String())

	var req IngestReadingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stored, err := h.readingsService.IngestReadings(r.Context(), patientID, req.Readings)
	if err != nil {
		status := writeError(w, logger, err)
		logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/readings", status, time.Since(startTime))
		return
	}

	writeJSON(w, logger, http.StatusCreated, map[string]int{"stored": stored})
	logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}/readings", http.StatusCreated, time.Since(startTime))
}

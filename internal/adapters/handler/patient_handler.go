package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/IANDYI/trends-service/internal/core/ports"
	"github.com/sirupsen/logrus"
)

// PatientHandler handles HTTP requests for patient operations
type PatientHandler struct {
	patientService ports.PatientService
	logger         logrus.FieldLogger
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(patientService ports.PatientService, logger logrus.FieldLogger) *PatientHandler {
	return &PatientHandler{
		patientService: patientService,
		logger:         logger,
	}
}

// CreatePatient handles POST /patients
func (h *PatientHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := h.logger.WithField("request_id", requestID(r))

	var req ports.RegisterPatientRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	patient, err := h.patientService.RegisterPatient(r.Context(), req)
	if err != nil {
		status := writeError(w, logger, err)
		logStructured(logger, "", r.Method, "/patients", status, time.Since(startTime))
		return
	}

	writeJSON(w, logger, http.StatusCreated, patient)
	logStructured(logger, patient.ID.String(), r.Method, "/patients", http.StatusCreated, time.Since(startTime))
}

// GetPatient handles GET /patients/{patient_id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := h.logger.WithField("request_id", requestID(r))

	patientID, err := parsePatientID(r)
	if err != nil {
		http.Error(w, "invalid patient ID", http.StatusBadRequest)
		return
	}

	patient, err := h.patientService.GetPatient(r.Context(), patientID)
	if err != nil {
		status := writeError(w, logger, err)
		logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}", status, time.Since(startTime))
		return
	}

	writeJSON(w, logger, http.StatusOK, patient)
	logStructured(logger, patientID.String(), r.Method, "/patients/{patient_id}", http.StatusOK, time.Since(startTime))
}

package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/auth"
	"github.com/dentistez/clinic-api/internal/payos"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// Handler exposes payment operations over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a payment handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type depositRequest struct {
	DoctorID        string `json:"doctor_id"`
	ServiceID       string `json:"service_id"`
	ServiceOptionID string `json:"service_option_id"`
	ClinicID        string `json:"clinic_id"`
	TimeSlotID      string `json:"timeslot_id"`
	Note            string `json:"note"`
	FileURL         string `json:"file_url,omitempty"`
	FileName        string `json:"file_name,omitempty"`
	Amount          int64  `json:"amount"`
	Description     string `json:"description"`
}

// CreateDeposit handles POST /api/payments/deposit (patient).
func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	patientID, err := uuid.Parse(actor.PatientID)
	if err != nil {
		writeError(w, http.StatusForbidden, "patient identity required")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := DepositRequest{
		PatientID:   patientID,
		Note:        req.Note,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		Amount:      req.Amount,
		Description: req.Description,
	}
	ids := map[string]*uuid.UUID{
		"doctor_id":         &svcReq.DoctorID,
		"service_id":        &svcReq.ServiceID,
		"service_option_id": &svcReq.ServiceOptionID,
		"clinic_id":         &svcReq.ClinicID,
		"timeslot_id":       &svcReq.TimeSlotID,
	}
	raw := map[string]string{
		"doctor_id":         req.DoctorID,
		"service_id":        req.ServiceID,
		"service_option_id": req.ServiceOptionID,
		"clinic_id":         req.ClinicID,
		"timeslot_id":       req.TimeSlotID,
	}
	for field, dest := range ids {
		id, err := uuid.Parse(raw[field])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+field)
			return
		}
		*dest = id
	}
	if createdBy, err := uuid.Parse(actor.UserID); err == nil {
		svcReq.CreatedBy = createdBy
	}

	checkout, err := h.svc.CreateDeposit(r.Context(), svcReq)
	if err != nil {
		h.respondError(w, err, "deposit checkout failed")
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

type finalRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// CreateFinalOnline handles POST /api/payments/{id}/final/online (staff).
func (h *Handler) CreateFinalOnline(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req finalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	checkout, err := h.svc.CreateFinalOnline(r.Context(), id, FinalRequest(req))
	if err != nil {
		h.respondError(w, err, "final online payment failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// CreateFinalCash handles POST /api/payments/{id}/final/cash (staff).
func (h *Handler) CreateFinalCash(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req finalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.CreateFinalCash(r.Context(), id, FinalRequest(req))
	if err != nil {
		h.respondError(w, err, "final cash payment failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// DepositTotal handles GET /api/payments/deposit-total/{id}.
func (h *Handler) DepositTotal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	total, err := h.svc.DepositTotal(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "deposit total failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment_id": id,
		"deposit_total":  total,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, appointment.ErrNotFound),
		errors.Is(err, timeslot.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrAppointmentFullyPaid),
		errors.Is(err, appointment.ErrInvalidTransition),
		errors.Is(err, timeslot.ErrTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrReExamNotPayable),
		errors.Is(err, ErrSlotTooSoon):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payos.ErrGateway):
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

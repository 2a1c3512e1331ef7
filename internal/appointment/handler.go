package appointment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/auth"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// Handler exposes appointment operations over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointment handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type editRequest struct {
	TimeSlotID string  `json:"timeslot_id,omitempty"`
	Note       *string `json:"note,omitempty"`
}

// Edit handles PUT /api/appointments/{id}.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edit := EditRequest{Note: req.Note}
	if req.TimeSlotID != "" {
		slotID, err := uuid.Parse(req.TimeSlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeslot_id")
			return
		}
		edit.TimeSlotID = &slotID
	}

	appt, err := h.svc.Edit(r.Context(), id, actor, edit)
	if err != nil {
		h.respondError(w, err, "edit appointment failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Complete handles PUT /api/appointments/{id}/complete (staff).
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Complete(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "complete appointment failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Cancel handles PUT /api/appointments/{id}/cancel (staff).
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "cancel appointment failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type cancelRefundRequest struct {
	RefundAccount string `json:"refund_account"`
}

// CancelWithRefund handles PUT /api/appointments/{id}/cancel-refund (patient).
func (h *Handler) CancelWithRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	var req cancelRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.svc.CancelWithRefund(r.Context(), id, actor, req.RefundAccount)
	if err != nil {
		h.respondError(w, err, "cancel with refund failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type reExamRequest struct {
	TimeSlotID      string `json:"timeslot_id"`
	Note            string `json:"note"`
	ServiceID       string `json:"service_id,omitempty"`
	ServiceOptionID string `json:"service_option_id,omitempty"`
}

// CreateReExamination handles POST /api/appointments/{id}/re-examination.
func (h *Handler) CreateReExamination(w http.ResponseWriter, r *http.Request) {
	rootID, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())

	var req reExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	slotID, err := uuid.Parse(req.TimeSlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timeslot_id")
		return
	}

	svcReq := ReExamRequest{TimeSlotID: slotID, Note: req.Note}
	if req.ServiceID != "" {
		sid, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid service_id")
			return
		}
		svcReq.ServiceID = &sid
	}
	if req.ServiceOptionID != "" {
		oid, err := uuid.Parse(req.ServiceOptionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid service_option_id")
			return
		}
		svcReq.ServiceOptionID = &oid
	}
	if createdBy, err := uuid.Parse(actor.UserID); err == nil {
		svcReq.CreatedBy = createdBy
	}

	appt, err := h.svc.CreateReExamination(r.Context(), rootID, svcReq)
	if err != nil {
		h.respondError(w, err, "create re-examination failed", "root_id", rootID)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// ListReExaminations handles GET /api/appointments/{id}/re-examinations.
func (h *Handler) ListReExaminations(w http.ResponseWriter, r *http.Request) {
	rootID, ok := parseID(w, r)
	if !ok {
		return
	}
	root, children, err := h.svc.ReExaminations(r.Context(), rootID)
	if err != nil {
		h.respondError(w, err, "list re-examinations failed", "root_id", rootID)
		return
	}
	if children == nil {
		children = []Detail{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"root":            root,
		"re_examinations": children,
	})
}

// Get handles GET /api/appointments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.Detail(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get appointment failed", "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListStaff handles GET /api/staff/appointments.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := StaffListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}

	result, err := h.svc.ListStaff(r.Context(), filter)
	if err != nil {
		h.respondError(w, err, "staff listing failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, timeslot.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrTerminalState),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrReExamSameDay),
		errors.Is(err, timeslot.ErrTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrEditTooLate),
		errors.Is(err, ErrReExamTooSoon),
		errors.Is(err, ErrReExamDoctorMismatch),
		errors.Is(err, ErrRootNotEligible),
		errors.Is(err, ErrRefundAccountRequired),
		errors.Is(err, ErrNoteTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
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

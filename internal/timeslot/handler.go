package timeslot

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/pkg/logging"
)

// Handler serves slot listing for the booking UI and bulk schedule creation.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a timeslot handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

type createSlotsRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"` // yyyy-mm-dd
	Slots    []struct {
		SlotIndex int    `json:"slot_index"`
		StartTime string `json:"start_time"` // RFC3339
		EndTime   string `json:"end_time"`
	} `json:"slots"`
}

// CreateBatch handles POST /api/staff/timeslots.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor_id")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected yyyy-mm-dd")
		return
	}
	if len(req.Slots) == 0 {
		writeError(w, http.StatusBadRequest, "slots are required")
		return
	}

	slots := make([]TimeSlot, 0, len(req.Slots))
	for _, in := range req.Slots {
		start, err := time.Parse(time.RFC3339, in.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
		end, err := time.Parse(time.RFC3339, in.EndTime)
		if err != nil || !end.After(start) {
			writeError(w, http.StatusBadRequest, "invalid end_time")
			return
		}
		slots = append(slots, TimeSlot{
			DoctorID:  doctorID,
			Date:      date,
			SlotIndex: in.SlotIndex,
			StartTime: start,
			EndTime:   end,
			Status:    StatusActive,
		})
	}

	if err := h.repo.CreateBatch(r.Context(), slots); err != nil {
		h.logger.Error("failed to create timeslots", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to create timeslots")
		return
	}

	h.logger.Info("timeslots created", "doctor_id", doctorID, "date", req.Date, "count", len(slots))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int{"created": len(slots)})
}

// List handles GET /api/timeslots?doctorId=&date=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(r.URL.Query().Get("doctorId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctorId")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected yyyy-mm-dd")
		return
	}

	slots, err := h.repo.ListByDoctorDate(r.Context(), doctorID, date)
	if err != nil {
		h.logger.Error("failed to list timeslots", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to list timeslots")
		return
	}
	if slots == nil {
		slots = []TimeSlot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": slots, "count": len(slots)})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

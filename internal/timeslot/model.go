package timeslot

import (
	"time"

	"github.com/google/uuid"
)

// Status of a slot within a doctor's calendar.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// TimeSlot is one bookable calendar unit of a doctor. Unique per
// (doctor, date, slot index). IsAvailable=false means exactly one
// non-cancelled appointment holds the slot.
type TimeSlot struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        time.Time `json:"date"`
	SlotIndex   int       `json:"slot_index"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Bookable reports whether the slot can accept a new appointment.
func (s *TimeSlot) Bookable() bool {
	return s.Status == StatusActive && s.IsAvailable
}

// SameDay reports whether two instants fall on the same calendar day (UTC).
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

package timeslot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the slot does not exist.
	ErrNotFound = errors.New("timeslot not found")
	// ErrTaken is returned when a conditional claim affects zero rows:
	// the slot was consumed between check and claim, or is cancelled.
	ErrTaken = errors.New("timeslot is no longer available")
	// ErrNotClaimed is returned when releasing a slot that is not held.
	ErrNotClaimed = errors.New("timeslot is not claimed")
)

// Repository contains the timeslot persistence operations.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)

	// Claim atomically flips is_available false, failing with ErrTaken
	// unless the slot is active and still available.
	Claim(ctx context.Context, id uuid.UUID) error

	// Release flips is_available back to true.
	Release(ctx context.Context, id uuid.UUID) error

	CreateBatch(ctx context.Context, slots []TimeSlot) error
	ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error)
}

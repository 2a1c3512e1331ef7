package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all appointment persistence needed by the services.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)

	// CreateWithSlot claims the timeslot and inserts the appointment in one
	// transaction. Fails with timeslot.ErrTaken if the claim affects no rows.
	CreateWithSlot(ctx context.Context, appt *Appointment) error

	// UpdateStatus performs a compare-and-set transition: the row is updated
	// only while its current status is one of allowedFrom.
	UpdateStatus(ctx context.Context, id uuid.UUID, to string, allowedFrom ...string) (*Appointment, error)

	UpdateNote(ctx context.Context, id uuid.UUID, note string) error

	// ChangeSlot releases the old slot, claims the new one and repoints the
	// appointment, all in one transaction. Either all three apply or none.
	ChangeSlot(ctx context.Context, id, oldSlot, newSlot uuid.UUID, note *string) error

	// Cancel sets status cancelled (CAS on allowedFrom), stores the refund
	// account when given, and releases the slot when release is true. One
	// transaction.
	Cancel(ctx context.Context, id, slotID uuid.UUID, refundAccount *string, release bool, allowedFrom ...string) (*Appointment, error)

	ListReExaminations(ctx context.Context, rootID uuid.UUID) ([]Detail, error)
	HasReExamOnDay(ctx context.Context, rootID uuid.UUID, day time.Time) (bool, error)

	ListStaff(ctx context.Context, filter StaffListFilter) (*StaffPage, error)

	AddFile(ctx context.Context, f *File) error
}

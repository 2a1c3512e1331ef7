// Package booking turns confirmed gateway payments into durable bookings:
// deposit callbacks promote into appointments, final callbacks settle them.
package booking

import (
	"context"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/notify"
	"github.com/dentistez/clinic-api/internal/payment"
)

// Store applies a confirmed payment as one atomic unit. Implementations
// must order side effects so the payment is marked paid last.
type Store interface {
	// PromoteDeposit claims the slot from the deposit's meta, creates the
	// appointment (and file, if any), links and settles the payment.
	PromoteDeposit(ctx context.Context, p *payment.Payment) (*appointment.Appointment, error)
	// CompleteFinal flips the linked appointment to fully_paid and settles
	// the payment.
	CompleteFinal(ctx context.Context, p *payment.Payment) (*appointment.Appointment, error)
	// BookingInfo resolves the display fields for patient notifications.
	BookingInfo(ctx context.Context, appointmentID uuid.UUID) (notify.BookingInfo, error)
}

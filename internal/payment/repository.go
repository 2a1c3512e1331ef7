package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the payment persistence contract. MarkPaid and MarkCanceled
// are conditional on the pending state so a replayed gateway callback
// degrades to ErrAlreadyProcessed instead of double-applying.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error)
	MarkPaid(ctx context.Context, id uuid.UUID) error
	MarkCanceled(ctx context.Context, id uuid.UUID) error
	SetPayLink(ctx context.Context, id uuid.UUID, payURL, qrCode string) error
	DepositTotal(ctx context.Context, appointmentID uuid.UUID) (int64, error)
}

package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/appointment"
)

// PgFinalizer settles cash finals in one database transaction: the
// appointment's fully_paid transition and the paid payment row commit or
// roll back together.
type PgFinalizer struct {
	db appointment.DB
}

// NewPgFinalizer creates a transaction-backed cash finalizer.
func NewPgFinalizer(db appointment.DB) *PgFinalizer {
	if db == nil {
		panic("payment: pgx pool required")
	}
	return &PgFinalizer{db: db}
}

// FinalizeCash implements CashFinalizer.
func (f *PgFinalizer) FinalizeCash(ctx context.Context, appointmentID uuid.UUID, p *Payment) error {
	tx, err := f.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("payment: begin cash final: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := appointment.UpdateStatusTx(ctx, tx, appointmentID, appointment.StatusFullyPaid,
		appointment.StatusConfirmed, appointment.StatusCompleted); err != nil {
		return err
	}
	if err := CreateTx(ctx, tx, p); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("payment: commit cash final: %w", err)
	}
	return nil
}

// MemFinalizer is the in-memory counterpart for tests.
type MemFinalizer struct {
	Appointments *appointment.InMemoryRepository
	Payments     *InMemoryRepository
}

// FinalizeCash implements CashFinalizer.
func (f *MemFinalizer) FinalizeCash(ctx context.Context, appointmentID uuid.UUID, p *Payment) error {
	if _, err := f.Appointments.UpdateStatus(ctx, appointmentID, appointment.StatusFullyPaid,
		appointment.StatusConfirmed, appointment.StatusCompleted); err != nil {
		return err
	}
	return f.Payments.Create(ctx, p)
}

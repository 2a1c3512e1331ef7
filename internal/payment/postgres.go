package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentistez/clinic-api/internal/timeslot"
)

// PostgresRepository stores payments in the relational database. Meta is a
// jsonb column so the deposit booking payload survives process restarts.
type PostgresRepository struct {
	db timeslot.Querier
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db timeslot.Querier) *PostgresRepository {
	if db == nil {
		panic("payment: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

const paymentColumns = `id, amount, type, payment_method, status, order_code,
	description, pay_url, qr_code, appointment_id, meta, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var meta []byte
	err := row.Scan(
		&p.ID,
		&p.Amount,
		&p.Type,
		&p.Method,
		&p.Status,
		&p.OrderCode,
		&p.Description,
		&p.PayURL,
		&p.QRCode,
		&p.AppointmentID,
		&meta,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("payment: scan: %w", err)
	}
	if len(meta) > 0 {
		p.Meta = &Meta{}
		if err := json.Unmarshal(meta, p.Meta); err != nil {
			return nil, fmt.Errorf("payment: decode meta: %w", err)
		}
	}
	return &p, nil
}

// Create inserts a payment row.
func (r *PostgresRepository) Create(ctx context.Context, p *Payment) error {
	return CreateTx(ctx, r.db, p)
}

// CreateTx inserts a payment inside the caller's transaction.
func CreateTx(ctx context.Context, q timeslot.Querier, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	var meta []byte
	if p.Meta != nil {
		var err error
		if meta, err = json.Marshal(p.Meta); err != nil {
			return fmt.Errorf("payment: encode meta: %w", err)
		}
	}
	row := q.QueryRow(ctx, `
		INSERT INTO payments (id, amount, type, payment_method, status, order_code,
			description, pay_url, qr_code, appointment_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, p.ID, p.Amount, p.Type, p.Method, p.Status, p.OrderCode,
		p.Description, p.PayURL, p.QRCode, p.AppointmentID, meta)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("payment: insert: %w", err)
	}
	return nil
}

// GetByID fetches a payment.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// GetByOrderCode resolves the gateway's order code to a payment.
func (r *PostgresRepository) GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_code = $1`, orderCode)
	return scanPayment(row)
}

// MarkPaid flips pending to paid.
func (r *PostgresRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return MarkPaidTx(ctx, r.db, id)
}

// MarkPaidTx flips pending to paid inside the caller's transaction. Zero
// affected rows means the payment already left pending.
func MarkPaidTx(ctx context.Context, q timeslot.Querier, id uuid.UUID) error {
	return transitionTx(ctx, q, id, StatusPaid)
}

// MarkCanceled flips pending to canceled.
func (r *PostgresRepository) MarkCanceled(ctx context.Context, id uuid.UUID) error {
	return transitionTx(ctx, r.db, id, StatusCanceled)
}

func transitionTx(ctx context.Context, q timeslot.Querier, id uuid.UUID, to string) error {
	tag, err := q.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
	`, id, to, StatusPending)
	if err != nil {
		return fmt.Errorf("payment: transition to %s: %w", to, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("payment: transition existence check: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// SetPayLink stores the gateway checkout URL and QR payload.
func (r *PostgresRepository) SetPayLink(ctx context.Context, id uuid.UUID, payURL, qrCode string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments SET pay_url = $2, qr_code = $3, updated_at = now() WHERE id = $1
	`, id, payURL, qrCode)
	if err != nil {
		return fmt.Errorf("payment: set pay link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAppointmentTx links a promoted deposit to its appointment inside the
// caller's transaction.
func SetAppointmentTx(ctx context.Context, q timeslot.Querier, id, appointmentID uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE payments SET appointment_id = $2, updated_at = now() WHERE id = $1
	`, id, appointmentID)
	if err != nil {
		return fmt.Errorf("payment: set appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DepositTotal sums paid deposit payments for an appointment.
func (r *PostgresRepository) DepositTotal(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE appointment_id = $1 AND type = $2 AND status = $3
	`, appointmentID, TypeDeposit, StatusPaid).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("payment: deposit total: %w", err)
	}
	return total, nil
}

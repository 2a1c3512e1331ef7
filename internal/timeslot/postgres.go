package timeslot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx executable by both a pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores timeslots in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("timeslot: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

const slotColumns = `id, doctor_id, date, slot_index, start_time, end_time, is_available, status, created_at, updated_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.SlotIndex,
		&s.StartTime,
		&s.EndTime,
		&s.IsAvailable,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("timeslot: scan: %w", err)
	}
	return &s, nil
}

// GetByID fetches a slot.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, id)
	return scanSlot(row)
}

// Claim flips the availability flag via a conditional update.
func (r *PostgresRepository) Claim(ctx context.Context, id uuid.UUID) error {
	return ClaimTx(ctx, r.db, id)
}

// Release restores the availability flag.
func (r *PostgresRepository) Release(ctx context.Context, id uuid.UUID) error {
	return ReleaseTx(ctx, r.db, id)
}

// ClaimTx claims a slot inside the caller's transaction. The WHERE clause
// carries the whole check-then-claim: zero affected rows means the slot was
// consumed concurrently, is cancelled, or does not exist.
func ClaimTx(ctx context.Context, q Querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE time_slots
		SET is_available = false, updated_at = now()
		WHERE id = $1 AND is_available = true AND status = $2
	`, id, StatusActive)
	if err != nil {
		return fmt.Errorf("timeslot: claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM time_slots WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("timeslot: claim existence check: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrTaken
	}
	return nil
}

// ReleaseTx frees a claimed slot inside the caller's transaction.
func ReleaseTx(ctx context.Context, q Querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `
		UPDATE time_slots
		SET is_available = true, updated_at = now()
		WHERE id = $1 AND is_available = false
	`, id)
	if err != nil {
		return fmt.Errorf("timeslot: release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM time_slots WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("timeslot: release existence check: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrNotClaimed
	}
	return nil
}

// CreateBatch inserts a set of generated slots, skipping duplicates so a
// schedule can be regenerated without clobbering existing bookings.
func (r *PostgresRepository) CreateBatch(ctx context.Context, slots []TimeSlot) error {
	for i := range slots {
		s := &slots[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.Status == "" {
			s.Status = StatusActive
		}
		_, err := r.db.Exec(ctx, `
			INSERT INTO time_slots (id, doctor_id, date, slot_index, start_time, end_time, is_available, status)
			VALUES ($1, $2, $3, $4, $5, $6, true, $7)
			ON CONFLICT (doctor_id, date, slot_index) DO NOTHING
		`, s.ID, s.DoctorID, s.Date, s.SlotIndex, s.StartTime, s.EndTime, s.Status)
		if err != nil {
			return fmt.Errorf("timeslot: insert batch: %w", err)
		}
	}
	return nil
}

// ListByDoctorDate returns a doctor's slots for one day ordered by index.
func (r *PostgresRepository) ListByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY slot_index
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("timeslot: list: %w", err)
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timeslot: list rows: %w", err)
	}
	return result, nil
}

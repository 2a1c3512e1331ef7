package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dentistez/clinic-api/internal/timeslot"
)

// DB is the pgx surface the repository needs: plain queries plus the
// ability to open transactions. Satisfied by *pgxpool.Pool and pgxmock.
type DB interface {
	timeslot.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("appointment: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const apptColumns = `id, patient_id, doctor_id, service_id, service_option_id, clinic_id,
	time_slot_id, note, created_by, status, re_examination_of, refund_account, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ServiceID,
		&a.ServiceOptionID,
		&a.ClinicID,
		&a.TimeSlotID,
		&a.Note,
		&a.CreatedBy,
		&a.Status,
		&a.ReExaminationOf,
		&a.RefundAccount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointment: scan: %w", err)
	}
	return &a, nil
}

// GetByID fetches an appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

const detailQuery = `
	SELECT a.id, a.patient_id, a.doctor_id, a.service_id, a.service_option_id, a.clinic_id,
	       a.time_slot_id, a.note, a.created_by, a.status, a.re_examination_of, a.refund_account,
	       a.created_at, a.updated_at,
	       p.name, d.name, s.name, so.name, c.name,
	       ts.date, ts.start_time, ts.end_time
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN services s ON s.id = a.service_id
	JOIN service_options so ON so.id = a.service_option_id
	JOIN clinics c ON c.id = a.clinic_id
	JOIN time_slots ts ON ts.id = a.time_slot_id`

func scanDetail(row pgx.Row, extra ...any) (*Detail, error) {
	var d Detail
	dest := []any{
		&d.ID, &d.PatientID, &d.DoctorID, &d.ServiceID, &d.ServiceOptionID, &d.ClinicID,
		&d.TimeSlotID, &d.Note, &d.CreatedBy, &d.Status, &d.ReExaminationOf, &d.RefundAccount,
		&d.CreatedAt, &d.UpdatedAt,
		&d.PatientName, &d.DoctorName, &d.ServiceName, &d.OptionName, &d.ClinicName,
		&d.SlotDate, &d.SlotStartTime, &d.SlotEndTime,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointment: scan detail: %w", err)
	}
	return &d, nil
}

// GetDetail fetches an appointment with joined display fields.
func (r *PostgresRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.db.QueryRow(ctx, detailQuery+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

// CreateWithSlot claims the slot and inserts the appointment atomically.
func (r *PostgresRepository) CreateWithSlot(ctx context.Context, appt *Appointment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointment: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := timeslot.ClaimTx(ctx, tx, appt.TimeSlotID); err != nil {
		return err
	}
	if err := insertTx(ctx, tx, appt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointment: commit create: %w", err)
	}
	return nil
}

func insertTx(ctx context.Context, q timeslot.Querier, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusConfirmed
	}
	row := q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, service_id, service_option_id,
			clinic_id, time_slot_id, note, created_by, status, re_examination_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.ServiceID, appt.ServiceOptionID,
		appt.ClinicID, appt.TimeSlotID, appt.Note, appt.CreatedBy, appt.Status, appt.ReExaminationOf)
	if err := row.Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return fmt.Errorf("appointment: insert: %w", err)
	}
	return nil
}

// InsertTx exposes the raw insert for orchestrators that manage their own
// transaction (deposit promotion).
func InsertTx(ctx context.Context, q timeslot.Querier, appt *Appointment) error {
	return insertTx(ctx, q, appt)
}

// UpdateStatus performs a compare-and-set transition.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to string, allowedFrom ...string) (*Appointment, error) {
	return updateStatusTx(ctx, r.db, id, to, allowedFrom...)
}

func updateStatusTx(ctx context.Context, q timeslot.Querier, id uuid.UUID, to string, allowedFrom ...string) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+apptColumns+`
	`, id, to, allowedFrom)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Row exists but in a disallowed state, or is genuinely missing.
			var exists bool
			if checkErr := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); checkErr == nil && exists {
				return nil, ErrInvalidTransition
			}
			return nil, ErrNotFound
		}
		return nil, err
	}
	return appt, nil
}

// UpdateStatusTx exposes the CAS transition for orchestrator transactions.
func UpdateStatusTx(ctx context.Context, q timeslot.Querier, id uuid.UUID, to string, allowedFrom ...string) (*Appointment, error) {
	return updateStatusTx(ctx, q, id, to, allowedFrom...)
}

// UpdateNote persists a sanitized note.
func (r *PostgresRepository) UpdateNote(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET note = $2, updated_at = now() WHERE id = $1
	`, id, note)
	if err != nil {
		return fmt.Errorf("appointment: update note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChangeSlot swaps the appointment onto a new timeslot atomically: release
// the old slot, conditionally claim the new one, update the row. Any failure
// rolls back all three.
func (r *PostgresRepository) ChangeSlot(ctx context.Context, id, oldSlot, newSlot uuid.UUID, note *string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointment: begin change slot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := timeslot.ReleaseTx(ctx, tx, oldSlot); err != nil && !errors.Is(err, timeslot.ErrNotClaimed) {
		return err
	}
	if err := timeslot.ClaimTx(ctx, tx, newSlot); err != nil {
		return err
	}

	var tag string
	if note != nil {
		tag = `UPDATE appointments SET time_slot_id = $2, note = $3, updated_at = now() WHERE id = $1`
		res, err := tx.Exec(ctx, tag, id, newSlot, *note)
		if err != nil {
			return fmt.Errorf("appointment: change slot: %w", err)
		}
		if res.RowsAffected() == 0 {
			return ErrNotFound
		}
	} else {
		tag = `UPDATE appointments SET time_slot_id = $2, updated_at = now() WHERE id = $1`
		res, err := tx.Exec(ctx, tag, id, newSlot)
		if err != nil {
			return fmt.Errorf("appointment: change slot: %w", err)
		}
		if res.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointment: commit change slot: %w", err)
	}
	return nil
}

// Cancel flips the appointment to cancelled, optionally storing a refund
// account and releasing the slot, in one transaction.
func (r *PostgresRepository) Cancel(ctx context.Context, id, slotID uuid.UUID, refundAccount *string, release bool, allowedFrom ...string) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment: begin cancel: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := updateStatusTx(ctx, tx, id, StatusCancelled, allowedFrom...)
	if err != nil {
		return nil, err
	}
	if refundAccount != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE appointments SET refund_account = $2 WHERE id = $1
		`, id, *refundAccount); err != nil {
			return nil, fmt.Errorf("appointment: store refund account: %w", err)
		}
		appt.RefundAccount = refundAccount
	}
	if release {
		if err := timeslot.ReleaseTx(ctx, tx, slotID); err != nil && !errors.Is(err, timeslot.ErrNotClaimed) {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointment: commit cancel: %w", err)
	}
	return appt, nil
}

// ListReExaminations returns every appointment derived from the root.
func (r *PostgresRepository) ListReExaminations(ctx context.Context, rootID uuid.UUID) ([]Detail, error) {
	rows, err := r.db.Query(ctx, detailQuery+`
		WHERE a.re_examination_of = $1
		ORDER BY ts.date, ts.start_time
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("appointment: list re-examinations: %w", err)
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment: list re-examinations rows: %w", err)
	}
	return result, nil
}

// HasReExamOnDay reports whether the root already has a non-cancelled
// re-examination whose slot falls on the given calendar day.
func (r *PostgresRepository) HasReExamOnDay(ctx context.Context, rootID uuid.UUID, day time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments a
			JOIN time_slots ts ON ts.id = a.time_slot_id
			WHERE a.re_examination_of = $1
			  AND a.status <> $2
			  AND ts.date = $3
		)
	`, rootID, StatusCancelled, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointment: re-exam day check: %w", err)
	}
	return exists, nil
}

// ListStaff returns one page of the joined staff listing with multi-field
// search. Search terms match patient/doctor/service/option names; terms that
// parse as a date in any supported form match the slot date instead.
func (r *PostgresRepository) ListStaff(ctx context.Context, filter StaffListFilter) (*StaffPage, error) {
	filter.Normalize()

	where := []string{"1=1"}
	args := []any{}
	n := 1

	if filter.Status != "" {
		where = append(where, fmt.Sprintf("a.status = $%d", n))
		args = append(args, filter.Status)
		n++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		if day, ok := ParseSearchDate(search); ok {
			where = append(where, fmt.Sprintf("ts.date = $%d", n))
			args = append(args, day)
			n++
		} else {
			like := "%" + search + "%"
			where = append(where, fmt.Sprintf(
				"(p.name ILIKE $%d OR d.name ILIKE $%d OR s.name ILIKE $%d OR so.name ILIKE $%d)", n, n, n, n))
			args = append(args, like)
			n++
		}
	}

	query := detailQuery + `, count(*) OVER() AS total
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY ts.date DESC, ts.start_time DESC
	` + fmt.Sprintf("LIMIT $%d OFFSET $%d", n, n+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointment: staff listing: %w", err)
	}
	defer rows.Close()

	page := &StaffPage{Data: []Detail{}, Page: filter.Page, Limit: filter.Limit}
	for rows.Next() {
		var total int
		d, err := scanDetail(rows, &total)
		if err != nil {
			return nil, err
		}
		page.Data = append(page.Data, *d)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment: staff listing rows: %w", err)
	}
	return page, nil
}

// AddFile attaches an uploaded file to an appointment.
func (r *PostgresRepository) AddFile(ctx context.Context, f *File) error {
	return AddFileTx(ctx, r.db, f)
}

// AddFileTx inserts an appointment file inside the caller's transaction.
func AddFileTx(ctx context.Context, q timeslot.Querier, f *File) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.FileType == "" {
		f.FileType = inferFileType(f.FileName)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO appointment_files (id, appointment_id, file_url, file_name, file_type)
		VALUES ($1, $2, $3, $4, $5)
	`, f.ID, f.AppointmentID, f.FileURL, f.FileName, f.FileType)
	if err != nil {
		return fmt.Errorf("appointment: insert file: %w", err)
	}
	return nil
}

func inferFileType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".png"), strings.HasSuffix(lower, ".jpg"),
		strings.HasSuffix(lower, ".jpeg"), strings.HasSuffix(lower, ".gif"),
		strings.HasSuffix(lower, ".webp"):
		return "image"
	case strings.HasSuffix(lower, ".pdf"):
		return "pdf"
	default:
		return "file"
	}
}

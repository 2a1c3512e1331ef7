package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/notify"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/timeslot"
)

// ErrNoMeta means a deposit payment has no booking payload to promote.
var ErrNoMeta = errors.New("booking: deposit has no booking meta")

// ErrNoAppointment means a final payment is not linked to an appointment.
var ErrNoAppointment = errors.New("booking: final payment has no appointment")

// PgStore applies payments inside a single database transaction, closing the
// paid-but-no-appointment window: slot claim, appointment insert and the
// payment's paid flip commit together or not at all.
type PgStore struct {
	db appointment.DB
}

// NewPgStore creates a transaction-backed booking store.
func NewPgStore(db appointment.DB) *PgStore {
	if db == nil {
		panic("booking: pgx pool required")
	}
	return &PgStore{db: db}
}

// PromoteDeposit implements Store.
func (s *PgStore) PromoteDeposit(ctx context.Context, p *payment.Payment) (*appointment.Appointment, error) {
	if p.Meta == nil {
		return nil, ErrNoMeta
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin promotion: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := timeslot.ClaimTx(ctx, tx, p.Meta.TimeSlotID); err != nil {
		return nil, err
	}

	appt := &appointment.Appointment{
		PatientID:       p.Meta.PatientID,
		DoctorID:        p.Meta.DoctorID,
		ServiceID:       p.Meta.ServiceID,
		ServiceOptionID: p.Meta.ServiceOptionID,
		ClinicID:        p.Meta.ClinicID,
		TimeSlotID:      p.Meta.TimeSlotID,
		Note:            p.Meta.Note,
		CreatedBy:       p.Meta.CreatedBy,
		Status:          appointment.StatusConfirmed,
		ReExaminationOf: p.Meta.ReExaminationOf,
	}
	if err := appointment.InsertTx(ctx, tx, appt); err != nil {
		return nil, err
	}

	if p.Meta.FileURL != "" {
		file := &appointment.File{
			AppointmentID: appt.ID,
			FileURL:       p.Meta.FileURL,
			FileName:      p.Meta.FileName,
		}
		if err := appointment.AddFileTx(ctx, tx, file); err != nil {
			return nil, err
		}
	}

	if err := payment.SetAppointmentTx(ctx, tx, p.ID, appt.ID); err != nil {
		return nil, err
	}
	// Paid flip goes last so a partial failure never leaves a paid payment
	// without its appointment.
	if err := payment.MarkPaidTx(ctx, tx, p.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("booking: commit promotion: %w", err)
	}
	return appt, nil
}

// CompleteFinal implements Store.
func (s *PgStore) CompleteFinal(ctx context.Context, p *payment.Payment) (*appointment.Appointment, error) {
	if p.AppointmentID == nil {
		return nil, ErrNoAppointment
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("booking: begin final: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := appointment.UpdateStatusTx(ctx, tx, *p.AppointmentID,
		appointment.StatusFullyPaid, appointment.StatusConfirmed, appointment.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if err := payment.MarkPaidTx(ctx, tx, p.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("booking: commit final: %w", err)
	}
	return appt, nil
}

// BookingInfo implements Store.
func (s *PgStore) BookingInfo(ctx context.Context, appointmentID uuid.UUID) (notify.BookingInfo, error) {
	var info notify.BookingInfo
	err := s.db.QueryRow(ctx, `
		SELECT p.name, p.email, d.name, sv.name, c.name, ts.start_time
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors d ON d.id = a.doctor_id
		JOIN services sv ON sv.id = a.service_id
		JOIN clinics c ON c.id = a.clinic_id
		JOIN time_slots ts ON ts.id = a.time_slot_id
		WHERE a.id = $1
	`, appointmentID).Scan(&info.PatientName, &info.PatientEmail, &info.DoctorName,
		&info.ServiceName, &info.ClinicName, &info.StartTime)
	if err != nil {
		return notify.BookingInfo{}, fmt.Errorf("booking: info lookup: %w", err)
	}
	return info, nil
}

package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/notify"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/timeslot"
)

// MemStore is the in-memory Store for orchestrator tests. It applies the
// same side-effect order as PgStore: slot claim, appointment, file, payment
// link, paid flip last.
type MemStore struct {
	Slots        *timeslot.InMemoryRepository
	Appointments *appointment.InMemoryRepository
	Payments     *payment.InMemoryRepository
	Emails       map[uuid.UUID]string // patient id -> email
}

// NewMemStore wires the three in-memory repositories together.
func NewMemStore(slots *timeslot.InMemoryRepository, appts *appointment.InMemoryRepository,
	payments *payment.InMemoryRepository) *MemStore {
	return &MemStore{
		Slots:        slots,
		Appointments: appts,
		Payments:     payments,
		Emails:       make(map[uuid.UUID]string),
	}
}

// PromoteDeposit implements Store.
func (s *MemStore) PromoteDeposit(ctx context.Context, p *payment.Payment) (*appointment.Appointment, error) {
	if p.Meta == nil {
		return nil, ErrNoMeta
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
	if err := s.Appointments.CreateWithSlot(ctx, appt); err != nil {
		return nil, err
	}

	if p.Meta.FileURL != "" {
		file := &appointment.File{
			AppointmentID: appt.ID,
			FileURL:       p.Meta.FileURL,
			FileName:      p.Meta.FileName,
		}
		if err := s.Appointments.AddFile(ctx, file); err != nil {
			return nil, err
		}
	}

	if err := s.Payments.SetAppointment(p.ID, appt.ID); err != nil {
		return nil, err
	}
	if err := s.Payments.MarkPaid(ctx, p.ID); err != nil {
		return nil, err
	}
	return appt, nil
}

// CompleteFinal implements Store.
func (s *MemStore) CompleteFinal(ctx context.Context, p *payment.Payment) (*appointment.Appointment, error) {
	if p.AppointmentID == nil {
		return nil, ErrNoAppointment
	}
	appt, err := s.Appointments.UpdateStatus(ctx, *p.AppointmentID,
		appointment.StatusFullyPaid, appointment.StatusConfirmed, appointment.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if err := s.Payments.MarkPaid(ctx, p.ID); err != nil {
		return nil, err
	}
	return appt, nil
}

// BookingInfo implements Store.
func (s *MemStore) BookingInfo(ctx context.Context, appointmentID uuid.UUID) (notify.BookingInfo, error) {
	d, err := s.Appointments.GetDetail(ctx, appointmentID)
	if err != nil {
		return notify.BookingInfo{}, err
	}
	info := notify.BookingInfo{
		PatientName: d.PatientName,
		DoctorName:  d.DoctorName,
		ServiceName: d.ServiceName,
		ClinicName:  d.ClinicName,
		StartTime:   d.SlotStartTime,
	}
	if d.SlotStartTime.IsZero() {
		info.StartTime = time.Now().UTC()
	}
	info.PatientEmail = s.Emails[d.PatientID]
	return info, nil
}

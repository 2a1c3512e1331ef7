package appointment

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dentistez/clinic-api/internal/auth"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// Rules are the booking business rules, loaded from configuration.
type Rules struct {
	// EditLeadTime is how long before a slot starts that edits are blocked.
	EditLeadTime time.Duration
	// ReExamMinLead is the minimum distance of a re-examination from now.
	ReExamMinLead time.Duration
	// NoteMaxLen caps appointment notes.
	NoteMaxLen int
	// ReleaseSlotOnStaffCancel controls whether the plain staff cancel frees
	// the slot for re-booking. Patient cancellation always frees it.
	ReleaseSlotOnStaffCancel bool
}

// DefaultRules match the reference clinic behavior.
func DefaultRules() Rules {
	return Rules{
		EditLeadTime:             8 * time.Hour,
		ReExamMinLead:            24 * time.Hour,
		NoteMaxLen:               500,
		ReleaseSlotOnStaffCancel: true,
	}
}

// Service implements appointment transitions, edits, cancellation and
// re-examination chaining.
type Service struct {
	appts  Repository
	slots  timeslot.Repository
	rules  Rules
	policy *bluemonday.Policy
	logger *logging.Logger
	now    func() time.Time
}

// NewService constructs an appointment service.
func NewService(appts Repository, slots timeslot.Repository, rules Rules, logger *logging.Logger) *Service {
	if appts == nil {
		panic("appointment: repository required")
	}
	if slots == nil {
		panic("appointment: timeslot repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if rules.NoteMaxLen <= 0 {
		rules.NoteMaxLen = 500
	}
	return &Service{
		appts:  appts,
		slots:  slots,
		rules:  rules,
		policy: bluemonday.StrictPolicy(),
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SanitizeNote strips all HTML from a note and enforces the length cap.
func (s *Service) SanitizeNote(note string) (string, error) {
	clean := html.UnescapeString(s.policy.Sanitize(note))
	clean = strings.TrimSpace(clean)
	if len([]rune(clean)) > s.rules.NoteMaxLen {
		return "", ErrNoteTooLong
	}
	return clean, nil
}

// EditRequest carries the mutable appointment fields.
type EditRequest struct {
	TimeSlotID *uuid.UUID
	Note       *string
}

// Edit applies a note and/or timeslot change, enforcing terminal-state
// immutability, patient ownership and the edit lead window. A slot change
// releases the old slot and claims the new one atomically.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, actor auth.Identity, req EditRequest) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Terminal() {
		return nil, ErrTerminalState
	}
	if err := s.authorize(actor, appt); err != nil {
		return nil, err
	}

	var note *string
	if req.Note != nil {
		clean, err := s.SanitizeNote(*req.Note)
		if err != nil {
			return nil, err
		}
		note = &clean
	}

	if req.TimeSlotID != nil && *req.TimeSlotID != appt.TimeSlotID {
		newSlot, err := s.slots.GetByID(ctx, *req.TimeSlotID)
		if err != nil {
			return nil, err
		}
		if !newSlot.Bookable() {
			return nil, timeslot.ErrTaken
		}
		if newSlot.StartTime.Before(s.now().Add(s.rules.EditLeadTime)) {
			return nil, ErrEditTooLate
		}
		if err := s.appts.ChangeSlot(ctx, id, appt.TimeSlotID, newSlot.ID, note); err != nil {
			return nil, err
		}
		s.logger.Info("appointment slot changed",
			"appointment_id", id, "old_slot", appt.TimeSlotID, "new_slot", newSlot.ID)
	} else if note != nil {
		if err := s.appts.UpdateNote(ctx, id, *note); err != nil {
			return nil, err
		}
	}

	return s.appts.GetByID(ctx, id)
}

func (s *Service) authorize(actor auth.Identity, appt *Appointment) error {
	if actor.IsStaff() {
		return nil
	}
	if actor.Role == auth.RolePatient && actor.PatientID == appt.PatientID.String() {
		return nil
	}
	return ErrForbidden
}

// Complete marks a confirmed appointment as completed (staff action).
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.UpdateStatus(ctx, id, StatusCompleted, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment completed", "appointment_id", id)
	return appt, nil
}

// Cancel is the staff cancellation: status flip, no refund bookkeeping.
// Slot release is governed by rules.ReleaseSlotOnStaffCancel.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cancelled, err := s.appts.Cancel(ctx, id, appt.TimeSlotID, nil,
		s.rules.ReleaseSlotOnStaffCancel, StatusConfirmed, StatusFullyPaid)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment cancelled by staff",
		"appointment_id", id, "slot_released", s.rules.ReleaseSlotOnStaffCancel)
	return cancelled, nil
}

// CancelWithRefund is the patient cancellation: requires a refund bank
// account, always frees the slot.
func (s *Service) CancelWithRefund(ctx context.Context, id uuid.UUID, actor auth.Identity, refundAccount string) (*Appointment, error) {
	refundAccount = strings.TrimSpace(refundAccount)
	if refundAccount == "" {
		return nil, ErrRefundAccountRequired
	}
	appt, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, appt); err != nil {
		return nil, err
	}
	cancelled, err := s.appts.Cancel(ctx, id, appt.TimeSlotID, &refundAccount,
		true, StatusConfirmed, StatusFullyPaid)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment cancelled with refund", "appointment_id", id)
	return cancelled, nil
}

// ReExamRequest creates a follow-up appointment derived from a root.
type ReExamRequest struct {
	TimeSlotID      uuid.UUID
	Note            string
	ServiceID       *uuid.UUID
	ServiceOptionID *uuid.UUID
	CreatedBy       uuid.UUID
}

// CreateReExamination derives a follow-up appointment from a completed or
// fully paid root: same doctor, at least one full day out, at most one
// re-examination per calendar day per root. No payment involved.
func (s *Service) CreateReExamination(ctx context.Context, rootID uuid.UUID, req ReExamRequest) (*Appointment, error) {
	root, err := s.appts.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root.Status != StatusCompleted && root.Status != StatusFullyPaid {
		return nil, ErrRootNotEligible
	}

	slot, err := s.slots.GetByID(ctx, req.TimeSlotID)
	if err != nil {
		return nil, err
	}
	if slot.DoctorID != root.DoctorID {
		return nil, ErrReExamDoctorMismatch
	}
	if !slot.Bookable() {
		return nil, timeslot.ErrTaken
	}
	if slot.StartTime.Before(s.now().Add(s.rules.ReExamMinLead)) {
		return nil, ErrReExamTooSoon
	}

	taken, err := s.appts.HasReExamOnDay(ctx, rootID, slot.Date)
	if err != nil {
		return nil, fmt.Errorf("appointment: re-exam dedup check: %w", err)
	}
	if taken {
		return nil, ErrReExamSameDay
	}

	note, err := s.SanitizeNote(req.Note)
	if err != nil {
		return nil, err
	}

	serviceID := root.ServiceID
	if req.ServiceID != nil {
		serviceID = *req.ServiceID
	}
	optionID := root.ServiceOptionID
	if req.ServiceOptionID != nil {
		optionID = *req.ServiceOptionID
	}

	reExam := &Appointment{
		PatientID:       root.PatientID,
		DoctorID:        root.DoctorID,
		ServiceID:       serviceID,
		ServiceOptionID: optionID,
		ClinicID:        root.ClinicID,
		TimeSlotID:      slot.ID,
		Note:            note,
		CreatedBy:       req.CreatedBy,
		Status:          StatusConfirmed,
		ReExaminationOf: &rootID,
	}
	if err := s.appts.CreateWithSlot(ctx, reExam); err != nil {
		return nil, err
	}

	s.logger.Info("re-examination created",
		"root_id", rootID, "appointment_id", reExam.ID, "slot_id", slot.ID)
	return reExam, nil
}

// ReExaminations returns the root detail plus every derived appointment.
func (s *Service) ReExaminations(ctx context.Context, rootID uuid.UUID) (*Detail, []Detail, error) {
	root, err := s.appts.GetDetail(ctx, rootID)
	if err != nil {
		return nil, nil, err
	}
	children, err := s.appts.ListReExaminations(ctx, rootID)
	if err != nil {
		return nil, nil, err
	}
	return root, children, nil
}

// Detail returns one appointment with joined display fields.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.appts.GetDetail(ctx, id)
}

// ListStaff is the read-only staff listing.
func (s *Service) ListStaff(ctx context.Context, filter StaffListFilter) (*StaffPage, error) {
	return s.appts.ListStaff(ctx, filter)
}

package appointment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentistez/clinic-api/internal/auth"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

var testNow = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	slots *timeslot.InMemoryRepository
	appts *InMemoryRepository
	svc   *Service
}

func newFixture(t *testing.T, rules Rules) *fixture {
	t.Helper()
	slots := timeslot.NewInMemoryRepository()
	appts := NewInMemoryRepository(slots)
	svc := NewService(appts, slots, rules, logging.Default()).
		WithClock(func() time.Time { return testNow })
	return &fixture{slots: slots, appts: appts, svc: svc}
}

func (f *fixture) slot(start time.Time, doctorID uuid.UUID, available bool) *timeslot.TimeSlot {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return f.slots.Put(timeslot.TimeSlot{
		DoctorID:    doctorID,
		Date:        day,
		SlotIndex:   start.Hour(),
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		IsAvailable: available,
		Status:      timeslot.StatusActive,
	})
}

func (f *fixture) appointment(status string, slot *timeslot.TimeSlot) *Appointment {
	return f.appts.Put(Appointment{
		PatientID:       uuid.New(),
		DoctorID:        slot.DoctorID,
		ServiceID:       uuid.New(),
		ServiceOptionID: uuid.New(),
		ClinicID:        uuid.New(),
		TimeSlotID:      slot.ID,
		Status:          status,
	})
}

func staffIdentity() auth.Identity {
	return auth.Identity{UserID: uuid.NewString(), Role: auth.RoleStaff}
}

func patientIdentity(patientID uuid.UUID) auth.Identity {
	return auth.Identity{UserID: uuid.NewString(), Role: auth.RolePatient, PatientID: patientID.String()}
}

func TestEditRejectsTerminalStates(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	for _, status := range []string{StatusCompleted, StatusCancelled} {
		slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
		appt := f.appointment(status, slot)

		note := "new note"
		_, err := f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{Note: &note})
		assert.ErrorIs(t, err, ErrTerminalState, "status %s must be immutable", status)
	}
}

func TestEditPatientOwnership(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	note := "patient note"
	_, err := f.svc.Edit(ctx, appt.ID, patientIdentity(uuid.New()), EditRequest{Note: &note})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Edit(ctx, appt.ID, patientIdentity(appt.PatientID), EditRequest{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "patient note", got.Note)
}

func TestEditSanitizesAndCapsNote(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	dirty := `<script>alert("x")</script>tooth <b>pain</b>`
	got, err := f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{Note: &dirty})
	require.NoError(t, err)
	assert.Equal(t, "tooth pain", got.Note)

	long := strings.Repeat("a", 501)
	_, err = f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{Note: &long})
	assert.ErrorIs(t, err, ErrNoteTooLong)
}

func TestEditSlotChangeSwapsBothSlots(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	oldSlot := f.slot(testNow.Add(48*time.Hour), doctorID, false)
	newSlot := f.slot(testNow.Add(72*time.Hour), doctorID, true)
	appt := f.appointment(StatusConfirmed, oldSlot)

	_, err := f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{TimeSlotID: &newSlot.ID})
	require.NoError(t, err)

	freed, _ := f.slots.GetByID(ctx, oldSlot.ID)
	claimed, _ := f.slots.GetByID(ctx, newSlot.ID)
	assert.True(t, freed.IsAvailable, "old slot must be released")
	assert.False(t, claimed.IsAvailable, "new slot must be claimed")

	updated, _ := f.appts.GetByID(ctx, appt.ID)
	assert.Equal(t, newSlot.ID, updated.TimeSlotID)
}

func TestEditSlotChangeRespectsLeadTime(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	oldSlot := f.slot(testNow.Add(48*time.Hour), doctorID, false)
	soonSlot := f.slot(testNow.Add(7*time.Hour), doctorID, true)
	appt := f.appointment(StatusConfirmed, oldSlot)

	_, err := f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{TimeSlotID: &soonSlot.ID})
	assert.ErrorIs(t, err, ErrEditTooLate)
}

func TestEditSlotChangeRejectsClaimedSlot(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	oldSlot := f.slot(testNow.Add(48*time.Hour), doctorID, false)
	takenSlot := f.slot(testNow.Add(72*time.Hour), doctorID, false)
	appt := f.appointment(StatusConfirmed, oldSlot)

	_, err := f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{TimeSlotID: &takenSlot.ID})
	assert.ErrorIs(t, err, timeslot.ErrTaken)
}

func TestEditSlotChangeAtomicOnMidFailure(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	oldSlot := f.slot(testNow.Add(48*time.Hour), doctorID, false)
	newSlot := f.slot(testNow.Add(72*time.Hour), doctorID, true)
	appt := f.appointment(StatusConfirmed, oldSlot)

	f.appts.ChangeSlotHook = func() error { return errors.New("connection reset") }

	_, err := f.svc.Edit(ctx, appt.ID, staffIdentity(), EditRequest{TimeSlotID: &newSlot.ID})
	require.Error(t, err)

	// Neither slot may be half-applied.
	old, _ := f.slots.GetByID(ctx, oldSlot.ID)
	repoNew, _ := f.slots.GetByID(ctx, newSlot.ID)
	assert.False(t, old.IsAvailable, "old slot must still be claimed")
	assert.True(t, repoNew.IsAvailable, "new slot must still be free")

	unchanged, _ := f.appts.GetByID(ctx, appt.ID)
	assert.Equal(t, oldSlot.ID, unchanged.TimeSlotID)
}

func TestCompleteTransitions(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	got, err := f.svc.Complete(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = f.svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "completing twice must fail")
}

func TestStaffCancelReleasesSlotByDefault(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	got, err := f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	released, _ := f.slots.GetByID(ctx, slot.ID)
	assert.True(t, released.IsAvailable)
}

func TestStaffCancelKeepsSlotWhenConfigured(t *testing.T) {
	rules := DefaultRules()
	rules.ReleaseSlotOnStaffCancel = false
	f := newFixture(t, rules)
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	_, err := f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	held, _ := f.slots.GetByID(ctx, slot.ID)
	assert.False(t, held.IsAvailable, "slot must stay blocked when release is disabled")
}

func TestCancelRejectsCompleted(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusCompleted, slot)

	_, err := f.svc.Cancel(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelWithRefundRequiresAccount(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	_, err := f.svc.CancelWithRefund(ctx, appt.ID, patientIdentity(appt.PatientID), "  ")
	assert.ErrorIs(t, err, ErrRefundAccountRequired)

	got, err := f.svc.CancelWithRefund(ctx, appt.ID, patientIdentity(appt.PatientID), "VCB 0123456789")
	require.NoError(t, err)
	require.NotNil(t, got.RefundAccount)
	assert.Equal(t, "VCB 0123456789", *got.RefundAccount)

	released, _ := f.slots.GetByID(ctx, slot.ID)
	assert.True(t, released.IsAvailable, "patient cancel always frees the slot")
}

func TestCancelWithRefundOwnership(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	slot := f.slot(testNow.Add(48*time.Hour), uuid.New(), false)
	appt := f.appointment(StatusConfirmed, slot)

	_, err := f.svc.CancelWithRefund(ctx, appt.ID, patientIdentity(uuid.New()), "VCB 1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReExamRequiresEligibleRoot(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	rootSlot := f.slot(testNow.Add(-24*time.Hour), doctorID, false)
	root := f.appointment(StatusConfirmed, rootSlot)
	target := f.slot(testNow.Add(48*time.Hour), doctorID, true)

	_, err := f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: target.ID})
	assert.ErrorIs(t, err, ErrRootNotEligible)
}

func TestReExamLeadTimeAndDedup(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	rootSlot := f.slot(testNow.Add(-24*time.Hour), doctorID, false)
	root := f.appointment(StatusFullyPaid, rootSlot)

	// Less than one day out: rejected.
	tooSoon := f.slot(testNow.Add(12*time.Hour), doctorID, true)
	_, err := f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: tooSoon.ID})
	assert.ErrorIs(t, err, ErrReExamTooSoon)

	// Tomorrow: accepted.
	tomorrowA := f.slot(testNow.Add(26*time.Hour), doctorID, true)
	first, err := f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: tomorrowA.ID})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, first.Status)
	require.NotNil(t, first.ReExaminationOf)
	assert.Equal(t, root.ID, *first.ReExaminationOf)

	claimed, _ := f.slots.GetByID(ctx, tomorrowA.ID)
	assert.False(t, claimed.IsAvailable)

	// Second re-exam on the same calendar day: rejected.
	tomorrowB := f.slot(testNow.Add(28*time.Hour), doctorID, true)
	_, err = f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: tomorrowB.ID})
	assert.ErrorIs(t, err, ErrReExamSameDay)

	// Different day: accepted again.
	dayAfter := f.slot(testNow.Add(50*time.Hour), doctorID, true)
	_, err = f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: dayAfter.ID})
	require.NoError(t, err)
}

func TestReExamRejectsOtherDoctorSlot(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()

	rootSlot := f.slot(testNow.Add(-24*time.Hour), uuid.New(), false)
	root := f.appointment(StatusCompleted, rootSlot)
	otherDoctor := f.slot(testNow.Add(48*time.Hour), uuid.New(), true)

	_, err := f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: otherDoctor.ID})
	assert.ErrorIs(t, err, ErrReExamDoctorMismatch)
}

func TestReExamCopiesRootServiceUnlessOverridden(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()

	rootSlot := f.slot(testNow.Add(-24*time.Hour), doctorID, false)
	root := f.appointment(StatusCompleted, rootSlot)

	target := f.slot(testNow.Add(26*time.Hour), doctorID, true)
	got, err := f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{TimeSlotID: target.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ServiceID, got.ServiceID)
	assert.Equal(t, root.ServiceOptionID, got.ServiceOptionID)

	override := uuid.New()
	target2 := f.slot(testNow.Add(50*time.Hour), doctorID, true)
	got2, err := f.svc.CreateReExamination(ctx, root.ID, ReExamRequest{
		TimeSlotID: target2.ID,
		ServiceID:  &override,
	})
	require.NoError(t, err)
	assert.Equal(t, override, got2.ServiceID)
}

func TestListStaffFiltersAndPaginates(t *testing.T) {
	f := newFixture(t, DefaultRules())
	ctx := context.Background()
	doctorID := uuid.New()
	f.appts.SetName(doctorID, "Dr. Minh")

	for i := 0; i < 3; i++ {
		slot := f.slot(testNow.Add(time.Duration(24*(i+1))*time.Hour), doctorID, false)
		appt := f.appointment(StatusConfirmed, slot)
		f.appts.SetName(appt.PatientID, "Nguyen Van A")
	}
	slot := f.slot(testNow.Add(96*time.Hour), doctorID, false)
	f.appointment(StatusCancelled, slot)

	page, err := f.svc.ListStaff(ctx, StaffListFilter{Status: StatusConfirmed, Limit: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Data, 2)

	page2, err := f.svc.ListStaff(ctx, StaffListFilter{Status: StatusConfirmed, Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Len(t, page2.Data, 1)

	byName, err := f.svc.ListStaff(ctx, StaffListFilter{Search: "minh"})
	require.NoError(t, err)
	assert.Equal(t, 4, byName.Total, "doctor name matches all four appointments")

	byDate, err := f.svc.ListStaff(ctx, StaffListFilter{Search: "02/08/2025"})
	require.NoError(t, err)
	assert.Equal(t, 1, byDate.Total, "date search matches the slot on that day")
}

package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/notify"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

type fixture struct {
	slots    *timeslot.InMemoryRepository
	appts    *appointment.InMemoryRepository
	payments *payment.InMemoryRepository
	store    *MemStore
	sender   *notify.StubSender
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	slots := timeslot.NewInMemoryRepository()
	appts := appointment.NewInMemoryRepository(slots)
	payments := payment.NewInMemoryRepository()
	store := NewMemStore(slots, appts, payments)
	sender := &notify.StubSender{}
	notifier := notify.NewService(sender, logging.Default())
	svc := NewService(payments, slots, store, nil, notifier, nil, logging.Default())
	return &fixture{slots: slots, appts: appts, payments: payments, store: store, sender: sender, svc: svc}
}

func (f *fixture) openSlot() *timeslot.TimeSlot {
	start := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	return f.slots.Put(timeslot.TimeSlot{
		DoctorID:    uuid.New(),
		Date:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		SlotIndex:   1,
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		IsAvailable: true,
		Status:      timeslot.StatusActive,
	})
}

func (f *fixture) pendingDeposit(orderCode int64, slotID uuid.UUID) *payment.Payment {
	patientID := uuid.New()
	f.store.Emails[patientID] = "patient@example.com"
	return f.payments.Put(payment.Payment{
		Amount:    200000,
		Type:      payment.TypeDeposit,
		Method:    payment.MethodOnline,
		Status:    payment.StatusPending,
		OrderCode: orderCode,
		Meta: &payment.Meta{
			PatientID:       patientID,
			DoctorID:        uuid.New(),
			ServiceID:       uuid.New(),
			ServiceOptionID: uuid.New(),
			ClinicID:        uuid.New(),
			TimeSlotID:      slotID,
			Note:            "first visit",
		},
	})
}

func TestDepositCallbackPromotesBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.openSlot()
	p := f.pendingDeposit(1001, slot.ID)

	outcome, err := f.svc.HandleCallback(ctx, 1001, SuccessCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, outcome)

	claimed, _ := f.slots.GetByID(ctx, slot.ID)
	assert.False(t, claimed.IsAvailable)

	paid, _ := f.payments.GetByID(ctx, p.ID)
	assert.Equal(t, payment.StatusPaid, paid.Status)
	require.NotNil(t, paid.AppointmentID)

	appt, err := f.appts.GetByID(ctx, *paid.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, appt.Status)
	assert.Equal(t, slot.ID, appt.TimeSlotID)
	assert.Equal(t, "first visit", appt.Note)

	assert.Equal(t, 1, f.sender.Count(), "confirmation email sent")
}

func TestDepositCallbackReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.openSlot()
	f.pendingDeposit(1002, slot.ID)

	_, err := f.svc.HandleCallback(ctx, 1002, SuccessCode)
	require.NoError(t, err)

	outcome, err := f.svc.HandleCallback(ctx, 1002, SuccessCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, outcome)

	// Still exactly one appointment on the slot.
	page, _ := f.appts.ListStaff(ctx, appointment.StaffListFilter{})
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, f.sender.Count(), "no second email")
}

func TestConcurrentDepositsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.openSlot()
	f.pendingDeposit(2001, slot.ID)
	f.pendingDeposit(2002, slot.ID)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, code := range []int64{2001, 2002} {
		wg.Add(1)
		go func(i int, orderCode int64) {
			defer wg.Done()
			_, results[i] = f.svc.HandleCallback(ctx, orderCode, SuccessCode)
		}(i, code)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, timeslot.ErrTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one promotion")
	assert.Equal(t, 1, conflicts, "exactly one slot conflict")

	page, _ := f.appts.ListStaff(ctx, appointment.StaffListFilter{})
	assert.Equal(t, 1, page.Total)
}

func TestSlotConflictLeavesPaymentPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.openSlot()
	require.NoError(t, f.slots.Claim(ctx, slot.ID))
	p := f.pendingDeposit(3001, slot.ID)

	_, err := f.svc.HandleCallback(ctx, 3001, SuccessCode)
	assert.ErrorIs(t, err, timeslot.ErrTaken)

	unchanged, _ := f.payments.GetByID(ctx, p.ID)
	assert.Equal(t, payment.StatusPending, unchanged.Status,
		"payment must not be marked paid on conflict")
}

func TestFailureCodeCancelsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.openSlot()
	p := f.pendingDeposit(4001, slot.ID)

	outcome, err := f.svc.HandleCallback(ctx, 4001, "01")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCanceled, outcome)

	canceled, _ := f.payments.GetByID(ctx, p.ID)
	assert.Equal(t, payment.StatusCanceled, canceled.Status)

	stillOpen, _ := f.slots.GetByID(ctx, slot.ID)
	assert.True(t, stillOpen.IsAvailable)
}

func TestUnknownOrderCodeIsBenign(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.HandleCallback(context.Background(), 999999, SuccessCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestFinalCallbackSettlesAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := f.openSlot()
	require.NoError(t, f.slots.Claim(ctx, slot.ID))
	appt := f.appts.Put(appointment.Appointment{
		PatientID:  uuid.New(),
		DoctorID:   slot.DoctorID,
		ServiceID:  uuid.New(),
		ClinicID:   uuid.New(),
		TimeSlotID: slot.ID,
		Status:     appointment.StatusCompleted,
	})
	apptID := appt.ID
	p := f.payments.Put(payment.Payment{
		Amount: 800000, Type: payment.TypeFinal, Method: payment.MethodOnline,
		Status: payment.StatusPending, OrderCode: 5001, AppointmentID: &apptID,
	})

	outcome, err := f.svc.HandleCallback(ctx, 5001, SuccessCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFinalPaid, outcome)

	settled, _ := f.appts.GetByID(ctx, appt.ID)
	assert.Equal(t, appointment.StatusFullyPaid, settled.Status)

	paid, _ := f.payments.GetByID(ctx, p.ID)
	assert.Equal(t, payment.StatusPaid, paid.Status)
}

func TestEmailFailureDoesNotFailPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.openSlot()
	p := f.pendingDeposit(6001, slot.ID)
	f.sender.Err = errors.New("smtp down")

	outcome, err := f.svc.HandleCallback(ctx, 6001, SuccessCode)
	require.NoError(t, err)
	assert.Equal(t, OutcomePromoted, outcome)

	paid, _ := f.payments.GetByID(ctx, p.ID)
	assert.Equal(t, payment.StatusPaid, paid.Status)
}

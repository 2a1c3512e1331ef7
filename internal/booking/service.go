package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dentistez/clinic-api/internal/notify"
	"github.com/dentistez/clinic-api/internal/observability/metrics"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/redislock"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// SuccessCode is the gateway's payment-success code.
const SuccessCode = "00"

// Outcome describes what a callback did.
type Outcome string

const (
	OutcomeIgnored          Outcome = "ignored"           // unknown order code
	OutcomeAlreadyProcessed Outcome = "already_processed" // replayed callback
	OutcomeCanceled         Outcome = "canceled"          // gateway reported failure
	OutcomePromoted         Outcome = "promoted"          // deposit became an appointment
	OutcomeFinalPaid        Outcome = "final_paid"        // appointment fully paid
)

// Service handles gateway payment callbacks. Deposit promotions are
// serialized per slot through the distributed lock on top of the conditional
// claim in the store.
type Service struct {
	payments payment.Repository
	slots    timeslot.Repository
	store    Store
	locker   redislock.SlotLocker
	notifier *notify.Service
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewService constructs the callback orchestrator. notifier and metrics may
// be nil.
func NewService(payments payment.Repository, slots timeslot.Repository, store Store,
	locker redislock.SlotLocker, notifier *notify.Service, m *metrics.BookingMetrics,
	logger *logging.Logger) *Service {
	if payments == nil {
		panic("booking: payment repository required")
	}
	if store == nil {
		panic("booking: store required")
	}
	if locker == nil {
		locker = redislock.NoopLocker{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		payments: payments,
		slots:    slots,
		store:    store,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleCallback applies one gateway callback. Unknown order codes and
// replays are benign no-ops; failure codes cancel the payment; success
// promotes a deposit or settles a final payment. A slot conflict surfaces as
// timeslot.ErrTaken so the transport can answer 409 and the gateway retries
// against a payment that stays pending.
func (s *Service) HandleCallback(ctx context.Context, orderCode int64, code string) (Outcome, error) {
	start := s.now()
	outcome, err := s.handle(ctx, orderCode, code)

	kind := "unknown"
	if p, lookupErr := s.payments.GetByOrderCode(ctx, orderCode); lookupErr == nil {
		kind = p.Type
	}
	s.metrics.ObserveCallbackLatency(kind, time.Since(start).Seconds())
	if err == nil {
		s.metrics.ObserveCallback(kind, string(outcome))
	}
	return outcome, err
}

func (s *Service) handle(ctx context.Context, orderCode int64, code string) (Outcome, error) {
	p, err := s.payments.GetByOrderCode(ctx, orderCode)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			// Gateway test pings and stale retries land here.
			s.logger.Info("callback for unknown order code ignored", "order_code", orderCode)
			return OutcomeIgnored, nil
		}
		return "", fmt.Errorf("booking: lookup order code %d: %w", orderCode, err)
	}

	if p.Terminal() {
		s.logger.Info("callback replay ignored",
			"order_code", orderCode, "payment_id", p.ID, "status", p.Status)
		return OutcomeAlreadyProcessed, nil
	}

	if code != SuccessCode {
		if err := s.payments.MarkCanceled(ctx, p.ID); err != nil &&
			!errors.Is(err, payment.ErrAlreadyProcessed) {
			return "", err
		}
		s.logger.Info("payment canceled by gateway",
			"order_code", orderCode, "payment_id", p.ID, "code", code)
		return OutcomeCanceled, nil
	}

	if p.IsDeposit() {
		return s.promoteDeposit(ctx, p)
	}
	return s.completeFinal(ctx, p)
}

func (s *Service) promoteDeposit(ctx context.Context, p *payment.Payment) (Outcome, error) {
	if p.Meta == nil {
		return "", ErrNoMeta
	}

	var promoted Outcome
	err := s.locker.WithSlotLock(ctx, p.Meta.TimeSlotID, func(ctx context.Context) error {
		// Re-check under the lock before touching the database.
		if s.slots != nil {
			slot, err := s.slots.GetByID(ctx, p.Meta.TimeSlotID)
			if err != nil {
				return err
			}
			if !slot.Bookable() {
				return timeslot.ErrTaken
			}
		}

		appt, err := s.store.PromoteDeposit(ctx, p)
		if err != nil {
			return err
		}
		promoted = OutcomePromoted

		s.logger.Info("deposit promoted into appointment",
			"payment_id", p.ID, "appointment_id", appt.ID, "slot_id", appt.TimeSlotID)
		s.sendConfirmation(ctx, appt.ID)
		return nil
	})
	if err != nil {
		if errors.Is(err, timeslot.ErrTaken) || errors.Is(err, timeslot.ErrNotFound) ||
			errors.Is(err, redislock.ErrNotAcquired) {
			s.metrics.ObserveSlotConflict()
			s.logger.Warn("deposit promotion rejected, slot unavailable",
				"payment_id", p.ID, "slot_id", p.Meta.TimeSlotID, "error", err)
		}
		return "", err
	}
	return promoted, nil
}

func (s *Service) completeFinal(ctx context.Context, p *payment.Payment) (Outcome, error) {
	appt, err := s.store.CompleteFinal(ctx, p)
	if err != nil {
		return "", err
	}
	s.logger.Info("final payment settled",
		"payment_id", p.ID, "appointment_id", appt.ID)
	s.sendReceipt(ctx, appt.ID, p.Amount)
	return OutcomeFinalPaid, nil
}

// sendConfirmation is best-effort: the booking is durable, a failed email is
// only logged.
func (s *Service) sendConfirmation(ctx context.Context, appointmentID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	info, err := s.store.BookingInfo(ctx, appointmentID)
	if err != nil {
		s.logger.Error("booking info lookup for email failed",
			"appointment_id", appointmentID, "error", err)
		return
	}
	s.notifier.BookingConfirmed(ctx, info)
}

func (s *Service) sendReceipt(ctx context.Context, appointmentID uuid.UUID, amount int64) {
	if s.notifier == nil {
		return
	}
	info, err := s.store.BookingInfo(ctx, appointmentID)
	if err != nil {
		s.logger.Error("booking info lookup for email failed",
			"appointment_id", appointmentID, "error", err)
		return
	}
	s.notifier.PaymentReceived(ctx, info, amount)
}

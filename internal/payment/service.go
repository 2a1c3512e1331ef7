package payment

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/payos"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// ErrSlotTooSoon rejects deposits against slots inside the booking lead window.
var ErrSlotTooSoon = errors.New("payment: slot starts too soon")

// AppointmentReader is the appointment surface final payments need.
type AppointmentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// CashFinalizer settles a cash final payment and the appointment's
// fully_paid transition as one unit.
type CashFinalizer interface {
	FinalizeCash(ctx context.Context, appointmentID uuid.UUID, p *Payment) error
}

// Rules are the payment business rules.
type Rules struct {
	// BookingLeadTime is how far ahead of the slot a deposit must be created.
	BookingLeadTime time.Duration
	// NoteMaxLen caps the booking note carried in deposit meta.
	NoteMaxLen int
}

// DefaultRules match the booking defaults.
func DefaultRules() Rules {
	return Rules{BookingLeadTime: 8 * time.Hour, NoteMaxLen: 500}
}

// Service creates deposit checkouts and settles final payments.
type Service struct {
	payments  Repository
	slots     timeslot.Repository
	appts     AppointmentReader
	finalizer CashFinalizer
	gateway   payos.LinkCreator
	rules     Rules
	policy    *bluemonday.Policy
	logger    *logging.Logger
	now       func() time.Time
	orderCode func() int64
}

// NewService constructs the payment service.
func NewService(payments Repository, slots timeslot.Repository, appts AppointmentReader,
	finalizer CashFinalizer, gateway payos.LinkCreator, rules Rules, logger *logging.Logger) *Service {
	if payments == nil {
		panic("payment: repository required")
	}
	if gateway == nil {
		panic("payment: gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if rules.NoteMaxLen <= 0 {
		rules.NoteMaxLen = 500
	}
	return &Service{
		payments:  payments,
		slots:     slots,
		appts:     appts,
		finalizer: finalizer,
		gateway:   gateway,
		rules:     rules,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger,
		now:       time.Now,
		orderCode: newOrderCode,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithOrderCodes overrides order code generation, for tests.
func (s *Service) WithOrderCodes(gen func() int64) *Service {
	s.orderCode = gen
	return s
}

// newOrderCode builds a numeric gateway order code. Uniqueness is ultimately
// enforced by the payments.order_code constraint.
func newOrderCode() int64 {
	return time.Now().UnixMilli()*1000 + rand.Int64N(1000)
}

// DepositRequest is the booking data a deposit checkout carries.
type DepositRequest struct {
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	ServiceID       uuid.UUID
	ServiceOptionID uuid.UUID
	ClinicID        uuid.UUID
	TimeSlotID      uuid.UUID
	Note            string
	FileURL         string
	FileName        string
	Amount          int64
	Description     string
	CreatedBy       uuid.UUID
}

// Checkout is a created payment plus its gateway link.
type Checkout struct {
	Payment *Payment `json:"payment"`
	PayURL  string   `json:"pay_url"`
	QRCode  string   `json:"qr_code"`
}

// CreateDeposit validates the requested slot, stores a pending deposit with
// the booking payload in meta, and requests a gateway checkout link. The
// slot is not claimed until the gateway confirms payment.
func (s *Service) CreateDeposit(ctx context.Context, req DepositRequest) (*Checkout, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	slot, err := s.slots.GetByID(ctx, req.TimeSlotID)
	if err != nil {
		return nil, err
	}
	if !slot.Bookable() {
		return nil, timeslot.ErrTaken
	}
	if slot.StartTime.Before(s.now().Add(s.rules.BookingLeadTime)) {
		return nil, ErrSlotTooSoon
	}

	note, err := s.sanitizeNote(req.Note)
	if err != nil {
		return nil, err
	}

	p := &Payment{
		Amount:      req.Amount,
		Type:        TypeDeposit,
		Method:      MethodOnline,
		Status:      StatusPending,
		OrderCode:   s.orderCode(),
		Description: req.Description,
		Meta: &Meta{
			PatientID:       req.PatientID,
			DoctorID:        req.DoctorID,
			ServiceID:       req.ServiceID,
			ServiceOptionID: req.ServiceOptionID,
			ClinicID:        req.ClinicID,
			TimeSlotID:      req.TimeSlotID,
			Note:            note,
			CreatedBy:       req.CreatedBy,
			FileURL:         req.FileURL,
			FileName:        req.FileName,
		},
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	return s.attachLink(ctx, p)
}

// FinalRequest settles the remaining balance of an appointment.
type FinalRequest struct {
	Amount      int64
	Description string
}

// CreateFinalOnline creates a pending online final payment with a gateway
// link. The appointment flips to fully_paid when the callback confirms.
func (s *Service) CreateFinalOnline(ctx context.Context, appointmentID uuid.UUID, req FinalRequest) (*Checkout, error) {
	if err := s.checkFinalTarget(ctx, appointmentID); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	apptID := appointmentID
	p := &Payment{
		Amount:        req.Amount,
		Type:          TypeFinal,
		Method:        MethodOnline,
		Status:        StatusPending,
		OrderCode:     s.orderCode(),
		Description:   req.Description,
		AppointmentID: &apptID,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	return s.attachLink(ctx, p)
}

// CreateFinalCash records an already-collected cash final payment and flips
// the appointment to fully_paid in one unit.
func (s *Service) CreateFinalCash(ctx context.Context, appointmentID uuid.UUID, req FinalRequest) (*Payment, error) {
	if err := s.checkFinalTarget(ctx, appointmentID); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	apptID := appointmentID
	p := &Payment{
		Amount:        req.Amount,
		Type:          TypeFinal,
		Method:        MethodCash,
		Status:        StatusPaid,
		OrderCode:     s.orderCode(),
		Description:   req.Description,
		AppointmentID: &apptID,
	}
	if err := s.finalizer.FinalizeCash(ctx, appointmentID, p); err != nil {
		return nil, err
	}
	s.logger.Info("cash final payment recorded",
		"appointment_id", appointmentID, "payment_id", p.ID, "amount", p.Amount)
	return p, nil
}

// DepositTotal sums paid deposits for an appointment.
func (s *Service) DepositTotal(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	if _, err := s.appts.GetByID(ctx, appointmentID); err != nil {
		return 0, err
	}
	return s.payments.DepositTotal(ctx, appointmentID)
}

func (s *Service) checkFinalTarget(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.IsReExamination() {
		return ErrReExamNotPayable
	}
	if appt.Status == appointment.StatusFullyPaid {
		return ErrAppointmentFullyPaid
	}
	return nil
}

func (s *Service) attachLink(ctx context.Context, p *Payment) (*Checkout, error) {
	link, err := s.gateway.CreatePaymentLink(ctx, payos.LinkRequest{
		OrderCode:   p.OrderCode,
		Amount:      p.Amount,
		Description: p.Description,
	})
	if err != nil {
		// The pending row stays; the client may retry checkout creation.
		return nil, err
	}
	if err := s.payments.SetPayLink(ctx, p.ID, link.CheckoutURL, link.QRCode); err != nil {
		return nil, err
	}
	p.PayURL = link.CheckoutURL
	p.QRCode = link.QRCode

	s.logger.Info("payment link created",
		"payment_id", p.ID, "order_code", p.OrderCode, "type", p.Type, "amount", p.Amount)
	return &Checkout{Payment: p, PayURL: link.CheckoutURL, QRCode: link.QRCode}, nil
}

func (s *Service) sanitizeNote(note string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(note)))
	if len([]rune(clean)) > s.rules.NoteMaxLen {
		return "", fmt.Errorf("payment: note exceeds %d characters", s.rules.NoteMaxLen)
	}
	return clean, nil
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dentistez/clinic-api/pkg/logging"
)

// Service composes the booking lifecycle emails. All sends are best-effort:
// failures are logged and never bubble into the booking flow.
type Service struct {
	sender EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender disables sending.
func NewService(sender EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = &StubSender{}
		logger.Warn("no email sender configured, notifications are no-ops")
	}
	return &Service{sender: sender, logger: logger}
}

// BookingInfo carries the fields the templates need.
type BookingInfo struct {
	PatientName  string
	PatientEmail string
	DoctorName   string
	ServiceName  string
	ClinicName   string
	StartTime    time.Time
}

// BookingConfirmed emails the patient after a deposit promotes into an
// appointment.
func (s *Service) BookingConfirmed(ctx context.Context, info BookingInfo) {
	if info.PatientEmail == "" {
		return
	}
	msg := EmailMessage{
		To:      info.PatientEmail,
		ToName:  info.PatientName,
		Subject: "Your appointment is confirmed",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour appointment with %s (%s) at %s on %s is confirmed.\n\nSee you soon!",
			info.PatientName, info.DoctorName, info.ServiceName, info.ClinicName,
			info.StartTime.Format("Mon, 02 Jan 2006 15:04")),
	}
	s.send(ctx, msg, "booking confirmation")
}

// PaymentReceived emails the patient after a final payment settles.
func (s *Service) PaymentReceived(ctx context.Context, info BookingInfo, amount int64) {
	if info.PatientEmail == "" {
		return
	}
	msg := EmailMessage{
		To:      info.PatientEmail,
		ToName:  info.PatientName,
		Subject: "Payment received",
		Body: fmt.Sprintf(
			"Hi %s,\n\nWe received your payment of %d VND for your appointment on %s. Thank you!",
			info.PatientName, amount, info.StartTime.Format("Mon, 02 Jan 2006 15:04")),
	}
	s.send(ctx, msg, "payment receipt")
}

// BookingCancelled emails the patient after a cancellation.
func (s *Service) BookingCancelled(ctx context.Context, info BookingInfo) {
	if info.PatientEmail == "" {
		return
	}
	msg := EmailMessage{
		To:      info.PatientEmail,
		ToName:  info.PatientName,
		Subject: "Your appointment was cancelled",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour appointment on %s has been cancelled. If this was unexpected, please contact the clinic.",
			info.PatientName, info.StartTime.Format("Mon, 02 Jan 2006 15:04")),
	}
	s.send(ctx, msg, "cancellation notice")
}

func (s *Service) send(ctx context.Context, msg EmailMessage, kind string) {
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("notification send failed", "kind", kind, "to", msg.To, "error", err)
	}
}

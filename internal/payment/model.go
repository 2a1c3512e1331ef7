package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment kinds and lifecycle. A deposit is created before its appointment
// exists; the booking data it needs rides along in Meta until the gateway
// confirms and the appointment is created.
const (
	TypeDeposit = "deposit"
	TypeFinal   = "final"

	MethodOnline = "online"
	MethodCash   = "cash"

	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusCanceled = "canceled"
)

// Payment is one gateway or cash transaction. Amounts are VND.
type Payment struct {
	ID            uuid.UUID  `json:"id"`
	Amount        int64      `json:"amount"`
	Type          string     `json:"type"`
	Method        string     `json:"payment_method"`
	Status        string     `json:"status"`
	OrderCode     int64      `json:"order_code"`
	Description   string     `json:"description"`
	PayURL        string     `json:"pay_url,omitempty"`
	QRCode        string     `json:"qr_code,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Meta          *Meta      `json:"meta,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Meta is the pending booking a deposit payment carries until promotion.
type Meta struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	ServiceOptionID uuid.UUID  `json:"service_option_id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	TimeSlotID      uuid.UUID  `json:"time_slot_id"`
	Note            string     `json:"note,omitempty"`
	CreatedBy       uuid.UUID  `json:"created_by,omitempty"`
	ReExaminationOf *uuid.UUID `json:"re_examination_of,omitempty"`
	FileURL         string     `json:"file_url,omitempty"`
	FileName        string     `json:"file_name,omitempty"`
}

// IsDeposit reports whether this payment books a new appointment on success.
func (p *Payment) IsDeposit() bool { return p.Type == TypeDeposit }

// Terminal reports whether the payment has been settled either way.
func (p *Payment) Terminal() bool {
	return p.Status == StatusPaid || p.Status == StatusCanceled
}

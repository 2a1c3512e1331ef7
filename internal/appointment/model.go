package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment status machine: confirmed -> completed -> fully_paid, with
// cancelled reachable from confirmed and fully_paid.
const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusFullyPaid = "fully_paid"
	StatusCancelled = "cancelled"
)

// Appointment ties a patient, doctor, service and timeslot together.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	ServiceOptionID uuid.UUID  `json:"service_option_id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	TimeSlotID      uuid.UUID  `json:"time_slot_id"`
	Note            string     `json:"note"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	Status          string     `json:"status"`
	ReExaminationOf *uuid.UUID `json:"re_examination_of,omitempty"`
	RefundAccount   *string    `json:"refund_account,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsReExamination reports whether this appointment derives from a root one.
func (a *Appointment) IsReExamination() bool {
	return a.ReExaminationOf != nil
}

// Terminal reports whether the appointment can no longer be edited.
func (a *Appointment) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}

// CanTransition validates a single status-machine step.
func CanTransition(from, to string) bool {
	switch to {
	case StatusCompleted:
		return from == StatusConfirmed
	case StatusFullyPaid:
		return from == StatusConfirmed || from == StatusCompleted
	case StatusCancelled:
		return from == StatusConfirmed || from == StatusFullyPaid
	default:
		return false
	}
}

// File is an upload attached to an appointment at booking time.
type File struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	FileURL       string    `json:"file_url"`
	FileName      string    `json:"file_name"`
	FileType      string    `json:"file_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// Detail carries joined display fields for staff and patient views.
type Detail struct {
	Appointment
	PatientName   string    `json:"patient_name"`
	DoctorName    string    `json:"doctor_name"`
	ServiceName   string    `json:"service_name"`
	OptionName    string    `json:"option_name"`
	ClinicName    string    `json:"clinic_name"`
	SlotDate      time.Time `json:"slot_date"`
	SlotStartTime time.Time `json:"slot_start_time"`
	SlotEndTime   time.Time `json:"slot_end_time"`
}

// StaffListFilter is the staff listing query contract.
type StaffListFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// Normalize applies paging defaults and bounds.
func (f *StaffListFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

// StaffPage is one page of the staff listing.
type StaffPage struct {
	Data  []Detail `json:"data"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

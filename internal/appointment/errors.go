package appointment

import "errors"

var (
	// ErrNotFound is returned when the appointment does not exist.
	ErrNotFound = errors.New("appointment not found")
	// ErrTerminalState rejects edits of completed or cancelled appointments.
	ErrTerminalState = errors.New("appointment is completed or cancelled and can no longer be changed")
	// ErrInvalidTransition rejects a status change the machine does not allow.
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	// ErrForbidden is returned when a patient acts on someone else's appointment.
	ErrForbidden = errors.New("not allowed to modify this appointment")
	// ErrEditTooLate rejects slot changes within the edit lead window.
	ErrEditTooLate = errors.New("appointment starts too soon to be changed")
	// ErrRefundAccountRequired guards patient cancellation with refund.
	ErrRefundAccountRequired = errors.New("refund account is required")
	// ErrRootNotEligible rejects re-examinations of unfinished roots.
	ErrRootNotEligible = errors.New("root appointment must be completed or fully paid")
	// ErrReExamTooSoon rejects re-examinations less than one day out.
	ErrReExamTooSoon = errors.New("re-examination must be at least one day ahead")
	// ErrReExamSameDay rejects a second re-examination on one calendar day.
	ErrReExamSameDay = errors.New("a re-examination already exists on that day")
	// ErrReExamDoctorMismatch requires the re-exam slot to belong to the root's doctor.
	ErrReExamDoctorMismatch = errors.New("re-examination slot must belong to the same doctor")
	// ErrNoteTooLong caps the note length.
	ErrNoteTooLong = errors.New("note exceeds the maximum length")
)

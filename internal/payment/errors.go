package payment

import "errors"

var (
	// ErrNotFound means no payment matches the id or order code.
	ErrNotFound = errors.New("payment: not found")
	// ErrAlreadyProcessed means the payment left pending before this update.
	ErrAlreadyProcessed = errors.New("payment: already processed")
	// ErrAppointmentFullyPaid blocks a second final payment.
	ErrAppointmentFullyPaid = errors.New("payment: appointment already fully paid")
	// ErrReExamNotPayable blocks final payments against re-examinations.
	ErrReExamNotPayable = errors.New("payment: re-examination appointments are not payable")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("payment: amount must be positive")
)

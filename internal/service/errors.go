package service

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError names one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError blocks a write. Nothing has been persisted when it is
// returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: msg}}}
}

// PersistenceError reports that the primary write failed. No side effect
// was attempted.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// Reconciliation steps.
const (
	StepPayments   = "payments"
	StepDeliveries = "deliveries"
	StepCalendar   = "calendar"
)

// ReconciliationWarning is a non-fatal failure of a step that runs after
// the reservation was saved.
type ReconciliationWarning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (w ReconciliationWarning) Error() string {
	return fmt.Sprintf("réservation enregistrée, mais %s: %s", w.Step, w.Message)
}

func (w ReconciliationWarning) Unwrap() error { return w.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

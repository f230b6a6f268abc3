package heartrate

import (
	"errors"
	"fmt"
)

var (
	// ErrPatientNotFound is returned by repositories for an unknown patient id.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrNoReadings is returned by the aggregator when nothing can be averaged.
	ErrNoReadings = errors.New("no readings")
)

// Kind classifies a request failure.
type Kind string

const (
	KindMalformedPayload Kind = "malformed_payload"
	KindInvalidField     Kind = "invalid_field"
	KindUnknownPatient   Kind = "unknown_patient"
	KindNoData           Kind = "no_data"
)

// Human-readable failure reasons returned to callers.
const (
	ReasonBadKeys      = "The dictionary keys are not correct."
	ReasonBadID        = "Please enter a numeric patient ID."
	ReasonBadEmail     = "Please enter a valid email address."
	ReasonBadAge       = "Please enter a numeric age."
	ReasonBadHeartRate = "The heart rate should be an integer."
	ReasonBadTimestamp = "Please enter a timestamp formatted as YYYY-MM-DD HH:MM:SS.ffffff."
)

// Error is a validation or precondition failure of a use case.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func malformed(reason string) *Error {
	return &Error{Kind: KindMalformedPayload, Reason: reason}
}

func invalidField(reason string) *Error {
	return &Error{Kind: KindInvalidField, Reason: reason}
}

func unknownPatient(id int64) *Error {
	return &Error{Kind: KindUnknownPatient, Reason: fmt.Sprintf("Patient ID %d is not registered.", id)}
}

func noData(reason string) *Error {
	return &Error{Kind: KindNoData, Reason: reason}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

package heartrate

import (
	"context"
	"time"
)

// PatientRepository persists patients and their reading histories.
// Methods taking an id return ErrPatientNotFound for unknown patients.
type PatientRepository interface {
	// Create registers a patient, or updates email and age of an existing one
	// without touching its readings.
	Create(ctx context.Context, id int64, email string, ageYears float64) error
	Exists(ctx context.Context, id int64) (bool, error)
	GetAge(ctx context.Context, id int64) (float64, error)
	// AppendReading atomically adds r to the end of the patient's history.
	AppendReading(ctx context.Context, id int64, r Reading) error
	GetAll(ctx context.Context, id int64) ([]int, []time.Time, error)
	Get(ctx context.Context, id int64) (*Patient, error)
}

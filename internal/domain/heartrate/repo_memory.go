package heartrate

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	mu      sync.Mutex
	patient Patient
}

type patientRepoMemory struct {
	mu      sync.RWMutex
	records map[int64]*memoryRecord
}

// NewMemoryPatientRepo returns a process-local repository.
func NewMemoryPatientRepo() PatientRepository {
	return &patientRepoMemory{records: make(map[int64]*memoryRecord)}
}

func (r *patientRepoMemory) record(id int64) (*memoryRecord, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPatientNotFound
	}
	return rec, nil
}

func (r *patientRepoMemory) Create(_ context.Context, id int64, email string, ageYears float64) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		rec = &memoryRecord{patient: Patient{ID: id, Readings: []Reading{}}}
		r.records[id] = rec
	}
	r.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.patient.AttendingEmail = email
	rec.patient.AgeYears = ageYears
	return nil
}

func (r *patientRepoMemory) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok, nil
}

func (r *patientRepoMemory) GetAge(_ context.Context, id int64) (float64, error) {
	rec, err := r.record(id)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.patient.AgeYears, nil
}

func (r *patientRepoMemory) AppendReading(_ context.Context, id int64, reading Reading) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.patient.Readings = append(rec.patient.Readings, reading)
	return nil
}

func (r *patientRepoMemory) GetAll(_ context.Context, id int64) ([]int, []time.Time, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.patient.HeartRates(), rec.patient.Timestamps(), nil
}

func (r *patientRepoMemory) Get(_ context.Context, id int64) (*Patient, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	p := rec.patient
	p.Readings = append([]Reading(nil), rec.patient.Readings...)
	if p.Readings == nil {
		p.Readings = []Reading{}
	}
	return &p, nil
}

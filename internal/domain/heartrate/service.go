package heartrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AlertDispatcher delivers tachycardia alerts. Notify must not block the
// caller and never reports failure.
type AlertDispatcher interface {
	Notify(recipient string, patientID int64, heartRate int, timestamp string)
}

// Config holds the controller settings.
type Config struct {
	AlertsEnabled bool
	// Now stamps accepted readings. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	patients PatientRepository
	alerts   AlertDispatcher
	cfg      Config
	logger   zerolog.Logger
}

func NewService(patients PatientRepository, alerts AlertDispatcher, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{patients: patients, alerts: alerts, cfg: cfg, logger: logger}
}

// RegisterPatient validates a registration payload and stores the patient.
func (s *Service) RegisterPatient(ctx context.Context, payload map[string]any) (*Patient, error) {
	if r := ValidateKeys(payload, RegistrationKeys); !r.OK() {
		return nil, malformed(r.Reason)
	}
	id := ValidatePatientID(payload["patientId"])
	if !id.OK() {
		return nil, id.Err()
	}
	email := ValidateEmail(payload["attendingEmail"])
	if !email.OK() {
		return nil, email.Err()
	}
	age := ValidateAge(payload["ageYears"])
	if !age.OK() {
		return nil, age.Err()
	}

	if err := s.patients.Create(ctx, id.Value, email.Value, age.Value); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", id.Value).Msg("patient registered")
	return &Patient{ID: id.Value, AttendingEmail: email.Value, AgeYears: age.Value}, nil
}

// SubmitReading classifies and stores a heart-rate reading, alerting the
// attending physician when it is tachycardic.
func (s *Service) SubmitReading(ctx context.Context, payload map[string]any) (ReadingView, error) {
	if r := ValidateKeys(payload, ReadingKeys); !r.OK() {
		return ReadingView{}, malformed(r.Reason)
	}
	id := ValidatePatientID(payload["patientId"])
	if !id.OK() {
		return ReadingView{}, id.Err()
	}
	if err := s.requireRegistered(ctx, id.Value); err != nil {
		return ReadingView{}, err
	}
	hr := ValidateHeartRate(payload["heartRate"])
	if !hr.OK() {
		return ReadingView{}, hr.Err()
	}

	age, err := s.patients.GetAge(ctx, id.Value)
	if err != nil {
		return ReadingView{}, s.storeErr(id.Value, err)
	}

	reading := Reading{
		HeartRate: hr.Value,
		Status:    IsTachycardic(age, hr.Value),
		Timestamp: s.cfg.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.patients.AppendReading(ctx, id.Value, reading); err != nil {
		return ReadingView{}, s.storeErr(id.Value, err)
	}

	view := reading.View(id.Value)
	s.logger.Info().
		Int64("patient_id", id.Value).
		Int("heart_rate", reading.HeartRate).
		Str("status", string(reading.Status)).
		Msg("heart rate stored")

	if reading.Status == StatusTachycardic {
		s.logger.Warn().Int64("patient_id", id.Value).Int("heart_rate", reading.HeartRate).Msg("tachycardic heart rate")
		if s.cfg.AlertsEnabled && s.alerts != nil {
			s.alert(ctx, id.Value, reading.HeartRate, view.Timestamp)
		}
	}
	return view, nil
}

func (s *Service) alert(ctx context.Context, id int64, heartRate int, timestamp string) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("patient_id", id).Msg("load attending email for alert")
		return
	}
	s.alerts.Notify(patient.AttendingEmail, id, heartRate, timestamp)
}

// LatestStatus returns the most recent reading of a patient.
func (s *Service) LatestStatus(ctx context.Context, id int64) (ReadingView, error) {
	if err := s.requireRegistered(ctx, id); err != nil {
		return ReadingView{}, err
	}
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return ReadingView{}, s.storeErr(id, err)
	}
	latest, ok := patient.Latest()
	if !ok {
		return ReadingView{}, noData(fmt.Sprintf("No heart rate recorded for patient %d.", id))
	}
	return latest.View(0), nil
}

// History returns every heart rate recorded for a patient, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]int, error) {
	if err := s.requireRegistered(ctx, id); err != nil {
		return nil, err
	}
	heartRates, _, err := s.patients.GetAll(ctx, id)
	if err != nil {
		return nil, s.storeErr(id, err)
	}
	if heartRates == nil {
		heartRates = []int{}
	}
	return heartRates, nil
}

// Average returns the truncated mean of all heart rates of a patient.
func (s *Service) Average(ctx context.Context, id int64) (int, error) {
	if err := s.requireRegistered(ctx, id); err != nil {
		return 0, err
	}
	heartRates, _, err := s.patients.GetAll(ctx, id)
	if err != nil {
		return 0, s.storeErr(id, err)
	}
	avg, err := AverageAll(heartRates)
	if errors.Is(err, ErrNoReadings) {
		return 0, noData(fmt.Sprintf("No heart rate recorded for patient %d.", id))
	}
	return avg, err
}

// AverageSince returns the truncated mean of the heart rates recorded after
// the payload's sinceTimestamp.
func (s *Service) AverageSince(ctx context.Context, payload map[string]any) (int, error) {
	if r := ValidateKeys(payload, WindowKeys); !r.OK() {
		return 0, malformed(r.Reason)
	}
	id := ValidatePatientID(payload["patientId"])
	if !id.OK() {
		return 0, id.Err()
	}
	if err := s.requireRegistered(ctx, id.Value); err != nil {
		return 0, err
	}
	since := ValidateTimestamp(payload["sinceTimestamp"])
	if !since.OK() {
		return 0, since.Err()
	}

	heartRates, timestamps, err := s.patients.GetAll(ctx, id.Value)
	if err != nil {
		return 0, s.storeErr(id.Value, err)
	}
	avg, err := AverageSince(heartRates, timestamps, since.Value)
	if errors.Is(err, ErrNoReadings) {
		return 0, noData(fmt.Sprintf("No heart rate recorded for patient %d after %s.",
			id.Value, FormatTimestamp(since.Value)))
	}
	return avg, err
}

func (s *Service) requireRegistered(ctx context.Context, id int64) error {
	ok, err := s.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return unknownPatient(id)
	}
	return nil
}

// storeErr turns a repository not-found into the caller facing failure.
func (s *Service) storeErr(id int64, err error) error {
	if errors.Is(err, ErrPatientNotFound) {
		return unknownPatient(id)
	}
	return err
}

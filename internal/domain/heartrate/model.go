package heartrate

import (
	"fmt"
	"regexp"
	"time"
)

// Status is the clinical label attached to every reading.
type Status string

const (
	StatusTachycardic    Status = "tachycardic"
	StatusNotTachycardic Status = "not tachycardic"
)

// TimestampLayout is the canonical text form of every timestamp accepted or
// produced by the server. Timestamps carry no zone and are interpreted as UTC.
const TimestampLayout = "2006-01-02 15:04:05.000000"

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{6}$`)

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses s, which must match TimestampLayout exactly.
func ParseTimestamp(s string) (time.Time, error) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %s", s, TimestampLayout)
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}

// Reading is one heart-rate observation with its derived status.
type Reading struct {
	HeartRate int       `json:"heartRate"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Patient is a registered patient and the readings submitted for them.
// Readings is empty until the first submission and is kept in insertion
// order.
type Patient struct {
	ID             int64     `json:"patientId"`
	AttendingEmail string    `json:"attendingEmail"`
	AgeYears       float64   `json:"ageYears"`
	Readings       []Reading `json:"readings"`
}

// Latest returns the most recently appended reading.
func (p *Patient) Latest() (Reading, bool) {
	if len(p.Readings) == 0 {
		return Reading{}, false
	}
	return p.Readings[len(p.Readings)-1], true
}

// HeartRates returns the heart rates in stored order.
func (p *Patient) HeartRates() []int {
	out := make([]int, len(p.Readings))
	for i, r := range p.Readings {
		out[i] = r.HeartRate
	}
	return out
}

// Timestamps returns the reading timestamps in stored order.
func (p *Patient) Timestamps() []time.Time {
	out := make([]time.Time, len(p.Readings))
	for i, r := range p.Readings {
		out[i] = r.Timestamp
	}
	return out
}

// ReadingView is the wire form of a reading.
type ReadingView struct {
	PatientID int64  `json:"patientId,omitempty"`
	HeartRate int    `json:"heartRate"`
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (r Reading) View(patientID int64) ReadingView {
	return ReadingView{
		PatientID: patientID,
		HeartRate: r.HeartRate,
		Status:    r.Status,
		Timestamp: FormatTimestamp(r.Timestamp),
	}
}

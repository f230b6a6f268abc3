package heartrate

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestValidateKeys(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    bool
	}{
		{"exact", map[string]any{"patientId": 1, "heartRate": 80}, true},
		{"missing", map[string]any{"patientId": 1}, false},
		{"extra", map[string]any{"patientId": 1, "heartRate": 80, "x": 1}, false},
		{"renamed", map[string]any{"patient_id": 1, "heartRate": 80}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateKeys(tt.payload, ReadingKeys)
			if r.OK() != tt.want {
				t.Errorf("ValidateKeys(%v) ok = %v, want %v", tt.payload, r.OK(), tt.want)
			}
			if !r.OK() && r.Reason != ReasonBadKeys {
				t.Errorf("unexpected reason %q", r.Reason)
			}
		})
	}
}

func TestValidatePatientID(t *testing.T) {
	valid := []struct {
		in   any
		want int64
	}{
		{5, 5},
		{"5", 5},
		{" 12 ", 12},
		{float64(7), 7},
		{json.Number("42"), 42},
		{"3.0", 3},
	}
	for _, tt := range valid {
		r := ValidatePatientID(tt.in)
		if !r.OK() || r.Value != tt.want {
			t.Errorf("ValidatePatientID(%#v) = %v, %v; want %d", tt.in, r.Value, r.OK(), tt.want)
		}
	}

	invalid := []any{"5.5", "a1", "nan", "", true, nil, 0, -3, 5.5, math.NaN(), math.Inf(1), json.Number("1e400")}
	for _, in := range invalid {
		r := ValidatePatientID(in)
		if r.OK() {
			t.Errorf("ValidatePatientID(%#v) unexpectedly passed with %d", in, r.Value)
		}
		if r.Reason != ReasonBadID {
			t.Errorf("ValidatePatientID(%#v) reason = %q", in, r.Reason)
		}
		if KindOf(r.Err()) != KindInvalidField {
			t.Errorf("ValidatePatientID(%#v) kind = %q", in, KindOf(r.Err()))
		}
	}
}

func TestValidateHeartRate(t *testing.T) {
	for _, in := range []any{120, "80", json.Number("0"), -5} {
		if r := ValidateHeartRate(in); !r.OK() {
			t.Errorf("ValidateHeartRate(%#v) failed: %s", in, r.Reason)
		}
	}
	for _, in := range []any{"80.5", "fast", false, 99.9} {
		r := ValidateHeartRate(in)
		if r.OK() {
			t.Errorf("ValidateHeartRate(%#v) unexpectedly passed", in)
		}
		if r.Reason != ReasonBadHeartRate {
			t.Errorf("reason = %q", r.Reason)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	for _, in := range []any{"a@b.com", "first.last@duke.edu", "5555@domain.com", "x-y@mail.co.uk"} {
		if r := ValidateEmail(in); !r.OK() {
			t.Errorf("ValidateEmail(%#v) failed", in)
		}
	}
	for _, in := range []any{"a.com", "a@b", "@b.com", "a@b.comma", 12, nil} {
		if r := ValidateEmail(in); r.OK() {
			t.Errorf("ValidateEmail(%#v) unexpectedly passed", in)
		}
	}
}

func TestValidateAge(t *testing.T) {
	valid := []struct {
		in   any
		want float64
	}{
		{50, 50},
		{"50.5", 50.5},
		{json.Number("0.25"), 0.25},
		{-1.5, -1.5},
	}
	for _, tt := range valid {
		r := ValidateAge(tt.in)
		if !r.OK() || r.Value != tt.want {
			t.Errorf("ValidateAge(%#v) = %v, %v; want %v", tt.in, r.Value, r.OK(), tt.want)
		}
	}
	for _, in := range []any{"nan", "a50", "inf", true, nil, math.NaN()} {
		r := ValidateAge(in)
		if r.OK() {
			t.Errorf("ValidateAge(%#v) unexpectedly passed", in)
		}
		if r.Reason != ReasonBadAge {
			t.Errorf("reason = %q", r.Reason)
		}
	}
}

func TestValidateTimestamp(t *testing.T) {
	r := ValidateTimestamp("2018-03-09 11:00:36.372339")
	if !r.OK() {
		t.Fatalf("expected valid timestamp, got %q", r.Reason)
	}
	want := time.Date(2018, 3, 9, 11, 0, 36, 372339000, time.UTC)
	if !r.Value.Equal(want) {
		t.Errorf("got %v, want %v", r.Value, want)
	}

	invalid := []any{
		"2018-03-09 11:00:36",
		"2018-03-09 11:00:36.372",
		"2018-03-09T11:00:36.372339",
		"2018-3-09 11:00:36.372339",
		"2018-02-30 11:00:36.372339",
		"2018-03-09 25:00:36.372339",
		"",
		1520593236,
	}
	for _, in := range invalid {
		r := ValidateTimestamp(in)
		if r.OK() {
			t.Errorf("ValidateTimestamp(%#v) unexpectedly passed", in)
		}
		if r.Reason != ReasonBadTimestamp {
			t.Errorf("reason = %q", r.Reason)
		}
	}
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	s := FormatTimestamp(ts)
	if s != "2024-01-02 03:04:05.000006" {
		t.Fatalf("FormatTimestamp = %q", s)
	}
	back, err := ParseTimestamp(s)
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if !back.Equal(ts) {
		t.Errorf("round trip got %v, want %v", back, ts)
	}
}

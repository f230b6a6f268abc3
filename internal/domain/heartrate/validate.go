package heartrate

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of a single field check: either a value or a
// failure reason.
type Result[T any] struct {
	Value  T
	Reason string
	ok     bool
}

func success[T any](v T) Result[T] {
	return Result[T]{Value: v, ok: true}
}

func failure[T any](reason string) Result[T] {
	return Result[T]{Reason: reason}
}

// OK reports whether the check passed.
func (r Result[T]) OK() bool { return r.ok }

// Err returns nil for a passing result and an invalid_field *Error otherwise.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	return invalidField(r.Reason)
}

// Expected key sets per request payload.
var (
	RegistrationKeys = []string{"patientId", "attendingEmail", "ageYears"}
	ReadingKeys      = []string{"patientId", "heartRate"}
	WindowKeys       = []string{"patientId", "sinceTimestamp"}
)

// ValidateKeys passes only when payload has exactly the expected keys.
func ValidateKeys(payload map[string]any, expected []string) Result[struct{}] {
	if len(payload) != len(expected) {
		return failure[struct{}](ReasonBadKeys)
	}
	for _, k := range expected {
		if _, ok := payload[k]; !ok {
			return failure[struct{}](ReasonBadKeys)
		}
	}
	return success(struct{}{})
}

// ValidatePatientID accepts a whole number or whole-number string and
// requires it to be strictly positive.
func ValidatePatientID(v any) Result[int64] {
	n, ok := wholeNumber(v)
	if !ok || n <= 0 {
		return failure[int64](ReasonBadID)
	}
	return success(n)
}

// ValidateHeartRate accepts a whole number or whole-number string.
func ValidateHeartRate(v any) Result[int] {
	n, ok := wholeNumber(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return failure[int](ReasonBadHeartRate)
	}
	return success(int(n))
}

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// ValidateEmail checks v against the address pattern.
func ValidateEmail(v any) Result[string] {
	s, ok := v.(string)
	if !ok || !emailPattern.MatchString(s) {
		return failure[string](ReasonBadEmail)
	}
	return success(s)
}

// ValidateAge accepts any finite real number or numeric string.
func ValidateAge(v any) Result[float64] {
	f, ok := realNumber(v)
	if !ok {
		return failure[float64](ReasonBadAge)
	}
	return success(f)
}

// ValidateTimestamp accepts only strings in TimestampLayout.
func ValidateTimestamp(v any) Result[time.Time] {
	s, ok := v.(string)
	if !ok {
		return failure[time.Time](ReasonBadTimestamp)
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return failure[time.Time](ReasonBadTimestamp)
	}
	return success(t)
}

// wholeNumber converts JSON-decoded numbers and numeric strings to int64,
// rejecting booleans, fractions and non-finite values.
func wholeNumber(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		return floatToInt(x)
	case json.Number:
		return parseWhole(string(x))
	case string:
		return parseWhole(strings.TrimSpace(x))
	default:
		return 0, false
	}
}

func parseWhole(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func realNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		parsed, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

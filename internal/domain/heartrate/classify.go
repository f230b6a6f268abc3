package heartrate

import "math"

type ageBand struct {
	min, max float64 // inclusive, in years
	limit    int     // highest normal heart rate
}

const day = 1.0 / 365.0

var bands = []ageBand{
	{min: math.Inf(-1), max: 2 * day, limit: 159},
	{min: 3 * day, max: 6 * day, limit: 166},
	{min: 7 * day, max: 21 * day, limit: 182},
	{min: 22 * day, max: 60 * day, limit: 179},
	{min: 90 * day, max: 150 * day, limit: 186},
	{min: 180 * day, max: 330 * day, limit: 169},
	{min: 331 * day, max: 2, limit: 151},
	{min: 3, max: 4, limit: 137},
	{min: 5, max: 7, limit: 133},
	{min: 8, max: 11, limit: 130},
	{min: 12, max: 15, limit: 119},
}

const adultLimit = 100

// IsTachycardic classifies a heart rate for a patient of the given age.
// Ages that fall between bands are always classified as tachycardic.
func IsTachycardic(ageYears float64, heartRate int) Status {
	if ageYears > 15 {
		return statusFor(heartRate, adultLimit)
	}
	for _, b := range bands {
		if ageYears >= b.min && ageYears <= b.max {
			return statusFor(heartRate, b.limit)
		}
	}
	return StatusTachycardic
}

func statusFor(heartRate, limit int) Status {
	if heartRate <= limit {
		return StatusNotTachycardic
	}
	return StatusTachycardic
}

package heartrate

import "time"

// AverageAll returns the truncated integer mean of heartRates.
func AverageAll(heartRates []int) (int, error) {
	if len(heartRates) == 0 {
		return 0, ErrNoReadings
	}
	sum := 0
	for _, hr := range heartRates {
		sum += hr
	}
	return sum / len(heartRates), nil
}

// AverageSince averages the heart rates recorded strictly after since.
// heartRates and timestamps are parallel slices.
func AverageSince(heartRates []int, timestamps []time.Time, since time.Time) (int, error) {
	var window []int
	for i, ts := range timestamps {
		if i >= len(heartRates) {
			break
		}
		if ts.After(since) {
			window = append(window, heartRates[i])
		}
	}
	return AverageAll(window)
}

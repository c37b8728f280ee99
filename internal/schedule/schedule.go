// Package schedule computes sampling wake times aligned to wall-clock multiples
// of a fixed period measured from local midnight.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package schedule

import (
	"errors"
	"time"
)

// DefaultPeriod is the sampling period of the climate sampler.
const DefaultPeriod = 10 * time.Minute

// ErrInvalidPeriod is returned for a period that is zero or negative.
var ErrInvalidPeriod = errors.New("schedule: period must be greater than zero")

// SleepDuration returns the delay from now until the next multiple of period
// since midnight in now's location. At an exact boundary it returns a full
// period, never zero.
func SleepDuration(now time.Time, period time.Duration) (time.Duration, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	remainder := sinceMidnight(now) % period
	if remainder == 0 {
		return period, nil
	}
	return period - remainder, nil
}

// Next returns the wake instant following now.
func Next(now time.Time, period time.Duration) (time.Time, error) {
	d, err := SleepDuration(now, period)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}

// sinceMidnight uses the wall-clock reading so DST transitions do not shift
// the alignment.
func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

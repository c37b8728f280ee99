// Package sensor wraps the flaky DHT22 reads with the two read disciplines used
// by the daemons: a bounded retrying read for interactive queries and a single
// best-effort read for scheduled samples.
package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/climate-bot/internal/dht"
)

// ErrSensorTimeout is returned once the retry bound is exhausted.
var ErrSensorTimeout = errors.New("sensor: timed out waiting for a reading")

// Retry defaults for the interactive read.
const (
	DefaultAttempts = 15
	DefaultInterval = 2 * time.Second
)

// Retrying retries transient dht.ErrNotReady failures up to Attempts times,
// sleeping Interval between them. Any other error is returned immediately.
type Retrying struct {
	sensor   dht.Sensor
	attempts int
	interval time.Duration
	sleep    func(time.Duration)
}

// NewRetrying creates a Retrying reader with the default bound and interval.
func NewRetrying(s dht.Sensor) *Retrying {
	return &Retrying{
		sensor:   s,
		attempts: DefaultAttempts,
		interval: DefaultInterval,
		sleep:    time.Sleep,
	}
}

// WithSleep replaces the sleep function. Used by tests.
func (r *Retrying) WithSleep(sleep func(time.Duration)) *Retrying {
	r.sleep = sleep
	return r
}

// Temperature returns the temperature in degrees Celsius.
func (r *Retrying) Temperature() (float64, error) {
	return r.try("temperature", r.sensor.Temperature)
}

// Humidity returns the relative humidity in percent.
func (r *Retrying) Humidity() (float64, error) {
	return r.try("humidity", r.sensor.Humidity)
}

func (r *Retrying) try(what string, read func() (float64, error)) (float64, error) {
	for i := 0; i < r.attempts; i++ {
		v, err := read()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, dht.ErrNotReady) {
			return 0, fmt.Errorf("read %s: %w", what, err)
		}
		if i < r.attempts-1 {
			r.sleep(r.interval)
		}
	}
	return 0, fmt.Errorf("read %s after %d attempts: %w", what, r.attempts, ErrSensorTimeout)
}

// BestEffort performs a single read. A transient failure yields nil rather than
// an error, leaving retry policy to the caller.
type BestEffort struct {
	sensor dht.Sensor
}

// NewBestEffort creates a non-retrying reader.
func NewBestEffort(s dht.Sensor) *BestEffort {
	return &BestEffort{sensor: s}
}

// Temperature returns the temperature, or nil if the sensor was not ready.
func (b *BestEffort) Temperature() (*float64, error) {
	return once("temperature", b.sensor.Temperature)
}

// Humidity returns the humidity, or nil if the sensor was not ready.
func (b *BestEffort) Humidity() (*float64, error) {
	return once("humidity", b.sensor.Humidity)
}

func once(what string, read func() (float64, error)) (*float64, error) {
	v, err := read()
	if errors.Is(err, dht.ErrNotReady) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return &v, nil
}

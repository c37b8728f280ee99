package dht

import (
	"errors"
	"sync"
)

// FakeSensor is a test double that returns scripted measurements.
// Safe for concurrent use.
type FakeSensor struct {
	// Temperatures and Humidities contain scripted results. Each call consumes
	// the next result; once exhausted the last one repeats.
	Temperatures []Result
	Humidities   []Result

	// TemperatureCalls and HumidityCalls count reads.
	TemperatureCalls int
	HumidityCalls    int

	// Closed tracks if Close was called.
	Closed bool

	mu     sync.Mutex
	tIndex int
	hIndex int
}

// Result is one scripted read outcome.
type Result struct {
	Value float64
	Err   error
}

// NewFakeSensor creates a FakeSensor that always returns the given values.
func NewFakeSensor(temperature, humidity float64) *FakeSensor {
	return &FakeSensor{
		Temperatures: []Result{{Value: temperature}},
		Humidities:   []Result{{Value: humidity}},
	}
}

// Failing returns n results that fail with err followed by one success.
func Failing(n int, err error, value float64) []Result {
	out := make([]Result, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, Result{Err: err})
	}
	return append(out, Result{Value: value})
}

// Temperature returns the next scripted temperature.
func (f *FakeSensor) Temperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TemperatureCalls++
	return next(f.Temperatures, &f.tIndex)
}

// Humidity returns the next scripted humidity.
func (f *FakeSensor) Humidity() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HumidityCalls++
	return next(f.Humidities, &f.hIndex)
}

// Calls returns the read counters under the lock.
func (f *FakeSensor) Calls() (temperature, humidity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TemperatureCalls, f.HumidityCalls
}

func next(results []Result, index *int) (float64, error) {
	if len(results) == 0 {
		return 0, errors.New("no results configured")
	}
	r := results[*index]
	if *index < len(results)-1 {
		*index++
	}
	return r.Value, r.Err
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset rewinds both scripts and clears the counters.
func (f *FakeSensor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tIndex = 0
	f.hIndex = 0
	f.TemperatureCalls = 0
	f.HumidityCalls = 0
	f.Closed = false
}

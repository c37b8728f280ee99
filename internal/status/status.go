// Package status provides a thread-safe status tracker for the climate sampler.
// It is read by the HTTP status handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/climate-bot/internal/timeseries"
)

// Config contains sampler configuration for display.
type Config struct {
	PeriodMs int64
	Broker   string
	HTTPAddr string
	DataDir  string
}

// Counts tallies samples taken and values the sensor did not deliver.
type Counts struct {
	Samples             int
	TemperatureFailures int
	HumidityFailures    int
	WriteFailures       int
}

// Snapshot is a point-in-time view of sampler state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Last          *timeseries.Reading
	LastAt        time.Time
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	NextSample    time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the sampler started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable sampler state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record stores the latest sample and updates the counters.
// Called from runLoop after every sample.
func (t *Tracker) Record(at time.Time, r timeseries.Reading, written bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Last = &r
	t.snap.LastAt = at
	t.snap.Counts.Samples++
	if r.Temperature == nil {
		t.snap.Counts.TemperatureFailures++
	}
	if r.Humidity == nil {
		t.snap.Counts.HumidityFailures++
	}
	if !written {
		t.snap.Counts.WriteFailures++
	}
}

// SetNextSample sets the time the next sample is due.
func (t *Tracker) SetNextSample(next time.Time) {
	t.mu.Lock()
	t.snap.NextSample = next
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the sampler state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	s.Now = time.Now()
	return s
}

package main

import (
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/climate-bot/internal/dht"
	"github.com/sweeney/climate-bot/internal/mqtt"
	"github.com/sweeney/climate-bot/internal/schedule"
	"github.com/sweeney/climate-bot/internal/sensor"
	"github.com/sweeney/climate-bot/internal/status"
	"github.com/sweeney/climate-bot/internal/timeseries"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// failingStore rejects every append.
type failingStore struct{}

func (failingStore) Append(time.Time, timeseries.Reading) error {
	return errors.New("disk full")
}

type harness struct {
	reader    sampleReader
	store     sampleStore
	pub       *mqtt.FakePublisher
	tracker   *status.Tracker
	period    time.Duration
	clock     func() time.Time
	waits     []time.Duration
	nSamples  int
	signal    os.Signal
	mqttState mqtt.ConnectionStatus
}

// run drives runLoop through nSamples wakes and then delivers the signal.
func (h *harness) run(t *testing.T) error {
	t.Helper()
	fire := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	after := func(d time.Duration) <-chan time.Time {
		h.waits = append(h.waits, d)
		return fire
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(h.reader, h.store, h.pub, h.mqttState, h.tracker, h.period, h.clock, after, sig)
	}()

	for i := 0; i < h.nSamples; i++ {
		fire <- time.Time{}
	}
	sig <- h.signal

	return <-errCh
}

func newHarness(t *testing.T, s *dht.FakeSensor, nSamples int) (*harness, *timeseries.Store) {
	t.Helper()
	store, err := timeseries.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return &harness{
		reader:   sensor.NewBestEffort(s),
		store:    store,
		pub:      mqtt.NewFakePublisher(),
		tracker:  status.NewTracker(time.Now(), status.Config{}),
		period:   10 * time.Minute,
		clock:    fakeClock(time.Date(2026, 3, 1, 9, 7, 30, 0, time.Local), 10*time.Minute),
		nSamples: nSamples,
		signal:   syscall.SIGTERM,
	}, store
}

func TestRunLoopAppendsSamples(t *testing.T) {
	h, store := newHarness(t, dht.NewFakeSensor(21.5, 40.1), 3)

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	readings, err := store.ReadAll(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	for i, r := range readings {
		if r.Temperature == nil || *r.Temperature != 21.5 {
			t.Errorf("reading %d temperature: got %v, want 21.5", i, r.Temperature)
		}
		if r.Humidity == nil || *r.Humidity != 40.1 {
			t.Errorf("reading %d humidity: got %v, want 40.1", i, r.Humidity)
		}
	}
	if len(h.pub.Events) != 3 {
		t.Errorf("expected 3 published readings, got %d", len(h.pub.Events))
	}
}

func TestRunLoopAlignsWakes(t *testing.T) {
	h, _ := newHarness(t, dht.NewFakeSensor(20, 50), 1)
	h.clock = func() time.Time { return time.Date(2026, 3, 1, 9, 7, 30, 0, time.Local) }

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// One wait before the sample, one before the signal
	if len(h.waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(h.waits))
	}
	want := 2*time.Minute + 30*time.Second
	for i, w := range h.waits {
		if w != want {
			t.Errorf("wait %d: got %v, want %v", i, w, want)
		}
	}

	next := h.tracker.Snapshot().NextSample
	if !next.Equal(time.Date(2026, 3, 1, 9, 10, 0, 0, time.Local)) {
		t.Errorf("NextSample: got %v, want 09:10", next)
	}
}

func TestRunLoopSensorNotReadyRecordsNull(t *testing.T) {
	s := &dht.FakeSensor{
		Temperatures: []dht.Result{{Err: dht.ErrNotReady}},
		Humidities:   []dht.Result{{Value: 55}},
	}
	h, store := newHarness(t, s, 2)

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	readings, _ := store.ReadAll(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local))
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].Temperature != nil {
		t.Errorf("temperature: got %v, want null", *readings[0].Temperature)
	}
	if readings[0].Humidity == nil || *readings[0].Humidity != 55 {
		t.Errorf("humidity: got %v, want 55", readings[0].Humidity)
	}

	counts := h.tracker.Snapshot().Counts
	if counts.Samples != 2 || counts.TemperatureFailures != 2 || counts.HumidityFailures != 0 {
		t.Errorf("counts: got %+v", counts)
	}
}

func TestRunLoopSensorErrorDoesNotStop(t *testing.T) {
	s := &dht.FakeSensor{
		Temperatures: []dht.Result{{Err: errors.New("gpio gone")}},
		Humidities:   []dht.Result{{Err: errors.New("gpio gone")}},
	}
	h, store := newHarness(t, s, 2)

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	readings, _ := store.ReadAll(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local))
	if len(readings) != 2 {
		t.Fatalf("expected 2 null readings, got %d", len(readings))
	}
	if readings[1].Temperature != nil || readings[1].Humidity != nil {
		t.Errorf("expected nulls, got %+v", readings[1])
	}
}

func TestRunLoopAppendErrorDoesNotStop(t *testing.T) {
	h, _ := newHarness(t, dht.NewFakeSensor(20, 50), 2)
	h.store = failingStore{}

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	counts := h.tracker.Snapshot().Counts
	if counts.WriteFailures != 2 {
		t.Errorf("WriteFailures: got %d, want 2", counts.WriteFailures)
	}
	// Readings are still published
	if len(h.pub.Events) != 2 {
		t.Errorf("expected 2 published readings, got %d", len(h.pub.Events))
	}
}

func TestRunLoopPublishError(t *testing.T) {
	h, store := newHarness(t, dht.NewFakeSensor(20, 50), 2)
	h.pub.PublishError = errors.New("broker unavailable")

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	readings, _ := store.ReadAll(time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local))
	if len(readings) != 2 {
		t.Errorf("expected 2 readings despite publish errors, got %d", len(readings))
	}

	found := false
	for _, se := range h.pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			found = true
		}
	}
	if !found {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestRunLoopShutdown(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGHUP, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			h, _ := newHarness(t, dht.NewFakeSensor(20, 50), 0)
			h.signal = tt.sig

			if err := h.run(t); err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}
			if len(h.pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(h.pub.SystemEvents))
			}
			se := h.pub.SystemEvents[0]
			if se.Event != "SHUTDOWN" || se.Reason != tt.want || !se.Retained {
				t.Errorf("got %+v, want retained SHUTDOWN/%s", se, tt.want)
			}
			if len(h.pub.Events) != 0 {
				t.Errorf("expected no readings, got %d", len(h.pub.Events))
			}
		})
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	h, _ := newHarness(t, dht.NewFakeSensor(20, 50), 1)
	h.pub.Connected = true
	h.mqttState = h.pub

	if err := h.run(t); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !h.tracker.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true after a sample")
	}
}

func TestRunLoopInvalidPeriod(t *testing.T) {
	h, _ := newHarness(t, dht.NewFakeSensor(20, 50), 0)
	h.period = 0

	sig := make(chan os.Signal)
	after := func(time.Duration) <-chan time.Time { return nil }
	err := runLoop(h.reader, h.store, h.pub, nil, h.tracker, h.period, h.clock, after, sig)
	if !errors.Is(err, schedule.ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
}

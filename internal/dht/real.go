//go:build linux

package dht

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const (
	// Host start signal: hold the line low for at least 1ms.
	startSignal = 1200 * time.Microsecond

	// A full response is ~5ms; leave headroom for event delivery.
	captureWindow = 20 * time.Millisecond

	// The DHT22 cannot be sampled faster than once every 2s, so a frame is
	// reused for that long. Temperature then Humidity share one transaction.
	minInterval = 2 * time.Second
)

// RealSensor reads a DHT22 from actual hardware using the Linux GPIO character device.
type RealSensor struct {
	chip *gpiocdev.Chip
	pin  int

	mu     sync.Mutex
	last   Frame
	lastAt time.Time
}

// NewRealSensor opens the GPIO chip for a DHT22 on the given line offset.
// The line itself is only requested for the duration of each transaction, so
// another process can read the same sensor between transactions.
func NewRealSensor(chipName string, pin int) (*RealSensor, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealSensor{chip: chip, pin: pin}, nil
}

// Temperature returns the temperature in degrees Celsius.
func (s *RealSensor) Temperature() (float64, error) {
	f, err := s.frame()
	if err != nil {
		return 0, err
	}
	return f.Temperature, nil
}

// Humidity returns the relative humidity in percent.
func (s *RealSensor) Humidity() (float64, error) {
	f, err := s.frame()
	if err != nil {
		return 0, err
	}
	return f.Humidity, nil
}

func (s *RealSensor) frame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastAt.IsZero() && time.Since(s.lastAt) < minInterval {
		return s.last, nil
	}

	f, err := s.transact()
	if err != nil {
		return Frame{}, err
	}
	s.last = f
	s.lastAt = time.Now()
	return f, nil
}

// transact sends the start signal and captures the sensor's response edges.
// The handler is registered while the line is still an output; edge detection
// is enabled by the reconfigure that releases the line.
func (s *RealSensor) transact() (Frame, error) {
	var (
		emu   sync.Mutex
		edges []Edge
	)
	handler := func(evt gpiocdev.LineEvent) {
		emu.Lock()
		edges = append(edges, Edge{
			Rising: evt.Type == gpiocdev.LineEventRisingEdge,
			At:     evt.Timestamp,
		})
		emu.Unlock()
	}

	line, err := s.chip.RequestLine(s.pin, gpiocdev.AsOutput(0), gpiocdev.WithEventHandler(handler))
	if err != nil {
		if errors.Is(err, syscall.EBUSY) {
			return Frame{}, fmt.Errorf("%w: line %d busy", ErrNotReady, s.pin)
		}
		return Frame{}, fmt.Errorf("request data pin %d: %w", s.pin, err)
	}
	defer line.Close()

	time.Sleep(startSignal)

	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithBothEdges); err != nil {
		return Frame{}, fmt.Errorf("release data pin %d: %w", s.pin, err)
	}

	time.Sleep(captureWindow)

	// Leave the line as a pulled-up input, the DHT22 idle state.
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithoutEdges); err != nil {
		return Frame{}, fmt.Errorf("idle data pin %d: %w", s.pin, err)
	}

	emu.Lock()
	captured := append([]Edge(nil), edges...)
	emu.Unlock()

	return Decode(captured)
}

// Close releases the GPIO chip.
func (s *RealSensor) Close() error {
	if s.chip == nil {
		return nil
	}
	if err := s.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

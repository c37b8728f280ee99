package dht

import (
	"fmt"
	"time"
)

// Edge is one captured transition of the data line. At is the kernel event
// timestamp; only differences between edges are meaningful.
type Edge struct {
	Rising bool
	At     time.Duration
}

// Frame is one decoded 40-bit DHT22 transmission.
type Frame struct {
	Humidity    float64
	Temperature float64
}

const (
	frameBits = 40

	// A high pulse of ~26-28µs encodes 0 and ~70µs encodes 1.
	bitThreshold = 50 * time.Microsecond
)

// Decode turns the captured line transitions of one transaction into a Frame.
// The data bits are the last 40 high pulses; the response preamble before them
// may or may not have been captured. Short captures, checksum mismatches and
// out-of-range humidity are reported as ErrNotReady.
func Decode(edges []Edge) (Frame, error) {
	var widths []time.Duration
	var riseAt time.Duration
	rising := false
	for _, e := range edges {
		if e.Rising {
			riseAt = e.At
			rising = true
			continue
		}
		if rising {
			widths = append(widths, e.At-riseAt)
			rising = false
		}
	}
	if len(widths) < frameBits {
		return Frame{}, fmt.Errorf("%w: captured %d of %d bits", ErrNotReady, len(widths), frameBits)
	}
	widths = widths[len(widths)-frameBits:]

	var b [5]byte
	for i, w := range widths {
		b[i/8] <<= 1
		if w > bitThreshold {
			b[i/8] |= 1
		}
	}

	if sum := b[0] + b[1] + b[2] + b[3]; sum != b[4] {
		return Frame{}, fmt.Errorf("%w: checksum %#02x, want %#02x", ErrNotReady, sum, b[4])
	}

	humidity := float64(uint16(b[0])<<8|uint16(b[1])) / 10
	temperature := float64(uint16(b[2]&0x7f)<<8|uint16(b[3])) / 10
	if b[2]&0x80 != 0 {
		temperature = -temperature
	}
	if humidity > 100 {
		return Frame{}, fmt.Errorf("%w: humidity %.1f out of range", ErrNotReady, humidity)
	}

	return Frame{Humidity: humidity, Temperature: temperature}, nil
}

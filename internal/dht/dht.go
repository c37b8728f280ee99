// Package dht provides DHT22 temperature and humidity reads with hardware abstraction.
// The real implementation bit-bangs the single-wire protocol over the Linux GPIO
// character device. The fake implementation allows testing without hardware.
package dht

import "errors"

// ErrNotReady is the transient condition raised when the sensor did not deliver
// a usable frame: missing edges, checksum mismatch, or the line held by another
// process. Callers may retry.
var ErrNotReady = errors.New("dht: sensor not ready")

// Sensor reads the two DHT22 measurements.
type Sensor interface {
	// Temperature returns the temperature in degrees Celsius.
	Temperature() (float64, error)

	// Humidity returns the relative humidity in percent.
	Humidity() (float64, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults for a DHT22 wired to BCM 4 (physical pin 7).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 4
)

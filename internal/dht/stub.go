//go:build !linux

package dht

import "errors"

// RealSensor is not available on non-Linux platforms.
type RealSensor struct{}

// NewRealSensor returns an error on non-Linux platforms.
func NewRealSensor(chipName string, pin int) (*RealSensor, error) {
	return nil, errors.New("dht: not supported on this platform (requires Linux)")
}

// Temperature is not implemented on non-Linux platforms.
func (s *RealSensor) Temperature() (float64, error) {
	return 0, errors.New("dht: not supported")
}

// Humidity is not implemented on non-Linux platforms.
func (s *RealSensor) Humidity() (float64, error) {
	return 0, errors.New("dht: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSensor) Close() error {
	return nil
}

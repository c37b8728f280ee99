// Package mqtt publishes sampled climate readings to MQTT with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/climate-bot/internal/timeseries"
)

// Topic is the MQTT topic for sensor readings.
const Topic = "climate/sensor/readings"

// TopicSystem is the MQTT topic for sampler lifecycle events.
const TopicSystem = "climate/sensor/system"

// Publisher publishes readings to MQTT.
type Publisher interface {
	// Publish sends a reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ReadingEvent) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReadingEvent is one sampled reading with the instant it was taken.
type ReadingEvent struct {
	Time    time.Time
	Reading timeseries.Reading
}

// SystemEvent represents a lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g., "STARTUP", "SHUTDOWN"
	Reason    string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Retained  bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a reading.
type Payload struct {
	Reading ReadingPayload `json:"reading"`
}

// ReadingPayload contains the reading details. Null values mean the sensor
// was not ready for that sample.
type ReadingPayload struct {
	Date        string   `json:"date"`
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// FormatPayload creates the JSON payload for a reading. Date and timestamp
// are local wall-clock values, matching the day log.
func FormatPayload(event ReadingEvent) ([]byte, error) {
	payload := Payload{
		Reading: ReadingPayload{
			Date:        event.Time.Format(timeseries.DayLayout),
			Timestamp:   event.Reading.Timestamp,
			Temperature: event.Reading.Temperature,
			Humidity:    event.Reading.Humidity,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// willPayload is registered with the broker as the last will; it carries no
// timestamp because it is sent by the broker, not by us.
var willPayload = []byte(`{"system":{"event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`)

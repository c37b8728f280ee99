package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	NextSample    string       `json:"next_sample,omitempty"`
	Last          *ReadingJSON `json:"last_reading"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the most recent sample.
type ReadingJSON struct {
	Date        string   `json:"date"`
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of sample counters.
type CountsJSON struct {
	Samples             int `json:"samples"`
	TemperatureFailures int `json:"temperature_failures"`
	HumidityFailures    int `json:"humidity_failures"`
	WriteFailures       int `json:"write_failures"`
}

// ConfigJSON is the JSON representation of sampler config.
type ConfigJSON struct {
	PeriodMs int64  `json:"period_ms"`
	Broker   string `json:"broker"`
	HTTPAddr string `json:"http_addr"`
	DataDir  string `json:"data_dir"`
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := StatusInner{
		Ready:         snap.Last != nil,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Samples:             snap.Counts.Samples,
			TemperatureFailures: snap.Counts.TemperatureFailures,
			HumidityFailures:    snap.Counts.HumidityFailures,
			WriteFailures:       snap.Counts.WriteFailures,
		},
		Config: ConfigJSON{
			PeriodMs: snap.Config.PeriodMs,
			Broker:   snap.Config.Broker,
			HTTPAddr: snap.Config.HTTPAddr,
			DataDir:  snap.Config.DataDir,
		},
	}
	if !snap.NextSample.IsZero() {
		inner.NextSample = snap.NextSample.UTC().Format(time.RFC3339)
	}
	if snap.Last != nil {
		inner.Last = &ReadingJSON{
			Date:        snap.LastAt.Format("2006-01-02"),
			Timestamp:   snap.Last.Timestamp,
			Temperature: snap.Last.Temperature,
			Humidity:    snap.Last.Humidity,
		}
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

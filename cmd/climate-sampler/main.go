// Command climate-sampler records DHT22 readings to per-day logs on a
// wall-clock aligned period and optionally publishes them to MQTT.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/climate-bot/internal/config"
	"github.com/sweeney/climate-bot/internal/dht"
	"github.com/sweeney/climate-bot/internal/mqtt"
	"github.com/sweeney/climate-bot/internal/schedule"
	"github.com/sweeney/climate-bot/internal/sensor"
	"github.com/sweeney/climate-bot/internal/status"
	"github.com/sweeney/climate-bot/internal/timeseries"
	"github.com/sweeney/climate-bot/internal/web"
)

func main() {
	cfg, err := config.SamplerFromEnv()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// sampleReader is satisfied by sensor.BestEffort.
type sampleReader interface {
	Temperature() (*float64, error)
	Humidity() (*float64, error)
}

// sampleStore is satisfied by timeseries.Store.
type sampleStore interface {
	Append(day time.Time, r timeseries.Reading) error
}

func run(cfg config.Sampler) error {
	// Validate before touching hardware
	if _, err := schedule.SleepDuration(time.Now(), cfg.Period); err != nil {
		return err
	}

	store, err := timeseries.New(cfg.SensorDir())
	if err != nil {
		return err
	}

	dev, err := dht.NewRealSensor(cfg.Sensor.Chip, cfg.Sensor.Pin)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer dev.Close()

	var publisher mqtt.Publisher = noopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.Broker)
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		PeriodMs: cfg.Period.Milliseconds(),
		Broker:   cfg.Broker,
		HTTPAddr: cfg.HTTPAddr,
		DataDir:  cfg.DataDir,
	})

	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "STARTUP",
		Retained:  true,
	}); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: period=%v dir=%s chip=%s pin=%d broker=%q",
		cfg.Period, store.Dir(), cfg.Sensor.Chip, cfg.Sensor.Pin, cfg.Broker)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(sensor.NewBestEffort(dev), store, publisher, mqttStatus, tracker, cfg.Period, time.Now, time.After, sigCh)
}

func runLoop(reader sampleReader, store sampleStore, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, period time.Duration, now func() time.Time, after func(time.Duration) <-chan time.Time, sig <-chan os.Signal) error {
	for {
		t := now()
		wait, err := schedule.SleepDuration(t, period)
		if err != nil {
			return err
		}
		if tracker != nil {
			tracker.SetNextSample(t.Add(wait))
		}

		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName(s),
				Retained:  true,
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			}
			return nil

		case <-after(wait):
			sample(reader, store, publisher, mqttStatus, tracker, now())
		}
	}
}

// sample takes one best-effort reading. No failure here stops the loop.
func sample(reader sampleReader, store sampleStore, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, t time.Time) {
	temp, err := reader.Temperature()
	if err != nil {
		log.Printf("sampler: %v", err)
	}
	hum, err := reader.Humidity()
	if err != nil {
		log.Printf("sampler: %v", err)
	}
	if temp == nil || hum == nil {
		log.Printf("sampler: sensor not ready (temperature=%v humidity=%v)", temp != nil, hum != nil)
	}

	r := timeseries.NewReading(t, temp, hum)
	written := true
	if err := store.Append(t, r); err != nil {
		log.Printf("sampler: append: %v", err)
		written = false
	}

	if err := publisher.Publish(mqtt.ReadingEvent{Time: t, Reading: r}); err != nil {
		log.Printf("publish error: %v", err)
	}

	if tracker != nil {
		tracker.Record(t, r, written)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// noopPublisher stands in when no broker is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(mqtt.ReadingEvent) error { return nil }
func (noopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (noopPublisher) Close() error { return nil }

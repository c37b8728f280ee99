// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sweeney/climate-bot/internal/dht"
	"github.com/sweeney/climate-bot/internal/membership"
	"github.com/sweeney/climate-bot/internal/schedule"
)

// ErrMissing is returned when a required variable is unset.
var ErrMissing = errors.New("required environment variable not set")

const (
	DefaultDataDir   = "./data"
	DefaultPiholeURL = "http://192.168.0.188/admin"
	DefaultPiholeLog = "/var/lib/pihole/pihole.log"
	DefaultHTTPAddr  = ":8080"
)

// Sensor selects the DHT22 data line.
type Sensor struct {
	Chip string
	Pin  int
}

// Bot configures the chat bot process.
type Bot struct {
	Token          string
	Admin          membership.ID
	DataDir        string
	PiholeURL      string
	PiholePassword string
	PiholeLog      string
	HistoryFilter  string
	Sensor         Sensor
}

// WhitelistPath is the persisted allow set.
func (c Bot) WhitelistPath() string {
	return filepath.Join(c.DataDir, "whitelist.json")
}

// BlacklistPath is the persisted deny set.
func (c Bot) BlacklistPath() string {
	return filepath.Join(c.DataDir, "blacklist.json")
}

// SensorDir is where the day logs live.
func (c Bot) SensorDir() string {
	return filepath.Join(c.DataDir, "sensor")
}

// Sampler configures the periodic sampler process.
type Sampler struct {
	DataDir  string
	Period   time.Duration
	Broker   string // empty disables MQTT
	HTTPAddr string // empty disables the status page
	Sensor   Sensor
}

// SensorDir is where the day logs live.
func (c Sampler) SensorDir() string {
	return filepath.Join(c.DataDir, "sensor")
}

// BotFromEnv reads the bot configuration.
func BotFromEnv() (Bot, error) {
	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		return Bot{}, fmt.Errorf("TELEGRAM_TOKEN: %w", ErrMissing)
	}
	rawAdmin := os.Getenv("TELEGRAM_ADMIN")
	if rawAdmin == "" {
		return Bot{}, fmt.Errorf("TELEGRAM_ADMIN: %w", ErrMissing)
	}
	admin, err := membership.ParseID(rawAdmin)
	if err != nil {
		return Bot{}, fmt.Errorf("TELEGRAM_ADMIN: %w", err)
	}
	sensor, err := sensorFromEnv()
	if err != nil {
		return Bot{}, err
	}

	return Bot{
		Token:          token,
		Admin:          admin,
		DataDir:        getenvDefault("CLIMATE_DATA_DIR", DefaultDataDir),
		PiholeURL:      getenvDefault("PIHOLE_URL", DefaultPiholeURL),
		PiholePassword: os.Getenv("PIHOLE_PASSWORD"),
		PiholeLog:      getenvDefault("PIHOLE_LOG", DefaultPiholeLog),
		HistoryFilter:  os.Getenv("PIHOLE_HISTORY_FILTER"),
		Sensor:         sensor,
	}, nil
}

// SamplerFromEnv reads the sampler configuration.
func SamplerFromEnv() (Sampler, error) {
	period := schedule.DefaultPeriod
	if raw := os.Getenv("CLIMATE_PERIOD"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Sampler{}, fmt.Errorf("CLIMATE_PERIOD: %w", err)
		}
		if d <= 0 {
			return Sampler{}, fmt.Errorf("CLIMATE_PERIOD %s: %w", d, schedule.ErrInvalidPeriod)
		}
		period = d
	}
	sensor, err := sensorFromEnv()
	if err != nil {
		return Sampler{}, err
	}

	httpAddr, ok := os.LookupEnv("CLIMATE_HTTP_ADDR")
	if !ok {
		httpAddr = DefaultHTTPAddr
	}

	return Sampler{
		DataDir:  getenvDefault("CLIMATE_DATA_DIR", DefaultDataDir),
		Period:   period,
		Broker:   os.Getenv("CLIMATE_MQTT_BROKER"),
		HTTPAddr: httpAddr,
		Sensor:   sensor,
	}, nil
}

func sensorFromEnv() (Sensor, error) {
	pin, err := getenvInt("CLIMATE_SENSOR_PIN", dht.DefaultPin)
	if err != nil {
		return Sensor{}, err
	}
	return Sensor{
		Chip: getenvDefault("CLIMATE_GPIO_CHIP", dht.DefaultChip),
		Pin:  pin,
	}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

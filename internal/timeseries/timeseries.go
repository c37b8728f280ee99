// Package timeseries stores sensor readings as one JSON array per calendar day
// under a data directory. Files are data/sensor/YYYY-MM-DD.json, each guarded
// by a sibling YYYY-MM-DD.lock advisory lock shared between processes.
package timeseries

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// DayLayout names the per-day files.
	DayLayout = "2006-01-02"

	// TimeLayout is the minute-resolution timestamp of a Reading.
	TimeLayout = "15:04"

	jsonExt = ".json"
	lockExt = ".lock"
)

// Reading is one sample. A nil value means the sensor was not ready.
type Reading struct {
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// NewReading stamps a Reading with the minute of t.
func NewReading(t time.Time, temperature, humidity *float64) Reading {
	return Reading{
		Timestamp:   t.Format(TimeLayout),
		Temperature: temperature,
		Humidity:    humidity,
	}
}

// Time parses the Reading's timestamp on the given day.
func (r Reading) Time(day time.Time) (time.Time, error) {
	hm, err := time.Parse(TimeLayout, r.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", r.Timestamp, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, day.Location()), nil
}

// Store reads and appends day logs.
type Store struct {
	dir string
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sensor dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the day logs.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the day log path for day.
func (s *Store) Path(day time.Time) string {
	return filepath.Join(s.dir, day.Format(DayLayout)+jsonExt)
}

func (s *Store) lockPath(day time.Time) string {
	return filepath.Join(s.dir, day.Format(DayLayout)+lockExt)
}

// Append adds r to the log of day. The existing log is read under the day's
// lock, treated as empty if missing or unparsable, and rewritten in full.
func (s *Store) Append(day time.Time, r Reading) error {
	lock, err := acquire(s.lockPath(day))
	if err != nil {
		return err
	}
	defer lock.release()

	path := s.Path(day)
	readings, _ := load(path)
	readings = append(readings, r)

	data, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode day log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write day log: %w", err)
	}
	return nil
}

// ReadAll returns the readings of day in insertion order. It returns nil
// without error when the log is absent or cannot be parsed.
func (s *Store) ReadAll(day time.Time) ([]Reading, error) {
	lock, err := acquire(s.lockPath(day))
	if err != nil {
		return nil, err
	}
	defer lock.release()

	readings, ok := load(s.Path(day))
	if !ok {
		return nil, nil
	}
	return readings, nil
}

// Latest returns the last reading of day, if any.
func (s *Store) Latest(day time.Time) (Reading, bool, error) {
	readings, err := s.ReadAll(day)
	if err != nil {
		return Reading{}, false, err
	}
	if len(readings) == 0 {
		return Reading{}, false, nil
	}
	return readings[len(readings)-1], true, nil
}

// ListDays returns the days that have a log, newest first.
func (s *Store) ListDays() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sensor dir: %w", err)
	}
	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, jsonExt) {
			continue
		}
		day := strings.TrimSuffix(name, jsonExt)
		if _, err := time.Parse(DayLayout, day); err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// load reports false when the file is missing or not a JSON array of readings.
func load(path string) ([]Reading, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var readings []Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, false
	}
	return readings, true
}

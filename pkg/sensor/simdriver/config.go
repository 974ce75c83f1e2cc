package simdriver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sensorlink/sensorlink-go/pkg/sensor"
)

// Defaults.
const (
	// DefaultInterval is the sampling interval when none is configured.
	DefaultInterval = 200 * time.Millisecond

	// MinInterval bounds how fast a simulated sensor can sample.
	MinInterval = time.Millisecond

	// DefaultAmplitude is the peak raw sample value.
	DefaultAmplitude = 1000
)

// Config describes the simulated sensor services.
type Config struct {
	// Class is the device class services are published under.
	Class string `yaml:"class"`

	Services []ServiceConfig `yaml:"services"`

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger `yaml:"-"`
}

// ServiceConfig describes one sensor service.
type ServiceConfig struct {
	Name    string         `yaml:"name"`
	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig describes one simulated sensor.
type SensorConfig struct {
	Name     string        `yaml:"name"`
	Vendor   string        `yaml:"vendor"`
	Firmware string        `yaml:"firmware"`
	Hardware string        `yaml:"hardware"`
	Type     string        `yaml:"type"`
	ID       int32         `yaml:"id"`
	MaxRange int32         `yaml:"maxRange"`
	Accuracy int32         `yaml:"accuracy"`
	Power    int32         `yaml:"power"`
	Axes     int           `yaml:"axes"`
	Interval time.Duration `yaml:"interval"`

	// Amplitude is the peak raw value of the generated waveform.
	Amplitude int32 `yaml:"amplitude"`
}

// Errors.
var (
	ErrNoServices     = errors.New("no services configured")
	ErrDuplicateName  = errors.New("duplicate service name")
	ErrDuplicateID    = errors.New("duplicate sensor id in service")
	ErrInvalidSensor  = errors.New("invalid sensor")
	ErrUnknownService = errors.New("unknown service")
)

// DefaultConfig returns two services: an IMU with an accelerometer and a
// gyroscope, and a health service with light, PPG and ECG sensors.
func DefaultConfig() Config {
	cfg := Config{
		Class: sensor.DefaultClass,
		Services: []ServiceConfig{
			{
				Name: "imu",
				Sensors: []SensorConfig{
					{Name: "accel", Vendor: "sim", Type: "ACCELEROMETER", ID: 1, MaxRange: 8192, Accuracy: 1, Power: 180, Axes: 3},
					{Name: "gyro", Vendor: "sim", Type: "GYROSCOPE", ID: 2, MaxRange: 2000000, Accuracy: 70, Power: 900, Axes: 3},
				},
			},
			{
				Name: "health",
				Sensors: []SensorConfig{
					{Name: "light", Vendor: "sim", Type: "AMBIENT_LIGHT", ID: 5, MaxRange: 10000, Accuracy: 1, Power: 90, Axes: 1},
					{Name: "ppg", Vendor: "sim", Type: "PPG", ID: 130, MaxRange: 65535, Accuracy: 1, Power: 1200, Axes: 2},
					{Name: "ecg", Vendor: "sim", Type: "ECG", ID: 131, MaxRange: 5000, Accuracy: 1, Power: 1500, Axes: 1, Interval: 4 * time.Millisecond},
				},
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults fills in the class and per-sensor defaults.
func (c *Config) SetDefaults() {
	if c.Class == "" {
		c.Class = sensor.DefaultClass
	}
	for i := range c.Services {
		for j := range c.Services[i].Sensors {
			s := &c.Services[i].Sensors[j]
			if s.Axes == 0 {
				s.Axes = 1
			}
			if s.Interval == 0 {
				s.Interval = DefaultInterval
			}
			if s.Amplitude == 0 {
				s.Amplitude = DefaultAmplitude
			}
		}
	}
}

// Validate checks names, types and ids.
func (c *Config) Validate() error {
	if len(c.Services) == 0 {
		return ErrNoServices
	}
	names := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("%w: empty service name", ErrInvalidSensor)
		}
		if names[svc.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, svc.Name)
		}
		names[svc.Name] = true

		ids := make(map[int32]bool, len(svc.Sensors))
		for _, s := range svc.Sensors {
			if ids[s.ID] {
				return fmt.Errorf("%w: %q id %d", ErrDuplicateID, svc.Name, s.ID)
			}
			ids[s.ID] = true
			if err := s.validate(); err != nil {
				return fmt.Errorf("%s/%s: %w", svc.Name, s.Name, err)
			}
		}
	}
	return nil
}

func (s SensorConfig) validate() error {
	if _, err := sensor.ParseTypeID(s.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSensor, err)
	}
	if s.Axes < 1 || s.Axes > sensor.MaxDimension {
		return fmt.Errorf("%w: %d axes", ErrInvalidSensor, s.Axes)
	}
	if s.Interval < MinInterval {
		return fmt.Errorf("%w: interval %s below %s", ErrInvalidSensor, s.Interval, MinInterval)
	}
	return nil
}

// record returns the wire description of the sensor.
func (s SensorConfig) record() sensor.InfoRecord {
	typ, _ := sensor.ParseTypeID(s.Type)
	return sensor.InfoRecord{
		Name:            s.Name,
		Vendor:          s.Vendor,
		FirmwareVersion: s.Firmware,
		HardwareVersion: s.Hardware,
		TypeID:          typ,
		SensorID:        s.ID,
		MaxRange:        s.MaxRange,
		Accuracy:        s.Accuracy,
		Power:           s.Power,
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sensorlink/sensorlink-go/pkg/discovery"
	"github.com/sensorlink/sensorlink-go/pkg/sensor"
	"github.com/sensorlink/sensorlink-go/pkg/sensor/simdriver"
)

// Discovery modes.
const (
	DiscoveryLocal = "local"
	DiscoveryMDNS  = "mdns"
)

// Config holds the hub configuration.
type Config struct {
	// Hub names this process in mDNS records.
	Hub string `yaml:"hub"`

	// Class is the device class the manager discovers.
	Class string `yaml:"class"`

	// Discovery selects how sensor services are enumerated: "local" asks
	// the in-process host, "mdns" browses for advertised services.
	Discovery string `yaml:"discovery"`

	// Advertise publishes the hub's services over mDNS.
	Advertise bool `yaml:"advertise"`

	// Interface restricts mDNS to one network interface.
	Interface string `yaml:"interface"`

	// BrowseTimeout bounds mDNS class queries.
	BrowseTimeout time.Duration `yaml:"browseTimeout"`

	// Trace is the path of the CBOR trace file. Empty disables capture.
	Trace string `yaml:"trace"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"logLevel"`

	// MaxSensors bounds the catalogue size.
	MaxSensors int `yaml:"maxSensors"`

	// Enable lists sensor ids enabled at startup.
	Enable []int32 `yaml:"enable"`

	// Watch prints every delivered event.
	Watch bool `yaml:"watch"`

	// Simulation describes the simulated sensor services. Empty uses the
	// built-in IMU and health services.
	Simulation simdriver.Config `yaml:"simulation"`
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{
		Hub:           defaultHubName(),
		Class:         sensor.DefaultClass,
		Discovery:     DiscoveryLocal,
		BrowseTimeout: discovery.BrowseTimeout,
		LogLevel:      "info",
		MaxSensors:    sensor.DefaultMaxSensors,
		Simulation:    simdriver.DefaultConfig(),
	}
}

func defaultHubName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "sensorhub"
	}
	return host
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	cfg.Simulation = simdriver.Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Simulation.Services) == 0 {
		cfg.Simulation = simdriver.DefaultConfig()
	}
	if cfg.Simulation.Class == "" {
		cfg.Simulation.Class = cfg.Class
	}
	cfg.Simulation.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Discovery {
	case DiscoveryLocal, DiscoveryMDNS:
	default:
		return fmt.Errorf("unknown discovery mode %q (must be local or mdns)", c.Discovery)
	}
	if c.Discovery == DiscoveryMDNS && !c.Advertise {
		return fmt.Errorf("mdns discovery needs advertise: the hub can only bind its own services")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Advertise && c.Hub == "" {
		return fmt.Errorf("advertise needs a hub name")
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

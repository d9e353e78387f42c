// Package config holds the station configuration file format and the build version.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is injected at build time.
var Version = "dev"

const (
	AdapterGeneric = "generic"
	AdapterMCP2221 = "mcp2221"
	AdapterNanoPi  = "nanopi"
	AdapterSim     = "sim"
)

type Bus struct {
	Adapter string `yaml:"adapter"`
	// Device is the periph bus name for the generic adapter, e.g. "/dev/i2c-1" or "1".
	Device string `yaml:"device"`
	// Number is the bus number for the nanopi adapter.
	Number int    `yaml:"number"`
	Speed  uint32 `yaml:"speed"`
}

type Station struct {
	Interval time.Duration `yaml:"interval"`
}

type HTU21 struct {
	Delay time.Duration `yaml:"delay"`
}

type CO2 struct {
	Pin   string        `yaml:"pin"`
	Range uint16        `yaml:"range"`
	Poll  time.Duration `yaml:"poll"`
}

type Alarm struct {
	Pin       string        `yaml:"pin"`
	Threshold uint16        `yaml:"threshold"`
	Frequency uint32        `yaml:"frequency"`
	Duty      uint8         `yaml:"duty"`
	On        time.Duration `yaml:"on"`
	Off       time.Duration `yaml:"off"`
}

type Display struct {
	Enabled bool `yaml:"enabled"`
	Address byte `yaml:"address"`
}

type Config struct {
	Bus     Bus     `yaml:"bus"`
	Station Station `yaml:"station"`
	HTU21   HTU21   `yaml:"htu21"`
	CO2     CO2     `yaml:"co2"`
	Alarm   Alarm   `yaml:"alarm"`
	Display Display `yaml:"display"`
}

func Default() Config {
	return Config{
		Bus: Bus{
			Adapter: AdapterGeneric,
			Speed:   10_000,
		},
		Station: Station{Interval: 2 * time.Second},
		HTU21:   HTU21{Delay: 50 * time.Millisecond},
		CO2: CO2{
			Pin:   "GPIO17",
			Range: 5000,
			Poll:  100 * time.Millisecond,
		},
		Alarm: Alarm{
			Pin:       "GPIO18",
			Threshold: 1500,
			Frequency: 2000,
			Duty:      50,
			On:        200 * time.Millisecond,
			Off:       800 * time.Millisecond,
		},
		Display: Display{Enabled: true, Address: 0x27},
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Bus.Adapter {
	case AdapterGeneric, AdapterMCP2221, AdapterNanoPi, AdapterSim:
	default:
		errs = append(errs, fmt.Errorf("unknown bus adapter %q", c.Bus.Adapter))
	}
	if c.Bus.Speed == 0 || c.Bus.Speed > 100_000 {
		errs = append(errs, fmt.Errorf("bus speed %d Hz outside standard mode", c.Bus.Speed))
	}
	if c.Station.Interval <= 0 {
		errs = append(errs, errors.New("station interval must be positive"))
	}
	if c.CO2.Range != 2000 && c.CO2.Range != 5000 {
		errs = append(errs, fmt.Errorf("co2 range must be 2000 or 5000, got %d", c.CO2.Range))
	}
	if c.Alarm.Duty > 100 {
		errs = append(errs, fmt.Errorf("alarm duty %d%% above 100%%", c.Alarm.Duty))
	}
	if c.Alarm.Threshold > 0 && c.Alarm.Frequency == 0 {
		errs = append(errs, errors.New("alarm frequency must be set when the alarm is enabled"))
	}
	if c.Display.Address > 0x7F {
		errs = append(errs, fmt.Errorf("display address %#x does not fit 7 bits", c.Display.Address))
	}
	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

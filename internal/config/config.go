// Package config loads and validates the YAML campaign configuration.
// A campaign file names the session, the backend services, the measurements
// to fetch, the observation mode and window, the report store settings, and
// the modules to load. Configuration errors are fatal at load time, before
// any lifecycle phase executes.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Observation modes. They are mutually exclusive and select how the
// treatment interval is driven.
const (
	ModeTimer      = "timer"
	ModeTrigger    = "trigger"
	ModeModule     = "module"
	ModeContinuous = "continuous"
)

// DefaultLocation is the report location template used when the campaign
// file does not set one.
const DefaultLocation = "reports/${startTime}_${runHash}/"

// Duration wraps time.Duration with YAML decoding. It accepts Go duration
// strings ("30s", "2m") and bare numbers, which are read as seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		d.Duration = parsed
		return nil
	}
	var seconds float64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration %q", raw)
	}
	d.Duration = time.Duration(seconds * float64(time.Second))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// SessionConfig names the campaign. Extras are merged into the template
// variables of the report location.
type SessionConfig struct {
	Name   string            `yaml:"name"`
	Extras map[string]string `yaml:"extras"`
}

// ServiceConfig describes one backend service, e.g. a Prometheus endpoint.
type ServiceConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// MeasurementConfig describes one measurement query against a configured
// service.
type MeasurementConfig struct {
	Service string   `yaml:"service"`
	Query   string   `yaml:"query"`
	Step    Duration `yaml:"step"`
	Unit    string   `yaml:"unit"`
	Layer   string   `yaml:"layer"`
}

// WindowConfig is the left/right buffer around the treatment interval plus,
// in timer mode, the treatment duration itself.
type WindowConfig struct {
	Left     Duration `yaml:"left"`
	Right    Duration `yaml:"right"`
	Duration Duration `yaml:"duration"`
}

// ObservationConfig selects the observation mode and its parameters.
type ObservationConfig struct {
	Mode          string        `yaml:"mode"`
	Window        *WindowConfig `yaml:"window"`
	ModuleTrigger string        `yaml:"moduleTrigger"`
}

// ReportConfig configures the report store.
type ReportConfig struct {
	Format   string `yaml:"format"`
	Location string `yaml:"location"`
}

// ModuleConfig names a registered module and carries its per-module
// configuration sub-mapping.
type ModuleConfig struct {
	Module string         `yaml:"module"`
	Config map[string]any `yaml:"config"`
}

// Config is the full campaign configuration.
type Config struct {
	Session      SessionConfig                `yaml:"session"`
	Services     map[string]ServiceConfig     `yaml:"services"`
	Measurements map[string]MeasurementConfig `yaml:"measurements"`
	Observation  ObservationConfig            `yaml:"observation"`
	Report       ReportConfig                 `yaml:"report"`
	Modules      map[string]ModuleConfig      `yaml:"modules"`

	path string
}

// Load reads, decodes, and validates a campaign file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.path = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the file the configuration was loaded from. The report store
// copies this file into every persisted report. Empty for configurations
// built in memory.
func (c *Config) Path() string {
	return c.path
}

// SetPath overrides the originating file path. Primarily for tests.
func (c *Config) SetPath(path string) {
	c.path = path
}

func (c *Config) applyDefaults() {
	if c.Report.Format == "" {
		c.Report.Format = "csv"
	}
	if c.Report.Location == "" {
		c.Report.Location = DefaultLocation
	}
	for name, m := range c.Measurements {
		if m.Step.Duration == 0 {
			m.Step.Duration = time.Minute
			c.Measurements[name] = m
		}
	}
}

// Validate checks cross-field consistency. Mode-specific run preconditions
// (window for timer, trigger function for trigger) are re-checked by the
// orchestrator before each run.
func (c *Config) Validate() error {
	if c.Session.Name == "" {
		return fmt.Errorf("session.name must be set")
	}
	switch c.Observation.Mode {
	case ModeTimer:
		if c.Observation.Window == nil {
			return fmt.Errorf("observation.window must be set for %s mode", ModeTimer)
		}
	case ModeTrigger, ModeContinuous:
	case ModeModule:
		if c.Observation.ModuleTrigger == "" {
			return fmt.Errorf("observation.moduleTrigger must be set for %s mode", ModeModule)
		}
		if _, ok := c.Modules[c.Observation.ModuleTrigger]; !ok {
			return fmt.Errorf("observation.moduleTrigger names unknown module %q", c.Observation.ModuleTrigger)
		}
	case "":
		return fmt.Errorf("observation.mode must be set")
	default:
		return fmt.Errorf("unknown observation mode %q", c.Observation.Mode)
	}
	if w := c.Observation.Window; w != nil {
		if w.Left.Duration < 0 || w.Right.Duration < 0 || w.Duration.Duration < 0 {
			return fmt.Errorf("observation.window durations must not be negative")
		}
	}
	for name, m := range c.Measurements {
		if m.Service == "" {
			return fmt.Errorf("measurement %q: service must be set", name)
		}
		if _, ok := c.Services[m.Service]; !ok {
			return fmt.Errorf("measurement %q references unknown service %q", name, m.Service)
		}
		if m.Query == "" {
			return fmt.Errorf("measurement %q: query must be set", name)
		}
	}
	for id, m := range c.Modules {
		if m.Module == "" {
			return fmt.Errorf("module %q: module name must be set", id)
		}
	}
	if c.Report.Format != "csv" {
		return fmt.Errorf("unsupported report format %q", c.Report.Format)
	}
	return nil
}

// LoadDotEnv layers a local .env file into the process environment, if one
// exists. Existing environment variables win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

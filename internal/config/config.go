// Package config loads the geotrack host configuration from a YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/geotrack/core"
	"github.com/signalsfoundry/geotrack/internal/logging"
	"github.com/signalsfoundry/geotrack/internal/observability"
	"github.com/signalsfoundry/geotrack/timectrl"
)

// EngineConfig mirrors core.EngineConfig in file form.
type EngineConfig struct {
	RoutePoints           int    `yaml:"route_points"`
	GroundTrackResolution int    `yaml:"ground_track_resolution"`
	DecayStride           int    `yaml:"decay_stride"`
	DecayMode             string `yaml:"decay_mode"`
	Workers               int    `yaml:"workers"`
}

// RefreshConfig controls the host refresh loop.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	Mode     string        `yaml:"mode"` // realtime | accelerated
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig is the file form of observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables
// it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// RegistryConfig points at the destination registry file.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// Config is the top-level structure for geotrack.yaml.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Registry RegistryConfig `yaml:"registry"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	return Config{}.ApplyDefaults()
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c Config) ApplyDefaults() Config {
	def := core.DefaultEngineConfig()
	if c.Engine.RoutePoints == 0 {
		c.Engine.RoutePoints = def.RoutePoints
	}
	if c.Engine.GroundTrackResolution == 0 {
		c.Engine.GroundTrackResolution = def.GroundTrackResolution
	}
	if c.Engine.DecayStride == 0 {
		c.Engine.DecayStride = def.DecayStride
	}
	if c.Engine.DecayMode == "" {
		c.Engine.DecayMode = def.DecayMode.String()
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = def.Workers
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = 30 * time.Second
	}
	if c.Refresh.Mode == "" {
		c.Refresh.Mode = "realtime"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "geotrack"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
	return c
}

// Validate rejects values the host cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.CoreEngineConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Refresh.Interval <= 0 {
		errs = append(errs, fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval))
	}
	if _, err := c.RefreshMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio))
	}
	return errors.Join(errs...)
}

// CoreEngineConfig converts the engine section for core.NewEngine.
func (c Config) CoreEngineConfig() (core.EngineConfig, error) {
	mode, err := core.ParseDecayMode(c.Engine.DecayMode)
	if err != nil {
		return core.EngineConfig{}, fmt.Errorf("engine.decay_mode: %w", err)
	}
	ec := core.EngineConfig{
		RoutePoints:           c.Engine.RoutePoints,
		GroundTrackResolution: c.Engine.GroundTrackResolution,
		DecayStride:           c.Engine.DecayStride,
		DecayMode:             mode,
		Workers:               c.Engine.Workers,
	}
	if err := ec.Validate(); err != nil {
		return core.EngineConfig{}, fmt.Errorf("engine: %w", err)
	}
	return ec, nil
}

// RefreshMode parses refresh.mode for timectrl.NewTimeController.
func (c Config) RefreshMode() (timectrl.Mode, error) {
	mode, err := timectrl.ParseMode(c.Refresh.Mode)
	if err != nil {
		return mode, fmt.Errorf("refresh.mode: %w", err)
	}
	return mode, nil
}

// LoggerConfig converts the logging section for logging.New.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// ObservabilityTracing converts the tracing section for observability.InitTracing.
func (c Config) ObservabilityTracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// Parse decodes a YAML document, applies environment overrides and defaults,
// and validates the result.
func Parse(r io.Reader, getenv func(string) string) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := c.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	c = c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads path, or only the environment when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(strings.NewReader(""), os.Getenv)
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f, os.Getenv)
}

// applyEnv lets GEOTRACK_* variables, LOG_LEVEL and LOG_FORMAT override the
// file.
func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("GEOTRACK_ROUTE_POINTS", &c.Engine.RoutePoints)
	setInt("GEOTRACK_GROUND_TRACK_RESOLUTION", &c.Engine.GroundTrackResolution)
	setInt("GEOTRACK_DECAY_STRIDE", &c.Engine.DecayStride)
	setString("GEOTRACK_DECAY_MODE", &c.Engine.DecayMode)
	setInt("GEOTRACK_WORKERS", &c.Engine.Workers)
	setString("GEOTRACK_REFRESH_MODE", &c.Refresh.Mode)
	setString("GEOTRACK_METRICS_ADDR", &c.Metrics.Addr)
	setString("GEOTRACK_REGISTRY_PATH", &c.Registry.Path)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)

	if v := getenv("GEOTRACK_REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GEOTRACK_REFRESH_INTERVAL: %w", err))
		} else {
			c.Refresh.Interval = d
		}
	}
	if v := getenv("GEOTRACK_TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = strings.EqualFold(v, "true")
	}
	setString("GEOTRACK_TRACING_EXPORTER", &c.Tracing.Exporter)
	setString("GEOTRACK_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if v := getenv("GEOTRACK_TRACING_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GEOTRACK_TRACING_SAMPLE_RATIO: %w", err))
		} else {
			c.Tracing.SampleRatio = r
		}
	}
	return errors.Join(errs...)
}

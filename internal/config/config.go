// Package config loads sweep, store, provider, server and telemetry settings
// from defaults, an optional TOML file and CONJ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/internal/observability"
	"github.com/signalsfoundry/conjunction-sweep/internal/provider"
	"github.com/signalsfoundry/conjunction-sweep/internal/snapshot"
	"github.com/signalsfoundry/conjunction-sweep/model"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CONJ_SWEEP_STEP.
	EnvPrefix = "CONJ"
	// DefaultFile is looked up in the working directory when no file is given.
	DefaultFile = "conjunction.toml"
)

// Config is the fully resolved configuration.
type Config struct {
	Sweep    Sweep
	Store    Store
	Provider Provider
	Server   Server
	Metrics  Metrics
	Log      Log
	Tracing  Tracing

	// File is the configuration file that was read, if any.
	File string
}

type Sweep struct {
	Start       string // RFC 3339; empty or "now" means the current second
	Duration    time.Duration
	Step        time.Duration
	ThresholdKm float64
	ObjectCap   int
	Workers     int
}

type Store struct {
	Path string
}

type Provider struct {
	Sources            []string
	Timeout            time.Duration
	CelesTrakURL       string
	CelesTrakGroup     string
	TLEAPIURL          string
	SpaceTrackURL      string
	SpaceTrackUser     string
	SpaceTrackPassword string
	FilePath           string
}

type Server struct {
	Addr               string
	ObjectLimit        int
	DefaultThresholdKm float64
	CatalogTTL         time.Duration
}

type Metrics struct {
	Addr string
}

type Log struct {
	Level  string
	Format string
}

type Tracing struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	SampleRatio float64
	ServiceName string
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sweep.start", "")
	v.SetDefault("sweep.duration", "87600h")
	v.SetDefault("sweep.step", "60s")
	v.SetDefault("sweep.threshold_km", 10.0)
	v.SetDefault("sweep.object_cap", 200)
	v.SetDefault("sweep.workers", runtime.NumCPU())

	v.SetDefault("store.path", "collisions.db")

	v.SetDefault("provider.sources", provider.DefaultSources)
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.celestrak.url", provider.DefaultCelesTrakURL)
	v.SetDefault("provider.celestrak.group", "active")
	v.SetDefault("provider.tleapi.url", provider.DefaultTLEAPIURL)
	v.SetDefault("provider.spacetrack.url", provider.DefaultSpaceTrackURL)
	v.SetDefault("provider.spacetrack.user", "")
	v.SetDefault("provider.spacetrack.password", "")
	v.SetDefault("provider.file.path", "")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.object_limit", snapshot.DefaultObjectLimit)
	v.SetDefault("server.default_threshold_km", snapshot.DefaultThresholdKm)
	v.SetDefault("server.catalog_ttl", "10m")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", "conjunction-sweep")
}

// Load resolves the configuration on v. When file is empty, DefaultFile is
// read if present; a named file that cannot be read is an error. The
// result is validated.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".toml"))
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Sweep: Sweep{
			Start:       strings.TrimSpace(v.GetString("sweep.start")),
			Duration:    v.GetDuration("sweep.duration"),
			Step:        v.GetDuration("sweep.step"),
			ThresholdKm: v.GetFloat64("sweep.threshold_km"),
			ObjectCap:   v.GetInt("sweep.object_cap"),
			Workers:     v.GetInt("sweep.workers"),
		},
		Store: Store{Path: v.GetString("store.path")},
		Provider: Provider{
			Sources:            splitList(v.GetStringSlice("provider.sources")),
			Timeout:            v.GetDuration("provider.timeout"),
			CelesTrakURL:       v.GetString("provider.celestrak.url"),
			CelesTrakGroup:     v.GetString("provider.celestrak.group"),
			TLEAPIURL:          v.GetString("provider.tleapi.url"),
			SpaceTrackURL:      v.GetString("provider.spacetrack.url"),
			SpaceTrackUser:     v.GetString("provider.spacetrack.user"),
			SpaceTrackPassword: v.GetString("provider.spacetrack.password"),
			FilePath:           v.GetString("provider.file.path"),
		},
		Server: Server{
			Addr:               v.GetString("server.addr"),
			ObjectLimit:        v.GetInt("server.object_limit"),
			DefaultThresholdKm: v.GetFloat64("server.default_threshold_km"),
			CatalogTTL:         v.GetDuration("server.catalog_ttl"),
		},
		Metrics: Metrics{Addr: v.GetString("metrics.addr")},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Tracing: Tracing{
			Enabled:     v.GetBool("tracing.enabled"),
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
			ServiceName: v.GetString("tracing.service_name"),
		},
		File: v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both list values and comma-separated strings, the form
// environment variables arrive in.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func invalid(field, format string, args ...any) error {
	return &model.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every setting that can be checked without I/O.
func (c *Config) Validate() error {
	s := c.Sweep
	if s.Start != "" && !strings.EqualFold(s.Start, "now") {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return invalid("sweep.start", "must be RFC 3339 or \"now\": %v", err)
		}
	}
	switch {
	case s.Duration < 0:
		return invalid("sweep.duration", "must not be negative, got %s", s.Duration)
	case s.Step <= 0:
		return invalid("sweep.step", "must be positive, got %s", s.Step)
	case s.Step%time.Second != 0:
		return invalid("sweep.step", "must be a whole number of seconds, got %s", s.Step)
	case !(s.ThresholdKm > 0):
		return invalid("sweep.threshold_km", "must be positive, got %v", s.ThresholdKm)
	case s.ObjectCap < 0:
		return invalid("sweep.object_cap", "must not be negative, got %d", s.ObjectCap)
	case s.Workers < 0:
		return invalid("sweep.workers", "must not be negative, got %d", s.Workers)
	case strings.TrimSpace(c.Store.Path) == "":
		return invalid("store.path", "must not be empty")
	case len(c.Provider.Sources) == 0:
		return invalid("provider.sources", "at least one source is required")
	case c.Provider.Timeout <= 0:
		return invalid("provider.timeout", "must be positive, got %s", c.Provider.Timeout)
	case c.Server.ObjectLimit < 0:
		return invalid("server.object_limit", "must not be negative, got %d", c.Server.ObjectLimit)
	case !(c.Server.DefaultThresholdKm > 0):
		return invalid("server.default_threshold_km", "must be positive, got %v", c.Server.DefaultThresholdKm)
	case c.Server.CatalogTTL < 0:
		return invalid("server.catalog_ttl", "must not be negative, got %s", c.Server.CatalogTTL)
	case c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1:
		return invalid("tracing.sample_ratio", "must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", "unknown format %q", c.Log.Format)
	}
	switch c.Tracing.Exporter {
	case "stdout", "otlp", "otlpgrpc":
	default:
		return invalid("tracing.exporter", "unknown exporter %q", c.Tracing.Exporter)
	}
	if _, err := provider.NewSources(c.Provider.Sources, c.ProviderSettings()); err != nil {
		return err
	}
	return nil
}

// Window builds the sweep window, resolving an empty or "now" start to now
// truncated to the second.
func (c *Config) Window(now time.Time) (model.SweepWindow, error) {
	start := now.UTC().Truncate(time.Second)
	if c.Sweep.Start != "" && !strings.EqualFold(c.Sweep.Start, "now") {
		t, err := time.Parse(time.RFC3339, c.Sweep.Start)
		if err != nil {
			return model.SweepWindow{}, invalid("sweep.start", "must be RFC 3339 or \"now\": %v", err)
		}
		start = t.UTC().Truncate(time.Second)
	}
	w := model.SweepWindow{
		Start:       start,
		End:         start.Add(c.Sweep.Duration),
		Step:        c.Sweep.Step,
		ThresholdKm: c.Sweep.ThresholdKm,
	}
	return w, w.Validate()
}

// ProviderSettings maps the provider section onto source settings.
func (c *Config) ProviderSettings() provider.Settings {
	return provider.Settings{
		Timeout:            c.Provider.Timeout,
		CelesTrakURL:       c.Provider.CelesTrakURL,
		CelesTrakGroup:     c.Provider.CelesTrakGroup,
		TLEAPIURL:          c.Provider.TLEAPIURL,
		SpaceTrackURL:      c.Provider.SpaceTrackURL,
		SpaceTrackUser:     c.Provider.SpaceTrackUser,
		SpaceTrackPassword: c.Provider.SpaceTrackPassword,
		FilePath:           c.Provider.FilePath,
	}
}

// LoggingConfig maps the log section.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// TracingConfig maps the tracing section.
func (c *Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// SnapshotConfig maps the server section.
func (c *Config) SnapshotConfig() snapshot.Config {
	return snapshot.Config{
		ObjectLimit:        c.Server.ObjectLimit,
		DefaultThresholdKm: c.Server.DefaultThresholdKm,
		Workers:            c.Sweep.Workers,
	}
}

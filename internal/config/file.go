package config

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

type fileConfig struct {
	Sweep struct {
		Start       string  `toml:"start"`
		Duration    string  `toml:"duration"`
		Step        string  `toml:"step"`
		ThresholdKm float64 `toml:"threshold_km"`
		ObjectCap   int     `toml:"object_cap"`
		Workers     int     `toml:"workers"`
	} `toml:"sweep"`
	Store struct {
		Path string `toml:"path"`
	} `toml:"store"`
	Provider struct {
		Sources   []string `toml:"sources"`
		Timeout   string   `toml:"timeout"`
		CelesTrak struct {
			URL   string `toml:"url"`
			Group string `toml:"group"`
		} `toml:"celestrak"`
		TLEAPI struct {
			URL string `toml:"url"`
		} `toml:"tleapi"`
		SpaceTrack struct {
			URL      string `toml:"url"`
			User     string `toml:"user"`
			Password string `toml:"password"`
		} `toml:"spacetrack"`
		File struct {
			Path string `toml:"path"`
		} `toml:"file"`
	} `toml:"provider"`
	Server struct {
		Addr               string  `toml:"addr"`
		ObjectLimit        int     `toml:"object_limit"`
		DefaultThresholdKm float64 `toml:"default_threshold_km"`
		CatalogTTL         string  `toml:"catalog_ttl"`
	} `toml:"server"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Tracing struct {
		Enabled     bool    `toml:"enabled"`
		Exporter    string  `toml:"exporter"`
		Endpoint    string  `toml:"endpoint"`
		SampleRatio float64 `toml:"sample_ratio"`
		ServiceName string  `toml:"service_name"`
	} `toml:"tracing"`
}

// Defaults returns the configuration with nothing but defaults applied.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	return fromDefaults(v)
}

func fromDefaults(v *viper.Viper) *Config {
	return &Config{
		Sweep: Sweep{
			Duration:    v.GetDuration("sweep.duration"),
			Step:        v.GetDuration("sweep.step"),
			ThresholdKm: v.GetFloat64("sweep.threshold_km"),
			ObjectCap:   v.GetInt("sweep.object_cap"),
			Workers:     v.GetInt("sweep.workers"),
		},
		Store: Store{Path: v.GetString("store.path")},
		Provider: Provider{
			Sources:        v.GetStringSlice("provider.sources"),
			Timeout:        v.GetDuration("provider.timeout"),
			CelesTrakURL:   v.GetString("provider.celestrak.url"),
			CelesTrakGroup: v.GetString("provider.celestrak.group"),
			TLEAPIURL:      v.GetString("provider.tleapi.url"),
			SpaceTrackURL:  v.GetString("provider.spacetrack.url"),
		},
		Server: Server{
			Addr:               v.GetString("server.addr"),
			ObjectLimit:        v.GetInt("server.object_limit"),
			DefaultThresholdKm: v.GetFloat64("server.default_threshold_km"),
			CatalogTTL:         v.GetDuration("server.catalog_ttl"),
		},
		Log: Log{Level: v.GetString("log.level"), Format: v.GetString("log.format")},
		Tracing: Tracing{
			Exporter:    v.GetString("tracing.exporter"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}
}

// MarshalTOML renders c in the layout Load reads back.
func (c *Config) MarshalTOML() ([]byte, error) {
	var f fileConfig
	f.Sweep.Start = c.Sweep.Start
	f.Sweep.Duration = c.Sweep.Duration.String()
	f.Sweep.Step = c.Sweep.Step.String()
	f.Sweep.ThresholdKm = c.Sweep.ThresholdKm
	f.Sweep.ObjectCap = c.Sweep.ObjectCap
	f.Sweep.Workers = c.Sweep.Workers
	f.Store.Path = c.Store.Path
	f.Provider.Sources = c.Provider.Sources
	f.Provider.Timeout = c.Provider.Timeout.String()
	f.Provider.CelesTrak.URL = c.Provider.CelesTrakURL
	f.Provider.CelesTrak.Group = c.Provider.CelesTrakGroup
	f.Provider.TLEAPI.URL = c.Provider.TLEAPIURL
	f.Provider.SpaceTrack.URL = c.Provider.SpaceTrackURL
	f.Provider.SpaceTrack.User = c.Provider.SpaceTrackUser
	f.Provider.SpaceTrack.Password = c.Provider.SpaceTrackPassword
	f.Provider.File.Path = c.Provider.FilePath
	f.Server.Addr = c.Server.Addr
	f.Server.ObjectLimit = c.Server.ObjectLimit
	f.Server.DefaultThresholdKm = c.Server.DefaultThresholdKm
	f.Server.CatalogTTL = c.Server.CatalogTTL.String()
	f.Metrics.Addr = c.Metrics.Addr
	f.Log.Level = c.Log.Level
	f.Log.Format = c.Log.Format
	f.Tracing.Enabled = c.Tracing.Enabled
	f.Tracing.Exporter = c.Tracing.Exporter
	f.Tracing.Endpoint = c.Tracing.Endpoint
	f.Tracing.SampleRatio = c.Tracing.SampleRatio
	f.Tracing.ServiceName = c.Tracing.ServiceName

	data, err := toml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// ErrFileExists is returned by WriteDefault when the target exists and
// overwriting was not requested.
var ErrFileExists = errors.New("config file already exists")

// WriteDefault writes the default configuration to path as TOML.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
	}
	v := viper.New()
	SetDefaults(v)
	data, err := fromDefaults(v).MarshalTOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

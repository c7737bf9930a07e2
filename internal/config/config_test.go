package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/conjunction-sweep/internal/provider"
	"github.com/signalsfoundry/conjunction-sweep/model"
)

// inTempDir keeps a stray conjunction.toml in the package directory from
// leaking into tests.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 87600*time.Hour, cfg.Sweep.Duration)
	assert.Equal(t, time.Minute, cfg.Sweep.Step)
	assert.Equal(t, 10.0, cfg.Sweep.ThresholdKm)
	assert.Equal(t, 200, cfg.Sweep.ObjectCap)
	assert.Positive(t, cfg.Sweep.Workers)
	assert.Equal(t, "collisions.db", cfg.Store.Path)
	assert.Equal(t, provider.DefaultSources, cfg.Provider.Sources)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.File)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[sweep]
start = "2024-01-01T00:00:00Z"
duration = "10m"
step = "1m"
threshold_km = 25.5

[store]
path = "runs.db"

[provider]
sources = ["file"]

[provider.file]
path = "catalog.tle"
`), 0o600))

	t.Setenv("CONJ_SWEEP_STEP", "2m")
	t.Setenv("CONJ_LOG_LEVEL", "DEBUG")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Sweep.Step, "environment overrides the file")
	assert.Equal(t, 25.5, cfg.Sweep.ThresholdKm)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, []string{"file"}, cfg.Provider.Sources)
	assert.Equal(t, "catalog.tle", cfg.Provider.FilePath)
	assert.Equal(t, "debug", cfg.Log.Level)

	w, err := cfg.Window(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, w.Start.Add(10*time.Minute), w.End)
	assert.Equal(t, int64(6), w.InstantCount())
}

func TestLoadPicksUpDefaultFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("[store]\npath = \"local.db\"\n"), 0o600))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "local.db", cfg.Store.Path)
	assert.NotEmpty(t, cfg.File)
}

func TestLoadMissingNamedFile(t *testing.T) {
	dir := inTempDir(t)
	_, err := Load(viper.New(), filepath.Join(dir, "absent.toml"))
	require.Error(t, err)
}

func TestSourcesFromCommaSeparatedEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("CONJ_PROVIDER_SOURCES", "tleapi, celestrak")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tleapi", "celestrak"}, cfg.Provider.Sources)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		env   string
		value string
		field string
	}{
		{"CONJ_SWEEP_STEP", "0s", "sweep.step"},
		{"CONJ_SWEEP_STEP", "1500ms", "sweep.step"},
		{"CONJ_SWEEP_DURATION", "-1h", "sweep.duration"},
		{"CONJ_SWEEP_THRESHOLD_KM", "0", "sweep.threshold_km"},
		{"CONJ_SWEEP_OBJECT_CAP", "-1", "sweep.object_cap"},
		{"CONJ_SWEEP_START", "yesterday", "sweep.start"},
		{"CONJ_STORE_PATH", " ", "store.path"},
		{"CONJ_PROVIDER_SOURCES", "ftp", "provider.sources"},
		{"CONJ_PROVIDER_SOURCES", "file", "provider.file.path"},
		{"CONJ_LOG_LEVEL", "loud", "log.level"},
		{"CONJ_TRACING_EXPORTER", "zipkin", "tracing.exporter"},
		{"CONJ_TRACING_SAMPLE_RATIO", "1.5", "tracing.sample_ratio"},
	}
	for _, tc := range cases {
		t.Run(tc.env+"="+tc.value, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(tc.env, tc.value)

			_, err := Load(viper.New(), "")
			var cfgErr *model.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestWindowDefaultsToCurrentSecond(t *testing.T) {
	cfg := Defaults()
	cfg.Sweep.Duration = time.Hour

	now := time.Date(2025, 3, 4, 5, 6, 7, 890, time.FixedZone("X", 3600))
	w, err := cfg.Window(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 4, 4, 6, 7, 0, time.UTC), w.Start)
	assert.Equal(t, int64(61), w.InstantCount())
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "conjunction.toml")

	require.NoError(t, WriteDefault(path, false))
	require.ErrorIs(t, WriteDefault(path, false), ErrFileExists)
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[sweep]")
	assert.Contains(t, string(data), "1m0s")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	want := Defaults()
	assert.Equal(t, want.Sweep, cfg.Sweep)
	assert.Equal(t, want.Provider.Sources, cfg.Provider.Sources)
	assert.Equal(t, want.Server, cfg.Server)
}

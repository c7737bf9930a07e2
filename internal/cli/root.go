// Package cli implements the conjunction command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/conjunction-sweep/internal/config"
	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
	"github.com/signalsfoundry/conjunction-sweep/internal/provider"
	"github.com/signalsfoundry/conjunction-sweep/internal/store"
	"github.com/signalsfoundry/conjunction-sweep/model"
	"github.com/signalsfoundry/conjunction-sweep/sweep"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitAcquisition = 3
	ExitPersistence = 4
	ExitInterrupted = 130
)

// errStore marks failures to open or query the event store.
var errStore = errors.New("event store")

func storeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errStore, err)
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var (
		cfgErr     *model.ConfigurationError
		acqErr     *provider.AcquisitionError
		persistErr *sweep.PersistenceError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &acqErr), errors.Is(err, provider.ErrNoObjects):
		return ExitAcquisition
	case errors.As(err, &persistErr), errors.Is(err, errStore):
		return ExitPersistence
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// Execute runs the command tree with ctx and returns the exit code.
func Execute(ctx context.Context) int {
	return ExitCode(NewRootCmd().ExecuteContext(ctx))
}

// globals is the state shared by every subcommand of one root command.
type globals struct {
	v          *viper.Viper
	configFile string
	noColor    bool

	now    func() time.Time
	client *http.Client
}

// NewRootCmd builds the command tree. Each call gets its own viper instance.
func NewRootCmd() *cobra.Command {
	g := &globals{
		v:   viper.New(),
		now: time.Now,
	}

	root := &cobra.Command{
		Use:   "conjunction",
		Short: "Sweep a satellite catalog for close approaches",
		Long: `conjunction propagates every tracked object in a TLE catalog across a
time window, records each pair that comes within a distance threshold
in an SQLite event store, and serves instantaneous snapshots over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "configuration file (default ./"+config.DefaultFile+" when present)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newSweepCmd(g),
		newServeCmd(g),
		newEventsCmd(g),
		newRunsCmd(g),
		newSatellitesCmd(g),
		newConfigCmd(g),
	)
	return root
}

// load binds the flags named in keys (config key -> flag name) that the user
// set on cmd, then resolves and validates the configuration.
func (g *globals) load(cmd *cobra.Command, keys map[string]string) (*config.Config, logging.Logger, error) {
	bindings := map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	}
	for key, name := range keys {
		bindings[key] = name
	}
	for key, name := range bindings {
		if f := cmd.Flag(name); f != nil {
			if err := g.v.BindPFlag(key, f); err != nil {
				return nil, nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(g.v, g.configFile)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if cfg.File != "" {
		log.Debug(cmd.Context(), "configuration loaded", logging.String("file", cfg.File))
	}
	return cfg, log, nil
}

// acquire runs the configured provider chain.
func (g *globals) acquire(ctx context.Context, cfg *config.Config, log logging.Logger) ([]model.TrackedObject, string, error) {
	settings := cfg.ProviderSettings()
	settings.Client = g.client
	sources, err := provider.NewSources(cfg.Provider.Sources, settings)
	if err != nil {
		return nil, "", err
	}
	return provider.NewChain(log, sources...).Acquire(ctx)
}

// openStore opens and initializes the event store at path.
func openStore(ctx context.Context, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, storeError(err)
	}
	if err := st.Initialize(ctx); err != nil {
		_ = st.Close()
		return nil, storeError(err)
	}
	return st, nil
}

func closeStore(ctx context.Context, st *store.Store, log logging.Logger) {
	if err := st.Close(); err != nil {
		log.Warn(ctx, "failed to close event store", logging.Err(err))
	}
}

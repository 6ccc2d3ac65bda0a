package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	pumped "github.com/pumped-fn/pumped-spatial"
	"github.com/pumped-fn/pumped-spatial/config"
	"github.com/pumped-fn/pumped-spatial/extensions"
	"github.com/pumped-fn/pumped-spatial/gateway"
	"github.com/pumped-fn/pumped-spatial/spatial"
	"github.com/spf13/cobra"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "spatialsync",
	Short: "Keep match, topic and geometry data in sync with the spatial data service",
	Long: `spatialsync loads the match and topic collections from the spatial data
service and resolves details and geometry for a selected match.

The service location comes from --base-url, SPATIAL_BASE_URL, or
http://<host>:<SPATIAL_PORT>, and is resolved again for every request.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to config file (default $HOME/.config/spatialsync/config.toml)")
	flags.String("base-url", "", "service base URL, overrides host and port")
	flags.String("log-level", "info", "log level: debug|info|warn|error")
	flags.String("retention", "retain", "what details and geometry keep when the selection cannot be resolved: retain|clear")
	flags.Bool("debug-graph", false, "print the dependency tree when a computation fails")

	cobra.CheckErr(v.BindPFlag("config", flags.Lookup("config")))
	cobra.CheckErr(v.BindPFlag("base_url", flags.Lookup("base-url")))
	cobra.CheckErr(v.BindPFlag("log.level", flags.Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag("retention", flags.Lookup("retention")))
	cobra.CheckErr(v.BindPFlag("debug_graph", flags.Lookup("debug-graph")))
}

// app is everything a command needs: resolved config, a logger and a store
// wired to the gateway client.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *spatial.Store
	failures *failureSink
}

func setup() (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(extensions.NewHumanHandler(os.Stderr, level))

	retention, err := spatial.ParseRetention(cfg.Retention)
	if err != nil {
		return nil, err
	}

	client := gateway.NewClient(config.Locator(v), cfg.ClientOptions()...)
	failures := newFailureSink()

	scopeOpts := []pumped.ScopeOption{
		pumped.WithLogger(logger),
		pumped.WithExtension(failures),
	}
	if level <= slog.LevelDebug {
		scopeOpts = append(scopeOpts, pumped.WithExtension(extensions.NewLoggingExtension(logger)))
	}
	if v.GetBool("debug_graph") {
		handler := extensions.NewHumanHandler(os.Stderr, slog.LevelError)
		scopeOpts = append(scopeOpts, pumped.WithExtension(extensions.NewGraphDebugExtension(handler)))
	}

	store := spatial.NewStore(client,
		spatial.WithRetention(retention),
		spatial.WithScopeOptions(scopeOpts...),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		failures: failures,
	}, nil
}

// load runs the initial sync and waits for its outcome
func (a *app) load(ctx context.Context) error {
	if err := <-a.store.Load(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	return nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", "error", err)
	}
}

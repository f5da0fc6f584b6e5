package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/loci/internal/config"
	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/core"
)

var (
	verbose    bool
	configPath string
	storePath  string
	adapter    string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loci",
	Short: "Inspect and drive a store of spatially anchored notes",
	Long: `loci keeps notes pinned to places. Each note is bound to a captured map
of its surroundings and only reappears once that map is recognized again.
This tool inspects and maintains the note store and can drive a simulated
session end to end.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(newLogger(cfg.Logging))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML or TOML, default: loci.yaml at the store root)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Store location (directory for fs, file for sqlite)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter: fs, sqlite or memory")
}

// loadConfig reads the explicit config file, or the one found at the
// store root, and applies flag overrides on top.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = platform.FindConfig(wd)
		}
	}

	c := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	if storePath != "" {
		c.Store.Path = storePath
	}
	if adapter != "" {
		c.Store.Adapter = adapter
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the configured store. Commands that only inspect pass
// platform.WithMustExist so a typo never creates an empty store.
func openStore(ctx context.Context, extra ...platform.Option) (core.SpaceStore, error) {
	return platform.OpenStore(ctx, cfg.Store.Path, factoryOptions(extra...)...)
}

// factoryOptions turns the loaded configuration into factory options.
func factoryOptions(extra ...platform.Option) []platform.Option {
	opts := append(platform.FromConfig(cfg), platform.WithLogger(slog.Default()))
	return append(opts, extra...)
}

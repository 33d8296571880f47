// Package cli implements the npmwatch command line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/watch"
	"github.com/git-pkgs/watch/client"
	"github.com/git-pkgs/watch/config"
	"github.com/git-pkgs/watch/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const defaultStorePath = ".npmwatch-state.json"

type rootFlags struct {
	configPath string
	debug      bool
	jsonOut    bool
	interval   time.Duration
	debugMode  bool
}

// Execute runs the npmwatch CLI.
func Execute() error {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "npmwatch",
		Short:         "Watch npm dist-tags for version changes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.debug {
				logger.SetLevel(logger.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(checkCommand(flags))
	root.AddCommand(watchCommand(flags))
	root.AddCommand(versionCommand())

	return root.Execute()
}

func checkCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check pass over the configured packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			w, st, err := buildWatcher(flags)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			return runOnce(ctx, w, flags.jsonOut)
		},
	}
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "print changes as JSON")
	cmd.Flags().BoolVar(&flags.debugMode, "simulate", false, "simulate a change per package without touching the store")
	return cmd
}

func watchCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the registry on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			interval := flags.interval
			if interval == 0 {
				interval = cfg.Interval.Std()
			}
			if interval == 0 {
				interval = 15 * time.Minute
			}

			w, st, err := buildWatcherFromConfig(cfg, flags)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			logger.Infof("[npmwatch] watching %d packages every %s", len(cfg.Packages), interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if err := runOnce(ctx, w, flags.jsonOut); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					logger.Info("[npmwatch] shutting down")
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "print changes as JSON")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "polling interval (overrides config)")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the npmwatch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("npmwatch", Version)
		},
	}
}

func runOnce(ctx context.Context, w *watch.Watcher, jsonOut bool) error {
	changes := w.CheckAll(ctx)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(changes)
	}

	if len(changes) == 0 {
		logger.Info("[npmwatch] no changes detected")
		return nil
	}
	for i := range changes {
		c := &changes[i]
		logger.Infof("[npmwatch] %s: %s -> %s (%s), %s", c.Package, c.FromVersion, c.ToVersion, c.Kind, c.InstallCommand())
		if c.ChangelogURL != "" {
			logger.Infof("[npmwatch] %s: changelog %s", c.Package, c.ChangelogURL)
		}
	}
	return nil
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	path := flags.configPath
	if path == "" {
		found, err := config.FindConfigFile()
		if err != nil {
			return nil, fmt.Errorf("no config file found; pass --config or create npmwatch.yaml")
		}
		path = found
	}
	return config.Load(path)
}

func buildWatcher(flags *rootFlags) (*watch.Watcher, store.Store, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	return buildWatcherFromConfig(cfg, flags)
}

func buildWatcherFromConfig(cfg *config.Config, flags *rootFlags) (*watch.Watcher, store.Store, error) {
	st, err := buildStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []client.Option{client.WithUserAgent("npmwatch/" + Version)}
	if cfg.GithubToken != "" {
		token := cfg.GithubToken
		opts = append(opts, client.WithAuthFunc(func(url string) (string, string) {
			if strings.Contains(url, "api.github.com") {
				return "Authorization", "Bearer " + token
			}
			return "", ""
		}))
	}

	packages := make([]watch.Package, len(cfg.Packages))
	for i, p := range cfg.Packages {
		tag := p.Tag
		if tag == "" {
			tag = cfg.Tag
		}
		packages[i] = watch.Package{Name: p.Name, Tag: tag}
	}

	w := watch.NewWatcher(packages, st, client.NewClient(opts...), watch.Options{
		RegistryURL:       cfg.Registry,
		IncludePrerelease: cfg.IncludePrerelease,
		SkipInitial:       cfg.SkipInitial,
		DebugMode:         flags.debugMode,
		Enrich:            cfg.Enrich,
		Concurrency:       cfg.Concurrency,
		Logger:            logger.StandardLogger(),
	})
	return w, st, nil
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return store.NewMemory(), nil

	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.NewRedis(ctx, store.RedisConfig{
			Addr:     cfg.Store.Addr,
			Password: cfg.Store.Password,
			DB:       cfg.Store.DB,
			HashKey:  cfg.Store.HashKey,
		})

	default: // "" or "file"
		path := cfg.Store.Path
		if path == "" {
			path = defaultStorePath
		}
		return store.NewFile(path)
	}
}

// Package cli implements the lcpd command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/lcpd/pkg/config"
	"github.com/thesyncim/lcpd/pkg/lcp"
)

var version = "0.1.0"

// NewRootCmd builds the lcpd command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "lcpd",
		Short:   "Measure Largest Contentful Paint in a throttled headless Chrome",
		Version: version,
		Long: `lcpd drives a headless Chrome to measure a page's Largest Contentful Paint
under configurable CPU and network throttling, either with the Lighthouse CLI
or directly over the DevTools protocol.`,
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("config", "", "YAML configuration file")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("auditor", "", "auditor to use: lighthouse or cdp")
	f.String("lighthouse-bin", "", "Lighthouse executable")
	f.String("chrome-bin", "", "Chrome executable, empty lets Rod find or download one")
	f.Int("debug-port", 0, "Chrome remote debugging port")
	f.Bool("headless", true, "run Chrome headless")
	f.Duration("audit-timeout", 0, "upper bound of one audit, 0 for none")

	root.AddCommand(newServeCmd())
	root.AddCommand(newProbeCmd())
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the flags the user set on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("auditor") {
		cfg.Auditor, _ = flags.GetString("auditor")
	}
	if flags.Changed("lighthouse-bin") {
		cfg.Lighthouse.Bin, _ = flags.GetString("lighthouse-bin")
	}
	if flags.Changed("chrome-bin") {
		cfg.Browser.Bin, _ = flags.GetString("chrome-bin")
	}
	if flags.Changed("debug-port") {
		cfg.Browser.DebugPort, _ = flags.GetInt("debug-port")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("audit-timeout") {
		cfg.Server.AuditTimeout, _ = flags.GetDuration("audit-timeout")
	}
	if flags.Changed("listen") {
		cfg.Server.Listen, _ = flags.GetString("listen")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// app is the wired service shared by serve and probe.
type app struct {
	browsers *lcp.BrowserManager
	service  *lcp.Service
	stats    *lcp.Stats
	metrics  *lcp.Metrics
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	browsers, err := lcp.NewBrowserManager(cfg.BrowserManagerConfig(),
		lcp.WithBrowserLogger(logger.Named("browser")))
	if err != nil {
		return nil, err
	}

	auditor, err := cfg.NewAuditor()
	if err != nil {
		return nil, err
	}

	stats := lcp.NewStats()
	metrics := lcp.NewMetrics()
	service, err := lcp.NewService(browsers, auditor,
		lcp.WithLogger(logger.Named("audit")),
		lcp.WithStats(stats),
		lcp.WithMetrics(metrics),
		lcp.WithAuditTimeout(cfg.Server.AuditTimeout))
	if err != nil {
		return nil, err
	}

	return &app{
		browsers: browsers,
		service:  service,
		stats:    stats,
		metrics:  metrics,
	}, nil
}

// shutdownTimeout bounds how long a graceful stop waits for a running audit.
const shutdownTimeout = 2 * time.Minute

// Package config loads the lcpd configuration file.
//
// Settings come from three layers, later ones winning: Default, an optional
// YAML file, and command line flags applied by the caller.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thesyncim/lcpd/pkg/lcp"
)

// Auditor names accepted in Config.Auditor.
const (
	AuditorLighthouse = "lighthouse"
	AuditorCDP        = "cdp"
)

// Config is the complete lcpd configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Browser    BrowserConfig    `yaml:"browser"`
	Auditor    string           `yaml:"auditor"`
	Lighthouse LighthouseConfig `yaml:"lighthouse"`
	CDP        CDPConfig        `yaml:"cdp"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"` // 0 derives it from AuditTimeout
	AuditTimeout time.Duration `yaml:"auditTimeout"` // 0 leaves audits unbounded
}

// writeTimeoutSlack is added to the audit timeout so a timed out audit can
// still write its 500.
const writeTimeoutSlack = 30 * time.Second

// HTTPWriteTimeout returns the write timeout the listener uses. An explicit
// writeTimeout wins. Otherwise it is auditTimeout plus some slack, or none
// when audits are unbounded, so the HTTP layer never cuts an audit short.
func (c ServerConfig) HTTPWriteTimeout() time.Duration {
	switch {
	case c.WriteTimeout > 0:
		return c.WriteTimeout
	case c.AuditTimeout > 0:
		return c.AuditTimeout + writeTimeoutSlack
	}
	return 0
}

// BrowserConfig configures the shared Chrome.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless"`
	DebugPort       int           `yaml:"debugPort"`
	Bin             string        `yaml:"bin"`
	NoSandbox       bool          `yaml:"noSandbox"`
	NavigateTimeout time.Duration `yaml:"navigateTimeout"`
}

// LighthouseConfig configures the Lighthouse CLI auditor.
type LighthouseConfig struct {
	Bin       string   `yaml:"bin"`
	ExtraArgs []string `yaml:"extraArgs"`
}

// CDPConfig configures the DevTools auditor.
type CDPConfig struct {
	Settle time.Duration `yaml:"settle"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration lcpd uses without a file or flags.
func Default() Config {
	browser := lcp.DefaultBrowserConfig()
	return Config{
		Server: ServerConfig{
			Listen:      ":3000",
			ReadTimeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:        browser.Headless,
			DebugPort:       browser.DebugPort,
			NoSandbox:       browser.NoSandbox,
			NavigateTimeout: browser.NavigateTimeout,
		},
		Auditor:    AuditorLighthouse,
		Lighthouse: LighthouseConfig{Bin: lcp.DefaultLighthouseConfig().Bin},
		CDP:        CDPConfig{Settle: lcp.DefaultSettle},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads path over Default. An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields lcpd cannot start without.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("invalid server.listen %q: %w", c.Server.Listen, err)
	}
	if c.Browser.DebugPort <= 0 || c.Browser.DebugPort > 65535 {
		return fmt.Errorf("invalid browser.debugPort %d", c.Browser.DebugPort)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("invalid server.writeTimeout %s", c.Server.WriteTimeout)
	}
	if c.Server.AuditTimeout < 0 {
		return fmt.Errorf("invalid server.auditTimeout %s", c.Server.AuditTimeout)
	}
	switch c.Auditor {
	case AuditorLighthouse:
		if c.Lighthouse.Bin == "" {
			return fmt.Errorf("lighthouse.bin must be set for the %s auditor", AuditorLighthouse)
		}
	case AuditorCDP:
	default:
		return fmt.Errorf("unknown auditor %q, want %s or %s", c.Auditor, AuditorLighthouse, AuditorCDP)
	}
	return nil
}

// BrowserManagerConfig converts to the lcp browser manager configuration.
func (c Config) BrowserManagerConfig() lcp.BrowserConfig {
	return lcp.BrowserConfig{
		Headless:        c.Browser.Headless,
		DebugPort:       c.Browser.DebugPort,
		Bin:             c.Browser.Bin,
		NoSandbox:       c.Browser.NoSandbox,
		NavigateTimeout: c.Browser.NavigateTimeout,
	}
}

// NewAuditor builds the configured auditor.
func (c Config) NewAuditor() (lcp.Auditor, error) {
	switch c.Auditor {
	case AuditorCDP:
		return lcp.NewCDPAuditor(c.CDP.Settle), nil
	case AuditorLighthouse:
		a, err := lcp.NewLighthouseAuditor(lcp.LighthouseConfig{
			Bin:       c.Lighthouse.Bin,
			ExtraArgs: c.Lighthouse.ExtraArgs,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown auditor %q", c.Auditor)
	}
}

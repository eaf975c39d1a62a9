package lcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Browser is a running browser that audits open pages in.
type Browser interface {
	// NewPage opens a blank page.
	NewPage(ctx context.Context) (Page, error)
	// DebugPort is the remote debugging port external auditors attach to.
	DebugPort() int
}

// Page is a single browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Emulate(ctx context.Context, ff FormFactor) error
	Throttle(ctx context.Context, t Throttling) error
	// LargestContentfulPaint returns the latest LCP candidate of the current
	// document in milliseconds, waiting settle for buffered entries to arrive.
	LargestContentfulPaint(ctx context.Context, settle time.Duration) (float64, error)
	// Close closes the tab. Callers pass a context that is still live even
	// when the audit itself ran out of time.
	Close(ctx context.Context) error
}

// BrowserProvider hands out the shared browser.
type BrowserProvider interface {
	Browser(ctx context.Context) (Browser, error)
}

// BrowserConfig configures Chrome launch options.
type BrowserConfig struct {
	Headless        bool          // Run in headless mode (default: true)
	DebugPort       int           // Fixed remote debugging port (default: 9222)
	Bin             string        // Chrome binary, empty lets Rod find or download one
	NoSandbox       bool          // Disable the Chrome sandbox, needed in most containers
	NavigateTimeout time.Duration // Upper bound of a single navigation, 0 for none
}

// DefaultBrowserConfig returns the configuration lcpd runs with.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:        true,
		DebugPort:       9222,
		NoSandbox:       true,
		NavigateTimeout: 30 * time.Second,
	}
}

// managedBrowser is a Browser the manager owns and eventually closes.
type managedBrowser interface {
	Browser
	Close() error
}

// BrowserOption configures a BrowserManager.
type BrowserOption func(*BrowserManager) error

// WithBrowserLogger sets the logger used for launch and shutdown events.
func WithBrowserLogger(logger *zap.Logger) BrowserOption {
	return func(m *BrowserManager) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		m.logger = logger
		return nil
	}
}

// withLauncher replaces the Chrome launch. Tests use it to count launches.
func withLauncher(fn func(ctx context.Context) (managedBrowser, error)) BrowserOption {
	return func(m *BrowserManager) error {
		m.launch = fn
		return nil
	}
}

// BrowserManager lazily launches one Chrome and shares it between audits.
// The browser lives until Close is called; it is never recycled while the
// process runs.
type BrowserManager struct {
	cfg    BrowserConfig
	logger *zap.Logger
	launch func(ctx context.Context) (managedBrowser, error)

	mu      sync.Mutex
	browser managedBrowser
}

// NewBrowserManager creates a manager. Chrome is not started until the first
// call to Browser.
func NewBrowserManager(cfg BrowserConfig, opts ...BrowserOption) (*BrowserManager, error) {
	if cfg.DebugPort <= 0 || cfg.DebugPort > 65535 {
		return nil, fmt.Errorf("invalid debug port %d", cfg.DebugPort)
	}

	m := &BrowserManager{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	m.launch = m.launchChrome

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Browser returns the shared browser, launching it on first use. Concurrent
// first callers wait for a single launch. A failed launch is not remembered,
// the next call tries again.
func (m *BrowserManager) Browser(ctx context.Context) (Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return m.browser, nil
	}

	start := time.Now()
	b, err := m.launch(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b

	m.logger.Info("browser launched",
		zap.Int("debugPort", b.DebugPort()),
		zap.Bool("headless", m.cfg.Headless),
		zap.Duration("took", time.Since(start)))
	return b, nil
}

// Close shuts the browser down if it was ever launched.
func (m *BrowserManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	m.logger.Info("browser closed", zap.Error(err))
	return err
}

// launchChrome starts Chrome on the fixed debugging port so that external
// auditors can attach to the same instance.
func (m *BrowserManager) launchChrome(ctx context.Context) (managedBrowser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(m.cfg.Headless).
		RemoteDebuggingPort(m.cfg.DebugPort).
		Set("disable-gpu")
	if m.cfg.NoSandbox {
		l = l.Set("no-sandbox")
	}
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	return &rodBrowser{
		browser:         browser,
		launcher:        l,
		port:            m.cfg.DebugPort,
		navigateTimeout: m.cfg.NavigateTimeout,
	}, nil
}

type rodBrowser struct {
	browser         *rod.Browser
	launcher        *launcher.Launcher
	port            int
	navigateTimeout time.Duration
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	// Every call binds its own context; the page keeps the browser's.
	page = page.Context(b.browser.GetContext())
	return &rodPage{page: page, navigateTimeout: b.navigateTimeout}, nil
}

func (b *rodBrowser) DebugPort() int {
	return b.port
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page            *rod.Page
	navigateTimeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if p.navigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.navigateTimeout)
		defer cancel()
	}

	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Screen metrics of Lighthouse's default mobile and desktop emulation.
var (
	mobileMetrics = proto.EmulationSetDeviceMetricsOverride{
		Width:             412,
		Height:            823,
		DeviceScaleFactor: 1.75,
		Mobile:            true,
	}
	desktopMetrics = proto.EmulationSetDeviceMetricsOverride{
		Width:             1350,
		Height:            940,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}
)

func (p *rodPage) Emulate(ctx context.Context, ff FormFactor) error {
	page := p.page.Context(ctx)

	metrics := mobileMetrics
	if ff.IsDesktop() {
		metrics = desktopMetrics
	}
	if err := metrics.Call(page); err != nil {
		return fmt.Errorf("failed to emulate %s screen: %w", ff, err)
	}
	touch := proto.EmulationSetTouchEmulationEnabled{Enabled: metrics.Mobile}
	if err := touch.Call(page); err != nil {
		return fmt.Errorf("failed to set touch emulation: %w", err)
	}
	return nil
}

func (p *rodPage) Throttle(ctx context.Context, t Throttling) error {
	page := p.page.Context(ctx)

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return fmt.Errorf("failed to enable network domain: %w", err)
	}
	conditions := proto.NetworkEmulateNetworkConditions{
		Offline:            false,
		Latency:            t.Latency,
		DownloadThroughput: t.DownloadThroughput,
		UploadThroughput:   t.UploadThroughput,
	}
	if err := conditions.Call(page); err != nil {
		return fmt.Errorf("failed to throttle network: %w", err)
	}
	cpu := proto.EmulationSetCPUThrottlingRate{Rate: t.CPUSlowdownMultiplier}
	if err := cpu.Call(page); err != nil {
		return fmt.Errorf("failed to throttle CPU: %w", err)
	}
	return nil
}

// lcpScript resolves with the startTime of the last largest-contentful-paint
// entry, or null when the document produced none.
const lcpScript = `(settle) => new Promise((resolve) => {
	let lcp = null;
	try {
		new PerformanceObserver((list) => {
			for (const entry of list.getEntries()) {
				lcp = entry.startTime;
			}
		}).observe({ type: 'largest-contentful-paint', buffered: true });
	} catch (e) {
		resolve(null);
		return;
	}
	setTimeout(() => resolve(lcp), settle);
})`

func (p *rodPage) LargestContentfulPaint(ctx context.Context, settle time.Duration) (float64, error) {
	res, err := p.page.Context(ctx).Eval(lcpScript, settle.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to read largest contentful paint: %w", err)
	}
	if res.Value.Nil() {
		return 0, errors.New("page recorded no largest-contentful-paint entry")
	}
	return res.Value.Num(), nil
}

func (p *rodPage) Close(ctx context.Context) error {
	return p.page.Context(ctx).Close()
}

package lcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thesyncim/lcpd/pkg/lcp/internal"
)

// pageCloseTimeout bounds closing a tab once an audit is over.
const pageCloseTimeout = 10 * time.Second

// ServiceOption configures a Service.
type ServiceOption func(*Service) error

// WithLogger sets the logger. Default: no-op.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithStats records every outcome into stats.
func WithStats(stats *Stats) ServiceOption {
	return func(s *Service) error {
		s.stats = stats
		return nil
	}
}

// WithMetrics exports every outcome to Prometheus.
func WithMetrics(metrics *Metrics) ServiceOption {
	return func(s *Service) error {
		s.metrics = metrics
		return nil
	}
}

// WithAuditTimeout bounds an admitted audit. Default: 0, no bound beyond what
// the browser and auditor impose themselves.
func WithAuditTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d < 0 {
			return errors.New("audit timeout must not be negative")
		}
		s.timeout = d
		return nil
	}
}

func withClock(c internal.Clock) ServiceOption {
	return func(s *Service) error {
		s.clock = c
		return nil
	}
}

// Service measures LCP, one audit at a time. Requests arriving while an
// audit runs are rejected with ErrBusy; nothing is queued.
type Service struct {
	gate     *Gate
	browsers BrowserProvider
	auditor  Auditor

	logger  *zap.Logger
	stats   *Stats
	metrics *Metrics
	timeout time.Duration
	clock   internal.Clock
}

// NewService creates a service that opens pages in the browsers handed out by
// browsers and measures them with auditor.
func NewService(browsers BrowserProvider, auditor Auditor, opts ...ServiceOption) (*Service, error) {
	if browsers == nil {
		return nil, errors.New("browser provider must not be nil")
	}
	if auditor == nil {
		return nil, errors.New("auditor must not be nil")
	}

	s := &Service{
		gate:     NewGate(),
		browsers: browsers,
		auditor:  auditor,
		logger:   zap.NewNop(),
		clock:    internal.SystemClock{},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Busy reports whether an audit is in flight.
func (s *Service) Busy() bool {
	return s.gate.Busy()
}

// Measure audits url with settings and returns its LCP in seconds.
//
// A busy gate is checked first and yields ErrBusy; an empty url yields
// ErrURLRequired without touching the gate. Once admitted, the gate is held
// until Measure returns, whatever the outcome.
func (s *Service) Measure(ctx context.Context, url string, settings Settings) (Result, error) {
	if s.gate.Busy() {
		s.rejected(url)
		return Result{}, ErrBusy
	}
	if url == "" {
		s.metrics.observe(OutcomeInvalid)
		return Result{}, ErrURLRequired
	}
	if !s.gate.TryAcquire() {
		s.rejected(url)
		return Result{}, ErrBusy
	}
	defer s.gate.Release()

	s.metrics.setInFlight(1)
	defer s.metrics.setInFlight(0)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.logger.With(zap.String("url", url))
	log.Info("audit started",
		zap.Float64("cpuSlowdownMultiplier", settings.Throttling.CPUSlowdownMultiplier),
		zap.Float64("downloadThroughput", settings.Throttling.DownloadThroughput),
		zap.Float64("uploadThroughput", settings.Throttling.UploadThroughput),
		zap.Float64("latency", settings.Throttling.Latency),
		zap.String("formFactor", string(settings.FormFactor)))

	start := s.clock.Now()
	lcp, err := s.audit(ctx, url, settings, log)
	took := s.clock.Now().Sub(start)

	if err != nil {
		log.Warn("audit failed", zap.Duration("took", took), zap.Error(err))
		s.stats.RecordFailure(took)
		s.metrics.observeAudit(took, 0, false)
		return Result{}, err
	}

	log.Info("audit finished", zap.Float64("lcp", lcp), zap.Duration("took", took))
	s.stats.RecordSuccess(lcp, took)
	s.metrics.observeAudit(took, lcp, true)
	return Result{URL: url, LCP: lcp}, nil
}

func (s *Service) rejected(url string) {
	s.logger.Debug("audit rejected, gate busy", zap.String("url", url))
	s.stats.RecordRejected()
	s.metrics.observe(OutcomeRejected)
}

// audit runs one measurement. The page is closed on every path; only a
// close failure after a good measurement is reported.
func (s *Service) audit(ctx context.Context, url string, settings Settings, log *zap.Logger) (float64, error) {
	browser, err := s.browsers.Browser(ctx)
	if err != nil {
		return 0, err
	}

	page, err := browser.NewPage(ctx)
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		if closed {
			return
		}
		if err := closePage(ctx, page); err != nil {
			log.Warn("failed to close page after error", zap.Error(err))
		}
	}()

	if err := page.Navigate(ctx, url); err != nil {
		return 0, err
	}

	report, err := s.auditor.Audit(ctx, page, AuditRequest{
		URL:      url,
		Port:     browser.DebugPort(),
		Settings: settings,
	})
	if err != nil {
		return 0, err
	}

	lcp, err := ExtractLCP(report)
	if err != nil {
		return 0, err
	}

	closed = true
	if err := closePage(ctx, page); err != nil {
		return 0, fmt.Errorf("failed to close page: %w", err)
	}
	return lcp, nil
}

// closePage closes page on a context detached from ctx, so a tab still closes
// after the audit deadline has passed.
func closePage(ctx context.Context, page Page) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pageCloseTimeout)
	defer cancel()
	return page.Close(ctx)
}

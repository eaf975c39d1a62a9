package lcp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// lcpReport builds the smallest report ExtractLCP accepts.
func lcpReport(ms float64) []byte {
	return []byte(fmt.Sprintf(`{"audits":{"largest-contentful-paint":{"numericValue":%v}}}`, ms))
}

type fakePage struct {
	mu        sync.Mutex
	navigated []string
	emulated  []FormFactor
	throttled []Throttling
	settles   []time.Duration
	closed    int

	// closeCtxErrs holds ctx.Err() of every Close call.
	closeCtxErrs []error

	lcpMs    float64
	navErr   error
	lcpErr   error
	closeErr error
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) Emulate(_ context.Context, ff FormFactor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emulated = append(p.emulated, ff)
	return nil
}

func (p *fakePage) Throttle(_ context.Context, t Throttling) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.throttled = append(p.throttled, t)
	return nil
}

func (p *fakePage) LargestContentfulPaint(_ context.Context, settle time.Duration) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settles = append(p.settles, settle)
	return p.lcpMs, p.lcpErr
}

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	p.closeCtxErrs = append(p.closeCtxErrs, ctx.Err())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return p.closeErr
}

func (p *fakePage) closeContextErrs() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.closeCtxErrs...)
}

func (p *fakePage) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeBrowser struct {
	mu         sync.Mutex
	port       int
	pages      []*fakePage
	newPageErr error
	navErr     error
	closeErr   error
	closed     int
}

func (b *fakeBrowser) NewPage(context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	p := &fakePage{navErr: b.navErr, closeErr: b.closeErr}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) DebugPort() int {
	return b.port
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *fakeBrowser) lastPage() *fakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pages) == 0 {
		return nil
	}
	return b.pages[len(b.pages)-1]
}

func (b *fakeBrowser) pageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages)
}

type fakeProvider struct {
	browser *fakeBrowser
	err     error
	calls   atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{browser: &fakeBrowser{port: 9222}}
}

func (p *fakeProvider) Browser(context.Context) (Browser, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.browser, nil
}

// staticAuditor returns the same report every time and remembers requests.
type staticAuditor struct {
	mu       sync.Mutex
	report   []byte
	err      error
	requests []AuditRequest
}

func (a *staticAuditor) Audit(_ context.Context, _ Page, req AuditRequest) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return a.report, a.err
}

func (a *staticAuditor) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

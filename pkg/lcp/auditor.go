package lcp

import "context"

// AuditRequest is what an auditor needs to measure one page.
type AuditRequest struct {
	URL      string
	Port     int // remote debugging port of the shared browser
	Settings Settings
}

// Auditor runs a performance audit and returns a Lighthouse-shaped JSON
// report. page has already been navigated to req.URL.
type Auditor interface {
	Audit(ctx context.Context, page Page, req AuditRequest) ([]byte, error)
}

// AuditorFunc adapts a function to the Auditor interface.
type AuditorFunc func(ctx context.Context, page Page, req AuditRequest) ([]byte, error)

// Audit calls f.
func (f AuditorFunc) Audit(ctx context.Context, page Page, req AuditRequest) ([]byte, error) {
	return f(ctx, page, req)
}

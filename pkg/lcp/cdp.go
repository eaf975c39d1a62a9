package lcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultSettle is how long the CDP auditor waits for buffered LCP entries
// after the load event.
const DefaultSettle = 250 * time.Millisecond

// CDPAuditor measures LCP directly over the DevTools protocol, without a
// Lighthouse install. It throttles the already open page, reloads the URL and
// reads the LCP entry the page itself recorded.
type CDPAuditor struct {
	settle time.Duration
}

// NewCDPAuditor creates a CDP auditor. A non-positive settle uses DefaultSettle.
func NewCDPAuditor(settle time.Duration) *CDPAuditor {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &CDPAuditor{settle: settle}
}

// cdpReport mirrors the subset of a Lighthouse result that lcpd consumes.
type cdpReport struct {
	RequestedURL   string              `json:"requestedUrl"`
	FetchTime      string              `json:"fetchTime"`
	ConfigSettings cdpConfigSettings   `json:"configSettings"`
	Audits         map[string]cdpAudit `json:"audits"`
}

type cdpConfigSettings struct {
	ThrottlingMethod   string     `json:"throttlingMethod"`
	Throttling         Throttling `json:"throttling"`
	EmulatedFormFactor FormFactor `json:"formFactor"`
	OnlyCategories     []string   `json:"onlyCategories"`
}

type cdpAudit struct {
	ID           string  `json:"id"`
	NumericValue float64 `json:"numericValue"`
	NumericUnit  string  `json:"numericUnit"`
}

// Audit applies emulation and throttling to page, loads req.URL again under
// those constraints and reports the LCP the page recorded.
func (a *CDPAuditor) Audit(ctx context.Context, page Page, req AuditRequest) ([]byte, error) {
	if page == nil {
		return nil, errors.New("cdp auditor needs an open page")
	}
	if err := req.Settings.Throttling.Validate(); err != nil {
		return nil, err
	}

	if err := page.Emulate(ctx, req.Settings.FormFactor); err != nil {
		return nil, err
	}
	if err := page.Throttle(ctx, req.Settings.Throttling); err != nil {
		return nil, err
	}
	if err := page.Navigate(ctx, req.URL); err != nil {
		return nil, err
	}

	ms, err := page.LargestContentfulPaint(ctx, a.settle)
	if err != nil {
		return nil, err
	}

	report := cdpReport{
		RequestedURL: req.URL,
		FetchTime:    time.Now().UTC().Format(time.RFC3339Nano),
		ConfigSettings: cdpConfigSettings{
			ThrottlingMethod:   "devtools",
			Throttling:         req.Settings.Throttling,
			EmulatedFormFactor: req.Settings.FormFactor,
			OnlyCategories:     []string{"performance"},
		},
		Audits: map[string]cdpAudit{
			LCPAuditID: {
				ID:           LCPAuditID,
				NumericValue: ms,
				NumericUnit:  "millisecond",
			},
		},
	}

	out, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return out, nil
}

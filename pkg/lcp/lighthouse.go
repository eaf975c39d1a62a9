package lcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// LighthouseConfig configures the Lighthouse CLI auditor.
type LighthouseConfig struct {
	Bin       string   // Lighthouse executable (default: "lighthouse")
	ExtraArgs []string // Appended before the URL
}

// DefaultLighthouseConfig returns a config that runs "lighthouse" from PATH.
func DefaultLighthouseConfig() LighthouseConfig {
	return LighthouseConfig{Bin: "lighthouse"}
}

// LighthouseAuditor audits by running the Lighthouse CLI against the shared
// browser's debugging port. Lighthouse opens its own tab there; the page it is
// handed is not touched.
type LighthouseAuditor struct {
	cfg LighthouseConfig
}

// NewLighthouseAuditor creates a Lighthouse CLI auditor.
func NewLighthouseAuditor(cfg LighthouseConfig) (*LighthouseAuditor, error) {
	if cfg.Bin == "" {
		return nil, errors.New("lighthouse binary must not be empty")
	}
	return &LighthouseAuditor{cfg: cfg}, nil
}

// Audit runs Lighthouse and returns its JSON result.
func (a *LighthouseAuditor) Audit(ctx context.Context, _ Page, req AuditRequest) ([]byte, error) {
	if err := req.Settings.Throttling.Validate(); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, a.cfg.Bin, a.args(req)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("lighthouse failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("lighthouse failed: %w", err)
	}
	return stdout.Bytes(), nil
}

// args builds the Lighthouse command line. Throughput is converted from
// bytes/s to the Kbps Lighthouse expects.
func (a *LighthouseAuditor) args(req AuditRequest) []string {
	t := req.Settings.Throttling
	ff := req.Settings.FormFactor

	args := []string{
		"--port=" + strconv.Itoa(req.Port),
		"--output=json",
		"--output-path=stdout",
		"--quiet",
		"--only-categories=performance",
		"--throttling-method=devtools",
		"--throttling.cpuSlowdownMultiplier=" + strconv.FormatFloat(t.CPUSlowdownMultiplier, 'f', -1, 64),
		"--throttling.downloadThroughputKbps=" + formatKbps(t.DownloadThroughput),
		"--throttling.uploadThroughputKbps=" + formatKbps(t.UploadThroughput),
		"--throttling.requestLatencyMs=" + strconv.FormatFloat(t.Latency, 'f', -1, 64),
		"--form-factor=" + string(ff),
		"--screenEmulation.mobile=" + strconv.FormatBool(!ff.IsDesktop()),
	}
	args = append(args, a.cfg.ExtraArgs...)
	return append(args, req.URL)
}

func formatKbps(bytesPerSecond float64) string {
	return strconv.FormatFloat(bytesPerSecond*8/1024, 'f', -1, 64)
}

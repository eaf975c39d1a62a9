//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/lcpd/cmd/lcpd/server"
	"github.com/thesyncim/lcpd/pkg/lcp"
	"github.com/thesyncim/lcpd/pkg/lcp/testutil"
)

type lcpBody struct {
	URL   string  `json:"url"`
	LCP   float64 `json:"lcp"`
	Error string  `json:"error"`
}

// startLCPD wires a real browser manager behind the HTTP server.
func startLCPD(t *testing.T, debugPort int, auditor lcp.Auditor) (string, *lcp.Service) {
	t.Helper()

	cfg := lcp.DefaultBrowserConfig()
	cfg.DebugPort = debugPort
	browsers, err := lcp.NewBrowserManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := browsers.Close(); err != nil {
			t.Errorf("browser close error: %v", err)
		}
	})

	svc, err := lcp.NewService(browsers, auditor)
	require.NoError(t, err)

	srv, err := server.NewServer(server.DefaultConfig(), svc)
	require.NoError(t, err)
	addr, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("server shutdown error: %v", err)
		}
	})

	return "http://" + addr, svc
}

func getLCP(t *testing.T, base string, params url.Values) (int, lcpBody) {
	t.Helper()
	resp, err := http.Get(base + "/lcp?" + params.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()

	var body lcpBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestLCP_CDPAuditor(t *testing.T) {
	pages := testutil.NewPageServer(testutil.PageServerConfig{ImageDelay: 300 * time.Millisecond})
	defer pages.Close()

	base, _ := startLCPD(t, 9231, lcp.NewCDPAuditor(0))

	status, body := getLCP(t, base, url.Values{"url": {pages.PageURL()}})
	require.Equal(t, http.StatusOK, status, body.Error)
	assert.Equal(t, pages.PageURL(), body.URL)
	// The hero image is held back 300ms, so LCP cannot land earlier
	assert.Greater(t, body.LCP, 0.3)
	assert.Less(t, body.LCP, 30.0)

	// Browser is reused, the gate is free again
	status, body = getLCP(t, base, url.Values{
		"url":                {pages.PageURL()},
		"emulatedFormFactor": {"desktop"},
		"latency":            {"0"},
	})
	require.Equal(t, http.StatusOK, status, body.Error)
}

func TestLCP_RejectsConcurrentAudit(t *testing.T) {
	pages := testutil.NewPageServer(testutil.PageServerConfig{DocumentDelay: 2 * time.Second})
	defer pages.Close()

	base, svc := startLCPD(t, 9232, lcp.NewCDPAuditor(0))

	first := make(chan int, 1)
	go func() {
		resp, err := http.Get(base + "/lcp?" + url.Values{"url": {pages.PageURL()}}.Encode())
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	require.Eventually(t, svc.Busy, 30*time.Second, 10*time.Millisecond)

	status, body := getLCP(t, base, url.Values{"url": {pages.PageURL()}})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, lcp.ErrBusy.Error(), body.Error)

	assert.Equal(t, http.StatusOK, <-first)
	assert.False(t, svc.Busy())
}

func TestLCP_UnreachableURL(t *testing.T) {
	base, svc := startLCPD(t, 9233, lcp.NewCDPAuditor(0))

	status, body := getLCP(t, base, url.Values{"url": {"http://127.0.0.1:1/"}})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body.Error)
	assert.False(t, svc.Busy())
}

func TestLCP_ClosesTabAfterAuditTimeout(t *testing.T) {
	pages := testutil.NewPageServer(testutil.PageServerConfig{})
	defer pages.Close()

	const port = 9235
	cfg := lcp.DefaultBrowserConfig()
	cfg.DebugPort = port
	browsers, err := lcp.NewBrowserManager(cfg)
	require.NoError(t, err)
	defer browsers.Close()

	// Launch the browser and settle its tab count with one good audit
	svc, err := lcp.NewService(browsers, lcp.NewCDPAuditor(0))
	require.NoError(t, err)
	_, err = svc.Measure(context.Background(), pages.PageURL(), lcp.DefaultSettings())
	require.NoError(t, err)

	u, err := launcher.ResolveURL("127.0.0.1:" + strconv.Itoa(port))
	require.NoError(t, err)
	observer := rod.New().ControlURL(u)
	require.NoError(t, observer.Connect())
	before, err := observer.Pages()
	require.NoError(t, err)

	stuck := lcp.AuditorFunc(func(ctx context.Context, _ lcp.Page, _ lcp.AuditRequest) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	svc, err = lcp.NewService(browsers, stuck, lcp.WithAuditTimeout(2*time.Second))
	require.NoError(t, err)
	_, err = svc.Measure(context.Background(), pages.PageURL(), lcp.DefaultSettings())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	after, err := observer.Pages()
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestLCP_Lighthouse(t *testing.T) {
	bin, err := exec.LookPath("lighthouse")
	if err != nil {
		t.Skip("lighthouse CLI not on PATH")
	}

	pages := testutil.NewPageServer(testutil.PageServerConfig{})
	defer pages.Close()

	auditor, err := lcp.NewLighthouseAuditor(lcp.LighthouseConfig{Bin: bin})
	require.NoError(t, err)
	base, _ := startLCPD(t, 9234, auditor)

	status, body := getLCP(t, base, url.Values{"url": {pages.PageURL()}})
	require.Equal(t, http.StatusOK, status, body.Error)
	assert.Greater(t, body.LCP, 0.0)
}

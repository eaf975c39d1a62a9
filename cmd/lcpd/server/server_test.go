package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/lcpd/pkg/lcp"
)

func shutdown(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestServer_ServesLCPAndHealthAcrossRestart(t *testing.T) {
	svc := &fakeMeasurer{result: lcp.Result{LCP: 1.75}}
	srv, err := NewServer(DefaultConfig(), svc)
	require.NoError(t, err)

	for round := 0; round < 2; round++ {
		addr, err := srv.Start()
		require.NoError(t, err, "round %d", round)
		require.NotEqual(t, ":0", addr)
		assert.Equal(t, addr, srv.Addr())

		status, body := getJSON(t, "http://"+addr+"/healthz")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ok", body["status"])

		status, body = getJSON(t, "http://"+addr+"/lcp?url=https://example.com&latency=80")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "https://example.com", body["url"])
		assert.Equal(t, 1.75, body["lcp"])

		shutdown(t, srv)
		assert.Empty(t, srv.Addr(), "round %d", round)

		_, err = http.Get("http://" + addr + "/healthz")
		assert.Error(t, err, "round %d", round)
	}

	require.Len(t, svc.calls, 2)
	assert.Equal(t, 80.0, svc.calls[1].settings.Throttling.Latency)
}

func TestServer_StartWhileRunningKeepsAddr(t *testing.T) {
	srv, err := NewServer(DefaultConfig(), &fakeMeasurer{})
	require.NoError(t, err)

	addr, err := srv.Start()
	require.NoError(t, err)
	defer shutdown(t, srv)

	again, err := srv.Start()
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv, err := NewServer(DefaultConfig(), &fakeMeasurer{})
	require.NoError(t, err)

	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Addr())
}

func TestServer_BusyOverHTTP(t *testing.T) {
	srv, err := NewServer(DefaultConfig(), &fakeMeasurer{busy: true})
	require.NoError(t, err)
	addr, err := srv.Start()
	require.NoError(t, err)
	defer shutdown(t, srv)

	status, body := getJSON(t, "http://"+addr+"/lcp?url=https://example.com")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, lcp.ErrBusy.Error(), body["error"])

	_, body = getJSON(t, "http://"+addr+"/healthz")
	assert.Equal(t, true, body["busy"])
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":0", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	// Audits are not cut off by the HTTP layer
	assert.Zero(t, cfg.WriteTimeout)
}

func TestNewServer_NilMeasurer(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestServer_UsagePage(t *testing.T) {
	h := newTestHandler(t, &fakeMeasurer{})

	rec, _ := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `id="lcp-form"`)

	rec, _ = get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package testutil

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageServer(t *testing.T) {
	srv := NewPageServer(PageServerConfig{ImageDelay: 10 * time.Millisecond})
	defer srv.Close()

	resp, err := http.Get(srv.PageURL())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/hero.svg")

	start := time.Now()
	resp, err = http.Get(srv.URL + "/hero.svg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

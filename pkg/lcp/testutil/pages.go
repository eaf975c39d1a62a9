// pages.go serves deterministic test pages for E2E LCP measurements.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"
)

// HeroPage is a page whose largest contentful element is a big heading
// painted after the image loads.
const HeroPage = `<!DOCTYPE html>
<html>
<head><title>LCP hero</title></head>
<body>
    <h1 style="font-size: 64px">Largest Contentful Paint</h1>
    <img src="/hero.svg" width="800" height="600" alt="hero">
</body>
</html>
`

// heroSVG is the image referenced by HeroPage.
const heroSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600">
<rect width="800" height="600" fill="#4285f4"/>
</svg>`

// PageServerConfig configures the test page server.
type PageServerConfig struct {
	// ImageDelay holds back the hero image, pushing LCP later.
	ImageDelay time.Duration
	// DocumentDelay holds back the HTML document itself.
	DocumentDelay time.Duration
}

// PageServer serves HeroPage at "/" and its image at "/hero.svg".
type PageServer struct {
	*httptest.Server
}

// NewPageServer starts a page server on a random local port.
// Always Close it (via defer).
func NewPageServer(cfg PageServerConfig) *PageServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(cfg.DocumentDelay)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, HeroPage)
	})
	mux.HandleFunc("/hero.svg", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(cfg.ImageDelay)
		w.Header().Set("Content-Type", "image/svg+xml")
		fmt.Fprint(w, heroSVG)
	})
	return &PageServer{Server: httptest.NewServer(mux)}
}

// PageURL returns the URL of the hero page.
func (s *PageServer) PageURL() string {
	return s.URL + "/"
}

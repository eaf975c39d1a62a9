package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/thesyncim/lcpd/pkg/lcp"
)

// Measurer runs LCP audits. *lcp.Service implements it.
type Measurer interface {
	Measure(ctx context.Context, url string, settings lcp.Settings) (lcp.Result, error)
	Busy() bool
}

// errorBody is the JSON shape of every error answer.
type errorBody struct {
	Error string `json:"error"`
}

// HandleLCP returns the GET /lcp handler.
//
// A busy service answers 429 before anything else is looked at. A missing url
// answers 400. Audit failures answer 500 with the error text. The audit is
// detached from the request context: a client hanging up does not abort it.
func HandleLCP(svc Measurer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target := q.Get("url")

		settings := parseSettings(q)

		res, err := svc.Measure(context.WithoutCancel(r.Context()), target, settings)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, lcp.ErrBusy):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, lcp.ErrURLRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error("lcp request failed", zap.String("url", target), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

// HandleHealth returns the GET /healthz handler.
func HandleHealth(svc Measurer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"busy":   svc.Busy(),
		})
	}
}

// HandleStats returns the GET /stats handler. A nil stats reports zeros.
func HandleStats(stats *lcp.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, stats.Snapshot())
	}
}

// parseSettings reads the optional throttling parameters. Absent or empty
// parameters keep their default. Other values are read like JavaScript's
// parseFloat and parseInt: the leading number counts and trailing text is
// ignored, so "150ms" is 150. A value with no leading number becomes NaN and
// is left for the auditor to refuse.
func parseSettings(q url.Values) lcp.Settings {
	s := lcp.DefaultSettings()

	if v := q.Get("cpuSlowdownMultiplier"); v != "" {
		s.Throttling.CPUSlowdownMultiplier = parseFloatPrefix(v)
	}

	ints := []struct {
		name string
		dst  *float64
	}{
		{"downloadThroughput", &s.Throttling.DownloadThroughput},
		{"uploadThroughput", &s.Throttling.UploadThroughput},
		{"latency", &s.Throttling.Latency},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			*p.dst = parseIntPrefix(v)
		}
	}

	if v := q.Get("emulatedFormFactor"); v != "" {
		s.FormFactor = lcp.FormFactor(v)
	}
	return s
}

// parseFloatPrefix returns the decimal number at the start of v, or NaN.
// "Infinity" with an optional sign is accepted.
func parseFloatPrefix(v string) float64 {
	v = strings.TrimLeftFunc(v, unicode.IsSpace)

	i := 0
	if i < len(v) && (v[i] == '+' || v[i] == '-') {
		i++
	}
	if strings.HasPrefix(v[i:], "Infinity") {
		if v[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	intDigits := countDigits(v[i:])
	i += intDigits
	fracDigits := 0
	if i < len(v) && v[i] == '.' {
		fracDigits = countDigits(v[i+1:])
		if intDigits > 0 || fracDigits > 0 {
			i += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return math.NaN()
	}

	// An exponent only counts when at least one digit follows it.
	if i < len(v) && (v[i] == 'e' || v[i] == 'E') {
		j := i + 1
		if j < len(v) && (v[j] == '+' || v[j] == '-') {
			j++
		}
		if n := countDigits(v[j:]); n > 0 {
			i = j + n
		}
	}

	f, err := strconv.ParseFloat(v[:i], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	// On overflow ParseFloat already returns ±Inf, matching JavaScript.
	return f
}

// parseIntPrefix returns the integer at the start of v, or NaN. A "0x" or
// "0X" prefix switches to hexadecimal, so "0x10" is 16.
func parseIntPrefix(v string) float64 {
	v = strings.TrimLeftFunc(v, unicode.IsSpace)

	sign := 1.0
	if v != "" && (v[0] == '+' || v[0] == '-') {
		if v[0] == '-' {
			sign = -1
		}
		v = v[1:]
	}

	base := 10.0
	if len(v) >= 2 && v[0] == '0' && (v[1] == 'x' || v[1] == 'X') {
		base = 16
		v = v[2:]
	}

	n, seen := 0.0, false
	for _, c := range v {
		d := digitValue(c)
		if d < 0 || float64(d) >= base {
			break
		}
		n = n*base + float64(d)
		seen = true
	}
	if !seen {
		return math.NaN()
	}
	return sign * n
}

func countDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

func digitValue(c rune) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// accessLog logs one line per request.
func accessLog(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

// Package lcp measures the Largest Contentful Paint of a webpage in a headless
// Chrome under network and CPU throttling.
package lcp

import (
	"errors"
	"fmt"
	"math"
)

// Default throttling applied when a caller leaves a field unset.
const (
	DefaultCPUSlowdownMultiplier = 1.2
	DefaultDownloadThroughput    = 4096 * 1024 // bytes/s
	DefaultUploadThroughput      = 1024 * 1024 // bytes/s
	DefaultLatency               = 40          // ms
)

// FormFactor selects the device class emulated during the audit.
type FormFactor string

const (
	// FormFactorMobile emulates a mid-range phone. This is the default.
	FormFactorMobile FormFactor = "mobile"
	// FormFactorDesktop emulates a desktop screen.
	FormFactorDesktop FormFactor = "desktop"
)

// IsDesktop reports whether f requests desktop emulation. Any other value,
// including unknown ones, is treated as mobile.
func (f FormFactor) IsDesktop() bool {
	return f == FormFactorDesktop
}

// Throttling describes the simulated CPU and network constraints of a page
// load. Values are not range checked: they are handed to the auditor as is.
// A field may hold NaN when the caller's input carried no number at all;
// auditors refuse such settings with ErrInvalidThrottling.
type Throttling struct {
	CPUSlowdownMultiplier float64 `json:"cpuSlowdownMultiplier"`
	DownloadThroughput    float64 `json:"downloadThroughput"` // bytes/s
	UploadThroughput      float64 `json:"uploadThroughput"`   // bytes/s
	Latency               float64 `json:"latency"`            // ms
}

// Validate reports the first field that is not a finite number. Negative and
// zero values pass.
func (t Throttling) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"cpuSlowdownMultiplier", t.CPUSlowdownMultiplier},
		{"downloadThroughput", t.DownloadThroughput},
		{"uploadThroughput", t.UploadThroughput},
		{"latency", t.Latency},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidThrottling, f.name, f.v)
		}
	}
	return nil
}

// Settings is everything a caller may tune for one audit.
type Settings struct {
	Throttling Throttling `json:"throttling"`
	FormFactor FormFactor `json:"emulatedFormFactor"`
}

// DefaultSettings returns the settings used when a request supplies none.
func DefaultSettings() Settings {
	return Settings{
		Throttling: Throttling{
			CPUSlowdownMultiplier: DefaultCPUSlowdownMultiplier,
			DownloadThroughput:    DefaultDownloadThroughput,
			UploadThroughput:      DefaultUploadThroughput,
			Latency:               DefaultLatency,
		},
		FormFactor: FormFactorMobile,
	}
}

// Result is the outcome of a successful measurement.
type Result struct {
	URL string  `json:"url"`
	LCP float64 `json:"lcp"` // seconds
}

var (
	// ErrURLRequired is returned when no target URL is given.
	ErrURLRequired = errors.New("URL is required")

	// ErrBusy is returned when another audit holds the gate.
	ErrBusy = errors.New("A test is already running. Please try again later.")

	// ErrMalformedReport is returned when an audit report lacks a numeric LCP value.
	ErrMalformedReport = errors.New("malformed audit report")

	// ErrInvalidThrottling is returned by auditors handed a throttling value
	// that is not a finite number.
	ErrInvalidThrottling = errors.New("invalid throttling")
)

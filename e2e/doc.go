//go:build e2e

// Package e2e provides end-to-end tests for lcpd.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// The Lighthouse test additionally needs the lighthouse CLI on PATH and is
// skipped otherwise.
//
// Each test starts its own lcpd server on a random port and its own Chrome
// on a distinct debugging port, so tests may run in parallel.
package e2e

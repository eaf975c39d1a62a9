package lcp

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// LCPAuditID is the audit key of Largest Contentful Paint in a Lighthouse report.
const LCPAuditID = "largest-contentful-paint"

// gjson treats '-' literally, only '.', '*', '?' and '|' need escaping.
const lcpValuePath = "audits." + LCPAuditID + ".numericValue"

// ExtractLCP reads the LCP value out of a Lighthouse-shaped report and
// converts it from milliseconds to seconds.
func ExtractLCP(report []byte) (float64, error) {
	if !gjson.ValidBytes(report) {
		return 0, fmt.Errorf("%w: not valid JSON", ErrMalformedReport)
	}

	value := gjson.GetBytes(report, lcpValuePath)
	if !value.Exists() {
		if msg := ExtractRuntimeError(report); msg != "" {
			return 0, fmt.Errorf("%w: %s", ErrMalformedReport, msg)
		}
		return 0, fmt.Errorf("%w: %s not found", ErrMalformedReport, lcpValuePath)
	}
	if value.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s is %s, want number", ErrMalformedReport, lcpValuePath, value.Type)
	}

	return value.Float() / 1000, nil
}

// ExtractRuntimeError returns the message of a Lighthouse runtimeError, or ""
// if the report carries none.
func ExtractRuntimeError(report []byte) string {
	return gjson.GetBytes(report, "runtimeError.message").String()
}

package retrieval

import (
	"strings"

	"github.com/papercomputeco/memorag/pkg/errdefs"
)

// FailurePolicy decides what happens when a capability call fails for one
// chunk or one batch record.
type FailurePolicy int

const (
	// FailFast aborts on the first failure.
	FailFast FailurePolicy = iota

	// SkipAndReport logs the failure, records it, and continues.
	SkipAndReport
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case SkipAndReport:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses "fail-fast" or "skip". The empty string is
// fail-fast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast", "fail_fast":
		return FailFast, nil
	case "skip", "skip-and-report", "skip_and_report":
		return SkipAndReport, nil
	default:
		return FailFast, errdefs.InvalidArgument("unknown failure policy %q (want fail-fast or skip)", s)
	}
}

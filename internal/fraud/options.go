package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Options carries the tunable inputs of the rule chain. The evaluator takes
// them at construction so environments and tests can swap lists and
// thresholds without touching process-wide state.
type Options struct {
	BlacklistedKeys  []string
	SuspiciousTokens []string
	Thresholds       Thresholds
}

// Thresholds groups the numeric cut-offs used by the rules.
type Thresholds struct {
	HighAmount       decimal.Decimal // rule 1: anything above is fraud outright
	LargeAmount      decimal.Decimal // rule 10: above this outside business hours
	SmallAmount      decimal.Decimal // rule 9: "small" transfer upper bound
	DuplicateWindow  time.Duration   // rule 6
	VelocityWindow   time.Duration   // rule 7
	VelocityLimit    int             // rule 7: fraud when prior count exceeds this
	StructuringLimit int             // rule 9: fraud at this many small transfers
}

// DefaultOptions returns the production rule configuration.
func DefaultOptions() Options {
	return Options{
		BlacklistedKeys:  []string{"suspeito@fraude.com", "12345678900"},
		SuspiciousTokens: []string{"fraude", "scam", "teste", "suspeito"},
		Thresholds: Thresholds{
			HighAmount:       decimal.NewFromInt(10000),
			LargeAmount:      decimal.NewFromInt(5000),
			SmallAmount:      decimal.NewFromInt(50),
			DuplicateWindow:  60 * time.Second,
			VelocityWindow:   60 * time.Second,
			VelocityLimit:    5,
			StructuringLimit: 5,
		},
	}
}

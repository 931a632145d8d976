package fraud

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// History answers windowed aggregate questions over committed transactions.
// Windows trail the reference time: [at-window, at]. Implementations must
// never expose records from storage transactions still in flight.
type History interface {
	// ExistsDuplicate reports whether any committed record with the same pix
	// key and amount falls inside the trailing window.
	ExistsDuplicate(ctx context.Context, pixKey string, amount decimal.Decimal, at time.Time, window time.Duration) (bool, error)

	// CountBySender counts committed records from the sender inside the
	// trailing window.
	CountBySender(ctx context.Context, senderID string, at time.Time, window time.Duration) (int, error)

	// CountSmallAmountsToday counts the sender's committed records with
	// amount below the threshold on the same UTC calendar date as at.
	CountSmallAmountsToday(ctx context.Context, senderID string, below decimal.Decimal, at time.Time) (int, error)
}

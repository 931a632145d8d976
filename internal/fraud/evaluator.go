package fraud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pixguard/pixguard/internal/models"
)

// Reason texts, one per rule. The first matching rule's reason is reported
// verbatim on the committed record and in the fraud log.
const (
	ReasonAmountTooHigh     = "amount too high"
	ReasonSelfTransfer      = "self-transfer"
	ReasonInvalidPixKey     = "invalid pix key"
	ReasonOffHours          = "off-hours transfer"
	ReasonSuspiciousKey     = "suspicious key content"
	ReasonDuplicateTransfer = "duplicate transfer"
	ReasonSenderVelocity    = "sender velocity"
	ReasonBlacklistedKey    = "blacklisted key"
	ReasonStructuring       = "structuring pattern"
	ReasonLargeOffHours     = "large off-hours amount"
)

// Verdict is the outcome of evaluating one draft. Reason is empty exactly
// when IsFraud is false.
type Verdict struct {
	IsFraud bool
	Reason  string
}

type rule struct {
	reason string
	match  func(ctx context.Context, draft models.TransactionDraft, at time.Time, history History) (bool, error)
}

// Evaluator runs the ordered rule chain. Rules short-circuit: the first match
// decides the verdict and later rules are never consulted, so the order below
// is part of the contract.
type Evaluator struct {
	opts  Options
	rules []rule
	now   func() time.Time
}

// NewEvaluator builds an Evaluator from the given options.
func NewEvaluator(opts Options) *Evaluator {
	e := &Evaluator{
		opts: opts,
		now:  time.Now,
	}

	blacklist := make(map[string]struct{}, len(opts.BlacklistedKeys))
	for _, key := range opts.BlacklistedKeys {
		blacklist[key] = struct{}{}
	}

	tokens := make([]string, 0, len(opts.SuspiciousTokens))
	for _, token := range opts.SuspiciousTokens {
		tokens = append(tokens, strings.ToLower(token))
	}

	t := opts.Thresholds

	e.rules = []rule{
		{ReasonAmountTooHigh, func(_ context.Context, d models.TransactionDraft, _ time.Time, _ History) (bool, error) {
			return d.Amount.GreaterThan(t.HighAmount), nil
		}},
		{ReasonSelfTransfer, func(_ context.Context, d models.TransactionDraft, _ time.Time, _ History) (bool, error) {
			return d.SenderID == d.ReceiverID, nil
		}},
		{ReasonInvalidPixKey, func(_ context.Context, d models.TransactionDraft, _ time.Time, _ History) (bool, error) {
			return !ValidPixKey(d.PixKey), nil
		}},
		{ReasonOffHours, func(_ context.Context, _ models.TransactionDraft, at time.Time, _ History) (bool, error) {
			return at.Hour() < 6, nil
		}},
		{ReasonSuspiciousKey, func(_ context.Context, d models.TransactionDraft, _ time.Time, _ History) (bool, error) {
			key := strings.ToLower(d.PixKey)
			for _, token := range tokens {
				if strings.Contains(key, token) {
					return true, nil
				}
			}
			return false, nil
		}},
		{ReasonDuplicateTransfer, func(ctx context.Context, d models.TransactionDraft, at time.Time, h History) (bool, error) {
			return h.ExistsDuplicate(ctx, d.PixKey, d.Amount, at, t.DuplicateWindow)
		}},
		{ReasonSenderVelocity, func(ctx context.Context, d models.TransactionDraft, at time.Time, h History) (bool, error) {
			count, err := h.CountBySender(ctx, d.SenderID, at, t.VelocityWindow)
			if err != nil {
				return false, err
			}
			// The draft under evaluation counts toward the window: the
			// sixth submission on top of five committed transfers trips
			// the default limit of 5.
			return count+1 > t.VelocityLimit, nil
		}},
		{ReasonBlacklistedKey, func(_ context.Context, d models.TransactionDraft, _ time.Time, _ History) (bool, error) {
			_, listed := blacklist[d.PixKey]
			return listed, nil
		}},
		{ReasonStructuring, func(ctx context.Context, d models.TransactionDraft, at time.Time, h History) (bool, error) {
			count, err := h.CountSmallAmountsToday(ctx, d.SenderID, t.SmallAmount, at)
			if err != nil {
				return false, err
			}
			return count >= t.StructuringLimit, nil
		}},
		{ReasonLargeOffHours, func(_ context.Context, d models.TransactionDraft, at time.Time, _ History) (bool, error) {
			return d.Amount.GreaterThan(t.LargeAmount) && (at.Hour() < 8 || at.Hour() > 20), nil
		}},
	}

	return e
}

// Evaluate runs the chain against the draft. It returns the verdict and the
// decision timestamp: the draft's own timestamp normalized to UTC, or the
// current UTC time when the draft carries none. The returned timestamp is the
// one every windowed check saw and is what must be persisted.
func (e *Evaluator) Evaluate(ctx context.Context, draft models.TransactionDraft, history History) (Verdict, time.Time, error) {
	at := draft.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	at = at.UTC()

	for _, r := range e.rules {
		matched, err := r.match(ctx, draft, at, history)
		if err != nil {
			return Verdict{}, at, fmt.Errorf("rule %q: %w", r.reason, err)
		}
		if matched {
			return Verdict{IsFraud: true, Reason: r.reason}, at, nil
		}
	}
	return Verdict{}, at, nil
}

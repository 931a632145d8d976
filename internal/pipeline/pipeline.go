package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixguard/pixguard/internal/fraud"
	"github.com/pixguard/pixguard/internal/interfaces"
	"github.com/pixguard/pixguard/internal/metrics"
	"github.com/pixguard/pixguard/internal/models"
	"github.com/pixguard/pixguard/internal/models/events"
)

const defaultPublishTimeout = 5 * time.Second

// Result is what a successful decision returns to the caller: the committed
// record and, when the verdict was fraud, its paired audit entry.
type Result struct {
	Transaction models.TransactionRecord
	FraudLog    *models.FraudLogRecord
}

// Pipeline evaluates transfer drafts, commits the decision atomically and
// relays it to the queue. It is the sole writer of transaction records and
// fraud logs.
type Pipeline struct {
	store          interfaces.TransactionStore
	evaluator      *fraud.Evaluator
	publisher      interfaces.EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
	now            func() time.Time

	relays sync.WaitGroup
}

// New constructs a Pipeline. publisher may be nil, in which case decisions
// are committed but not relayed.
func New(store interfaces.TransactionStore, evaluator *fraud.Evaluator, publisher interfaces.EventPublisher, logger *slog.Logger, publishTimeout time.Duration) *Pipeline {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &Pipeline{
		store:          store,
		evaluator:      evaluator,
		publisher:      publisher,
		logger:         logger,
		publishTimeout: publishTimeout,
		now:            time.Now,
	}
}

// CreateTransaction runs the full decision path: validate the draft, evaluate
// the rule chain against committed history, commit the record (plus fraud log
// when flagged) in one storage transaction, then fire the queue publish.
// A fraud verdict is a successful outcome, not an error.
func (p *Pipeline) CreateTransaction(ctx context.Context, draft models.TransactionDraft) (Result, error) {
	if verr := validateDraft(draft, p.now().UTC()); verr != nil {
		return Result{}, verr
	}

	verdict, decidedAt, err := p.evaluator.Evaluate(ctx, draft, p.store)
	if err != nil {
		return Result{}, fmt.Errorf("evaluating draft: %w", err)
	}

	record := models.TransactionRecord{
		ID:          uuid.NewString(),
		SenderID:    draft.SenderID,
		ReceiverID:  draft.ReceiverID,
		PixKey:      draft.PixKey,
		Amount:      draft.Amount,
		Timestamp:   decidedAt,
		Description: draft.Description,
		IsFraud:     verdict.IsFraud,
		FraudReason: verdict.Reason,
	}

	var fraudLog *models.FraudLogRecord
	if verdict.IsFraud {
		fraudLog = &models.FraudLogRecord{
			ID:            uuid.NewString(),
			TransactionID: record.ID,
			Reason:        verdict.Reason,
			LoggedAt:      decidedAt,
		}
	}

	if err := p.store.CommitDecision(ctx, record, fraudLog); err != nil {
		return Result{}, fmt.Errorf("committing decision: %w", err)
	}

	outcome := "clean"
	if record.IsFraud {
		outcome = "fraud"
		p.logger.Warn("fraudulent transaction recorded",
			"transactionId", record.ID,
			"senderId", record.SenderID,
			"reason", record.FraudReason,
		)
	}
	metrics.DecisionsTotal.WithLabelValues(outcome).Inc()

	p.relay(record)

	return Result{Transaction: record, FraudLog: fraudLog}, nil
}

// relay publishes the committed decision on a detached context so a slow or
// unreachable broker never delays the caller or unwinds the commit. Failures
// are logged and counted, nothing more: delivery here is best-effort.
func (p *Pipeline) relay(record models.TransactionRecord) {
	if p.publisher == nil {
		return
	}

	event := events.TransactionDecided{
		ID:          record.ID,
		SenderID:    record.SenderID,
		ReceiverID:  record.ReceiverID,
		PixKey:      record.PixKey,
		Amount:      record.Amount,
		Timestamp:   record.Timestamp,
		IsFraud:     record.IsFraud,
		FraudReason: record.FraudReason,
	}

	p.relays.Add(1)
	go func() {
		defer p.relays.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
		defer cancel()

		if err := p.publisher.Publish(ctx, event); err != nil {
			metrics.PublishFailuresTotal.Inc()
			p.logger.Error("failed to publish decision",
				"transactionId", record.ID,
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight publishes to finish. Each attempt is bounded by
// the publish timeout, so the wait is too.
func (p *Pipeline) Close() {
	p.relays.Wait()
}

// GetTransaction returns a committed record by id.
func (p *Pipeline) GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error) {
	return p.store.GetTransaction(ctx, id)
}

// ListTransactions returns all committed records.
func (p *Pipeline) ListTransactions(ctx context.Context) ([]models.TransactionRecord, error) {
	return p.store.ListTransactions(ctx)
}

// DeleteTransaction removes a non-fraud record. Deleting a fraud-flagged
// record fails with interfaces.ErrFraudRecordProtected.
func (p *Pipeline) DeleteTransaction(ctx context.Context, id string) error {
	return p.store.DeleteTransaction(ctx, id)
}

// GetFraudLog returns a fraud log entry by id.
func (p *Pipeline) GetFraudLog(ctx context.Context, id string) (models.FraudLogRecord, error) {
	return p.store.GetFraudLog(ctx, id)
}

// ListFraudLogs returns all fraud log entries.
func (p *Pipeline) ListFraudLogs(ctx context.Context) ([]models.FraudLogRecord, error) {
	return p.store.ListFraudLogs(ctx)
}

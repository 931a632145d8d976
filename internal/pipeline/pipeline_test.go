package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pixguard/pixguard/internal/fraud"
	"github.com/pixguard/pixguard/internal/interfaces"
	"github.com/pixguard/pixguard/internal/models"
	"github.com/pixguard/pixguard/internal/models/events"
	"github.com/pixguard/pixguard/internal/storage/memory"
	"github.com/shopspring/decimal"
)

var businessHours = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

// recordingPublisher captures publish attempts and can simulate an outage or
// a slow broker.
type recordingPublisher struct {
	err    error
	delay  time.Duration
	events chan any
}

func newRecordingPublisher(err error) *recordingPublisher {
	return &recordingPublisher{
		err:    err,
		events: make(chan any, 16),
	}
}

func (p *recordingPublisher) Publish(ctx context.Context, event any) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.events <- event
	return p.err
}

func (p *recordingPublisher) await(t *testing.T) any {
	t.Helper()
	select {
	case event := <-p.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
		return nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(publisher *recordingPublisher) (*Pipeline, *memory.Store) {
	store := memory.NewStore()
	evaluator := fraud.NewEvaluator(fraud.DefaultOptions())
	var pub interfaces.EventPublisher
	if publisher != nil {
		pub = publisher
	}
	return New(store, evaluator, pub, testLogger(), time.Second), store
}

func draft(senderID, receiverID, pixKey string, amount int64, ts time.Time) models.TransactionDraft {
	return models.TransactionDraft{
		SenderID:   senderID,
		ReceiverID: receiverID,
		PixKey:     pixKey,
		Amount:     decimal.NewFromInt(amount),
		Timestamp:  ts,
	}
}

func TestCreateTransactionRejectsInvalidDrafts(t *testing.T) {
	cases := []struct {
		name  string
		draft models.TransactionDraft
		field string
	}{
		{
			name:  "non-positive amount",
			draft: draft("sender-1", "receiver-1", "key@example.com", 0, businessHours),
			field: "amount",
		},
		{
			name:  "self transfer",
			draft: draft("sender-1", "sender-1", "key@example.com", 100, businessHours),
			field: "receiverId",
		},
		{
			name:  "empty pix key",
			draft: draft("sender-1", "receiver-1", "", 100, businessHours),
			field: "pixKey",
		},
		{
			name:  "empty sender",
			draft: draft("", "receiver-1", "key@example.com", 100, businessHours),
			field: "senderId",
		},
		{
			name:  "future timestamp",
			draft: draft("sender-1", "receiver-1", "key@example.com", 100, time.Now().UTC().Add(time.Hour)),
			field: "timestamp",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pipeline, store := newTestPipeline(nil)

			_, err := pipeline.CreateTransaction(context.Background(), tc.draft)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected a %q field error, got %v", tc.field, verr.Fields)
			}

			// Nothing was persisted.
			records, err := store.ListTransactions(context.Background())
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(records) != 0 {
				t.Fatalf("expected no persisted records, got %d", len(records))
			}
		})
	}
}

func TestCreateTransactionCommitsCleanRecord(t *testing.T) {
	publisher := newRecordingPublisher(nil)
	pipeline, store := newTestPipeline(publisher)

	result, err := pipeline.CreateTransaction(context.Background(), draft("sender-1", "receiver-1", "maria@example.com", 100, businessHours))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if result.Transaction.ID == "" {
		t.Fatal("expected a generated transaction id")
	}
	if result.Transaction.IsFraud {
		t.Fatalf("expected clean verdict, got reason %q", result.Transaction.FraudReason)
	}
	if result.FraudLog != nil {
		t.Fatal("clean decision must not produce a fraud log")
	}

	stored, err := store.GetTransaction(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !stored.Timestamp.Equal(businessHours) {
		t.Fatalf("stored timestamp = %v, want %v", stored.Timestamp, businessHours)
	}

	event, ok := publisher.await(t).(events.TransactionDecided)
	if !ok {
		t.Fatal("published event has unexpected type")
	}
	if event.ID != result.Transaction.ID || event.IsFraud {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestCreateTransactionCommitsFraudPairAtomically(t *testing.T) {
	publisher := newRecordingPublisher(nil)
	pipeline, store := newTestPipeline(publisher)

	result, err := pipeline.CreateTransaction(context.Background(), draft("sender-1", "receiver-1", "maria@example.com", 10001, businessHours))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if !result.Transaction.IsFraud {
		t.Fatal("expected fraud verdict")
	}
	if result.Transaction.FraudReason != fraud.ReasonAmountTooHigh {
		t.Fatalf("FraudReason = %q, want %q", result.Transaction.FraudReason, fraud.ReasonAmountTooHigh)
	}
	if result.FraudLog == nil {
		t.Fatal("fraud verdict must produce a fraud log")
	}
	if result.FraudLog.TransactionID != result.Transaction.ID {
		t.Fatalf("fraud log references %q, want %q", result.FraudLog.TransactionID, result.Transaction.ID)
	}

	// The pair is visible in storage together.
	logs, err := store.ListFraudLogs(context.Background())
	if err != nil {
		t.Fatalf("ListFraudLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].TransactionID != result.Transaction.ID {
		t.Fatalf("unexpected fraud logs %+v", logs)
	}

	event := publisher.await(t).(events.TransactionDecided)
	if !event.IsFraud || event.FraudReason != fraud.ReasonAmountTooHigh {
		t.Fatalf("unexpected event %+v", event)
	}
}

// A broker outage must not surface to the caller: the committed record is
// returned unchanged and the failure is only logged.
func TestPublishFailureIsIsolated(t *testing.T) {
	publisher := newRecordingPublisher(errors.New("broker unreachable"))
	pipeline, store := newTestPipeline(publisher)

	result, err := pipeline.CreateTransaction(context.Background(), draft("sender-1", "receiver-1", "maria@example.com", 100, businessHours))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	publisher.await(t)

	if _, err := store.GetTransaction(context.Background(), result.Transaction.ID); err != nil {
		t.Fatalf("record must stay committed despite publish failure: %v", err)
	}
}

func TestSenderVelocityAcrossCommits(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)
	ctx := context.Background()

	// First five transfers inside one minute commit clean, the sixth is
	// flagged for velocity.
	for i := 0; i < 5; i++ {
		ts := businessHours.Add(time.Duration(i) * 5 * time.Second)
		result, err := pipeline.CreateTransaction(ctx, draft("sender-1", "receiver-1", "maria@example.com", int64(100+i), ts))
		if err != nil {
			t.Fatalf("transfer %d: %v", i+1, err)
		}
		if result.Transaction.IsFraud {
			t.Fatalf("transfer %d flagged %q, want clean", i+1, result.Transaction.FraudReason)
		}
	}

	result, err := pipeline.CreateTransaction(ctx, draft("sender-1", "receiver-1", "maria@example.com", 200, businessHours.Add(30*time.Second)))
	if err != nil {
		t.Fatalf("sixth transfer: %v", err)
	}
	if result.Transaction.FraudReason != fraud.ReasonSenderVelocity {
		t.Fatalf("sixth transfer reason = %q, want %q", result.Transaction.FraudReason, fraud.ReasonSenderVelocity)
	}
}

func TestDuplicateDetectionAcrossCommits(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)
	ctx := context.Background()

	first, err := pipeline.CreateTransaction(ctx, draft("sender-1", "receiver-1", "maria@example.com", 100, businessHours))
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if first.Transaction.IsFraud {
		t.Fatalf("first transfer flagged %q", first.Transaction.FraudReason)
	}

	// Same key and amount 30s later from another sender: duplicate.
	dup, err := pipeline.CreateTransaction(ctx, draft("sender-2", "receiver-1", "maria@example.com", 100, businessHours.Add(30*time.Second)))
	if err != nil {
		t.Fatalf("duplicate transfer: %v", err)
	}
	if dup.Transaction.FraudReason != fraud.ReasonDuplicateTransfer {
		t.Fatalf("reason = %q, want %q", dup.Transaction.FraudReason, fraud.ReasonDuplicateTransfer)
	}
}

// The flagged duplicate is itself committed (every decision persists), so it
// re-arms the trailing window. The ageing-out boundary therefore needs a
// history with a single prior record.
func TestDuplicateAgesOutOfWindow(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)
	ctx := context.Background()

	first, err := pipeline.CreateTransaction(ctx, draft("sender-1", "receiver-1", "maria@example.com", 100, businessHours))
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if first.Transaction.IsFraud {
		t.Fatalf("first transfer flagged %q", first.Transaction.FraudReason)
	}

	// 90s later the only committed record has left the 60s window.
	late, err := pipeline.CreateTransaction(ctx, draft("sender-3", "receiver-1", "maria@example.com", 100, businessHours.Add(90*time.Second)))
	if err != nil {
		t.Fatalf("late transfer: %v", err)
	}
	if late.Transaction.FraudReason == fraud.ReasonDuplicateTransfer {
		t.Fatal("transfer outside the window must not be a duplicate")
	}
}

// Shutdown drains in-flight publishes instead of abandoning them.
func TestCloseWaitsForInFlightPublish(t *testing.T) {
	publisher := newRecordingPublisher(nil)
	publisher.delay = 50 * time.Millisecond
	pipeline, _ := newTestPipeline(publisher)

	_, err := pipeline.CreateTransaction(context.Background(), draft("sender-1", "receiver-1", "maria@example.com", 100, businessHours))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	pipeline.Close()

	select {
	case <-publisher.events:
	default:
		t.Fatal("expected the publish attempt to complete before Close returned")
	}
}

func TestMissingTimestampIsSubstitutedAndPersisted(t *testing.T) {
	pipeline, store := newTestPipeline(nil)

	before := time.Now().UTC()
	result, err := pipeline.CreateTransaction(context.Background(), models.TransactionDraft{
		SenderID:   "sender-1",
		ReceiverID: "receiver-1",
		PixKey:     "maria@example.com",
		Amount:     decimal.NewFromInt(100),
	})
	after := time.Now().UTC()

	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	ts := result.Transaction.Timestamp
	if ts.Before(before) || ts.After(after) {
		t.Fatalf("substituted timestamp %v outside [%v, %v]", ts, before, after)
	}

	stored, err := store.GetTransaction(context.Background(), result.Transaction.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !stored.Timestamp.Equal(ts) {
		t.Fatalf("persisted timestamp %v differs from decision timestamp %v", stored.Timestamp, ts)
	}
}

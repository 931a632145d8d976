package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/pixguard/pixguard/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrTransactionNotFound is returned when no committed record has the
	// requested id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrFraudLogNotFound is returned when no fraud log has the requested id.
	ErrFraudLogNotFound = errors.New("fraud log not found")

	// ErrFraudRecordProtected is returned on attempts to delete a
	// fraud-flagged record. Fraud evidence is immutable.
	ErrFraudRecordProtected = errors.New("fraud-flagged transactions cannot be deleted")
)

// TransactionStore is the persistence contract for decided transactions and
// their fraud logs. CommitDecision is the only write path: the record and, if
// present, the fraud log must become visible atomically or not at all.
type TransactionStore interface {
	CommitDecision(ctx context.Context, record models.TransactionRecord, fraudLog *models.FraudLogRecord) error

	GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error)
	ListTransactions(ctx context.Context) ([]models.TransactionRecord, error)
	DeleteTransaction(ctx context.Context, id string) error

	GetFraudLog(ctx context.Context, id string) (models.FraudLogRecord, error)
	ListFraudLogs(ctx context.Context) ([]models.FraudLogRecord, error)

	// History queries read committed records only.
	ExistsDuplicate(ctx context.Context, pixKey string, amount decimal.Decimal, at time.Time, window time.Duration) (bool, error)
	CountBySender(ctx context.Context, senderID string, at time.Time, window time.Duration) (int, error)
	CountSmallAmountsToday(ctx context.Context, senderID string, below decimal.Decimal, at time.Time) (int, error)
}

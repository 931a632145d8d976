package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pixguard/pixguard/internal/interfaces"
	"github.com/pixguard/pixguard/internal/models"
	"github.com/shopspring/decimal"
)

// Store is an in-memory implementation of interfaces.TransactionStore. A
// single mutex makes each commit atomic with respect to every read, mirroring
// the visibility the Postgres store gets from its transactions.
type Store struct {
	mu           sync.Mutex
	transactions []models.TransactionRecord
	fraudLogs    []models.FraudLogRecord
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) CommitDecision(ctx context.Context, record models.TransactionRecord, fraudLog *models.FraudLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = append(s.transactions, record)
	if fraudLog != nil {
		s.fraudLogs = append(s.fraudLogs, *fraudLog)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.transactions {
		if record.ID == id {
			return record, nil
		}
	}
	return models.TransactionRecord{}, interfaces.ErrTransactionNotFound
}

func (s *Store) ListTransactions(ctx context.Context) ([]models.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.TransactionRecord, len(s.transactions))
	copy(records, s.transactions)
	return records, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.transactions {
		if record.ID != id {
			continue
		}
		if record.IsFraud {
			return interfaces.ErrFraudRecordProtected
		}
		s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
		return nil
	}
	return interfaces.ErrTransactionNotFound
}

func (s *Store) GetFraudLog(ctx context.Context, id string) (models.FraudLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.fraudLogs {
		if record.ID == id {
			return record, nil
		}
	}
	return models.FraudLogRecord{}, interfaces.ErrFraudLogNotFound
}

func (s *Store) ListFraudLogs(ctx context.Context) ([]models.FraudLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]models.FraudLogRecord, len(s.fraudLogs))
	copy(records, s.fraudLogs)
	return records, nil
}

func (s *Store) ExistsDuplicate(ctx context.Context, pixKey string, amount decimal.Decimal, at time.Time, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.transactions {
		if record.PixKey == pixKey && record.Amount.Equal(amount) && inWindow(record.Timestamp, at, window) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountBySender(ctx context.Context, senderID string, at time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.transactions {
		if record.SenderID == senderID && inWindow(record.Timestamp, at, window) {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountSmallAmountsToday(ctx context.Context, senderID string, below decimal.Decimal, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := at.UTC().Truncate(24 * time.Hour)
	count := 0
	for _, record := range s.transactions {
		if record.SenderID != senderID || !record.Amount.LessThan(below) {
			continue
		}
		if record.Timestamp.UTC().Truncate(24 * time.Hour).Equal(day) {
			count++
		}
	}
	return count, nil
}

// inWindow reports whether ts falls in [at-window, at].
func inWindow(ts, at time.Time, window time.Duration) bool {
	return !ts.Before(at.Add(-window)) && !ts.After(at)
}

var _ interfaces.TransactionStore = (*Store)(nil)

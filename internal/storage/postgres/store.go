package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pixguard/pixguard/internal/interfaces"
	"github.com/pixguard/pixguard/internal/models"
	"github.com/shopspring/decimal"
)

// Store persists transaction decisions in PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables and indexes the store relies on. The
// windowed history queries need the (pix_key, amount, ts) and (sender_id, ts)
// indexes to stay cheap on the hot path.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	sender_id    TEXT NOT NULL,
	receiver_id  TEXT NOT NULL,
	pix_key      TEXT NOT NULL,
	amount       NUMERIC NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	is_fraud     BOOLEAN NOT NULL DEFAULT FALSE,
	fraud_reason TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS fraud_logs (
	id             TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL REFERENCES transactions (id),
	reason         TEXT NOT NULL,
	logged_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_pix_amount_ts ON transactions (pix_key, amount, ts);
CREATE INDEX IF NOT EXISTS idx_transactions_sender_ts ON transactions (sender_id, ts);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity, for health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CommitDecision writes the record and, when present, its fraud log in one
// database transaction. Either both rows become visible or neither does.
func (s *Store) CommitDecision(ctx context.Context, record models.TransactionRecord, fraudLog *models.FraudLogRecord) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const insertTransaction = `INSERT INTO transactions
	(id, sender_id, receiver_id, pix_key, amount, ts, description, is_fraud, fraud_reason)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = dbTx.ExecContext(ctx, insertTransaction,
		record.ID, record.SenderID, record.ReceiverID, record.PixKey,
		record.Amount, record.Timestamp, record.Description,
		record.IsFraud, record.FraudReason)
	if err != nil {
		return err
	}

	if fraudLog != nil {
		const insertFraudLog = `INSERT INTO fraud_logs (id, transaction_id, reason, logged_at)
		VALUES ($1, $2, $3, $4)`

		_, err = dbTx.ExecContext(ctx, insertFraudLog,
			fraudLog.ID, fraudLog.TransactionID, fraudLog.Reason, fraudLog.LoggedAt)
		if err != nil {
			return err
		}
	}

	err = dbTx.Commit()
	return err
}

func (s *Store) GetTransaction(ctx context.Context, id string) (models.TransactionRecord, error) {
	const query = `SELECT id, sender_id, receiver_id, pix_key, amount, ts, description, is_fraud, fraud_reason
	FROM transactions WHERE id = $1`

	record, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return models.TransactionRecord{}, interfaces.ErrTransactionNotFound
	}
	if err != nil {
		return models.TransactionRecord{}, err
	}
	return record, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]models.TransactionRecord, error) {
	const query = `SELECT id, sender_id, receiver_id, pix_key, amount, ts, description, is_fraud, fraud_reason
	FROM transactions ORDER BY ts`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteTransaction removes a record unless it is fraud-flagged. The check
// and the delete run in one transaction so a concurrent reader never sees a
// protected record disappear.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	var isFraud bool
	err = dbTx.QueryRowContext(ctx, `SELECT is_fraud FROM transactions WHERE id = $1`, id).Scan(&isFraud)
	if err == sql.ErrNoRows {
		err = interfaces.ErrTransactionNotFound
		return err
	}
	if err != nil {
		return err
	}
	if isFraud {
		err = interfaces.ErrFraudRecordProtected
		return err
	}

	if _, err = dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return err
	}

	err = dbTx.Commit()
	return err
}

func (s *Store) GetFraudLog(ctx context.Context, id string) (models.FraudLogRecord, error) {
	const query = `SELECT id, transaction_id, reason, logged_at FROM fraud_logs WHERE id = $1`

	var record models.FraudLogRecord
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.TransactionID, &record.Reason, &record.LoggedAt)
	if err == sql.ErrNoRows {
		return models.FraudLogRecord{}, interfaces.ErrFraudLogNotFound
	}
	if err != nil {
		return models.FraudLogRecord{}, err
	}
	return record, nil
}

func (s *Store) ListFraudLogs(ctx context.Context) ([]models.FraudLogRecord, error) {
	const query = `SELECT id, transaction_id, reason, logged_at FROM fraud_logs ORDER BY logged_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.FraudLogRecord
	for rows.Next() {
		var record models.FraudLogRecord
		if err := rows.Scan(&record.ID, &record.TransactionID, &record.Reason, &record.LoggedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) ExistsDuplicate(ctx context.Context, pixKey string, amount decimal.Decimal, at time.Time, window time.Duration) (bool, error) {
	const query = `SELECT 1 FROM transactions
	WHERE pix_key = $1 AND amount = $2 AND ts >= $3 AND ts <= $4 LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, pixKey, amount, at.Add(-window), at).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CountBySender(ctx context.Context, senderID string, at time.Time, window time.Duration) (int, error) {
	const query = `SELECT COUNT(*) FROM transactions
	WHERE sender_id = $1 AND ts >= $2 AND ts <= $3`

	var count int
	err := s.db.QueryRowContext(ctx, query, senderID, at.Add(-window), at).Scan(&count)
	return count, err
}

func (s *Store) CountSmallAmountsToday(ctx context.Context, senderID string, below decimal.Decimal, at time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM transactions
	WHERE sender_id = $1 AND amount < $2 AND ts >= $3 AND ts < $4`

	dayStart := time.Date(at.UTC().Year(), at.UTC().Month(), at.UTC().Day(), 0, 0, 0, 0, time.UTC)

	var count int
	err := s.db.QueryRowContext(ctx, query, senderID, below, dayStart, dayStart.Add(24*time.Hour)).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (models.TransactionRecord, error) {
	var record models.TransactionRecord
	err := row.Scan(
		&record.ID, &record.SenderID, &record.ReceiverID, &record.PixKey,
		&record.Amount, &record.Timestamp, &record.Description,
		&record.IsFraud, &record.FraudReason)
	return record, err
}

var _ interfaces.TransactionStore = (*Store)(nil)

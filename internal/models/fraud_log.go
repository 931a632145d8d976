package models

import "time"

// FraudLogRecord is the audit entry paired with a fraudulent
// TransactionRecord. It is written in the same storage transaction as the
// record it references and is never mutated or deleted on its own.
type FraudLogRecord struct {
	ID            string
	TransactionID string
	Reason        string
	LoggedAt      time.Time
}

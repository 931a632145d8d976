package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionDraft is a proposed Pix transfer before any fraud decision has
// been made. It has no identity and is never persisted as-is.
type TransactionDraft struct {
	SenderID    string
	ReceiverID  string
	PixKey      string
	Amount      decimal.Decimal
	Timestamp   time.Time // zero value means "decide at submission time"
	Description string
}

// TransactionRecord is the committed form of a draft, immutable once written.
// IsFraud is true exactly when FraudReason is non-empty.
type TransactionRecord struct {
	ID          string
	SenderID    string
	ReceiverID  string
	PixKey      string
	Amount      decimal.Decimal
	Timestamp   time.Time // decision time, UTC
	Description string
	IsFraud     bool
	FraudReason string
}

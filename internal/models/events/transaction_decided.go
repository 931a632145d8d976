package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionDecided is the queue payload published after a decision commits.
type TransactionDecided struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	ReceiverID  string          `json:"receiverId"`
	PixKey      string          `json:"pixKey"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	IsFraud     bool            `json:"isFraud"`
	FraudReason string          `json:"fraudReason,omitempty"`
}

package pipeline

import (
	"strings"
	"time"

	"github.com/pixguard/pixguard/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// maxDescriptionLen bounds the optional free-text description.
	maxDescriptionLen = 500

	// futureTolerance allows for caller clock skew on supplied timestamps.
	futureTolerance = 5 * time.Minute
)

// FieldError describes a single invalid field on a draft.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is the structured input-error reported before any write.
// It is never a fraud verdict: a draft failing validation is rejected, while
// a fraudulent draft is committed with its flag set.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid transaction draft: " + strings.Join(msgs, "; ")
}

func validateDraft(draft models.TransactionDraft, now time.Time) *ValidationError {
	var fields []FieldError

	if strings.TrimSpace(draft.SenderID) == "" {
		fields = append(fields, FieldError{"senderId", "must not be empty"})
	}
	if strings.TrimSpace(draft.ReceiverID) == "" {
		fields = append(fields, FieldError{"receiverId", "must not be empty"})
	}
	if draft.SenderID != "" && draft.SenderID == draft.ReceiverID {
		fields = append(fields, FieldError{"receiverId", "must differ from senderId"})
	}
	if draft.Amount.Cmp(decimal.Zero) <= 0 {
		fields = append(fields, FieldError{"amount", "must be positive"})
	}
	if strings.TrimSpace(draft.PixKey) == "" {
		fields = append(fields, FieldError{"pixKey", "must not be empty"})
	}
	if !draft.Timestamp.IsZero() && draft.Timestamp.After(now.Add(futureTolerance)) {
		fields = append(fields, FieldError{"timestamp", "must not be in the future"})
	}
	if len(draft.Description) > maxDescriptionLen {
		fields = append(fields, FieldError{"description", "too long"})
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pixguard/pixguard/internal/interfaces"
	"github.com/pixguard/pixguard/internal/models"
	"github.com/pixguard/pixguard/internal/pipeline"
	"github.com/shopspring/decimal"
)

// APIHandlers exposes the decision pipeline over HTTP.
type APIHandlers struct {
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
}

func NewAPIHandlers(logger *slog.Logger, p *pipeline.Pipeline) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		pipeline: p,
	}
}

type transactionRequest struct {
	SenderID    string          `json:"senderId"`
	ReceiverID  string          `json:"receiverId"`
	PixKey      string          `json:"pixKey"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   *time.Time      `json:"timestamp,omitempty"`
	Description string          `json:"description,omitempty"`
}

type transactionResponse struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"senderId"`
	ReceiverID  string          `json:"receiverId"`
	PixKey      string          `json:"pixKey"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description,omitempty"`
	IsFraud     bool            `json:"isFraud"`
	FraudReason string          `json:"fraudReason,omitempty"`
}

type fraudLogResponse struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Reason        string    `json:"reason"`
	LoggedAt      time.Time `json:"loggedAt"`
}

type decisionResponse struct {
	Transaction transactionResponse `json:"transaction"`
	FraudLog    *fraudLogResponse   `json:"fraudLog"`
}

func (h *APIHandlers) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTransaction(w, r)
	case http.MethodGet:
		h.listTransactions(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/transactions/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTransaction(w, r, id)
	case http.MethodDelete:
		h.deleteTransaction(w, r, id)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (h *APIHandlers) handleFraudLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	logs, err := h.pipeline.ListFraudLogs(r.Context())
	if err != nil {
		h.logger.Error("failed to list fraud logs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list fraud logs")
		return
	}

	response := make([]fraudLogResponse, 0, len(logs))
	for _, log := range logs {
		response = append(response, toFraudLogResponse(log))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handleFraudLogByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	id := pathID(r, "/fraud-logs/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "fraud log ID is required")
		return
	}

	log, err := h.pipeline.GetFraudLog(r.Context(), id)
	if errors.Is(err, interfaces.ErrFraudLogNotFound) {
		writeError(w, http.StatusNotFound, "fraud log not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch fraud log", "error", err, "fraudLogId", id)
		writeError(w, http.StatusInternalServerError, "failed to fetch fraud log")
		return
	}

	respondJSON(w, http.StatusOK, toFraudLogResponse(log))
}

func (h *APIHandlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	draft := models.TransactionDraft{
		SenderID:    payload.SenderID,
		ReceiverID:  payload.ReceiverID,
		PixKey:      payload.PixKey,
		Amount:      payload.Amount,
		Description: payload.Description,
	}
	if payload.Timestamp != nil {
		draft.Timestamp = *payload.Timestamp
	}

	result, err := h.pipeline.CreateTransaction(r.Context(), draft)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.logger.Error("failed to process transaction", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process transaction")
		return
	}

	response := decisionResponse{
		Transaction: toTransactionResponse(result.Transaction),
	}
	if result.FraudLog != nil {
		log := toFraudLogResponse(*result.FraudLog)
		response.FraudLog = &log
	}
	respondJSON(w, http.StatusCreated, response)
}

func (h *APIHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.pipeline.ListTransactions(r.Context())
	if err != nil {
		h.logger.Error("failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	response := make([]transactionResponse, 0, len(records))
	for _, record := range records {
		response = append(response, toTransactionResponse(record))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) getTransaction(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.pipeline.GetTransaction(r.Context(), id)
	if errors.Is(err, interfaces.ErrTransactionNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch transaction", "error", err, "transactionId", id)
		writeError(w, http.StatusInternalServerError, "failed to fetch transaction")
		return
	}

	respondJSON(w, http.StatusOK, toTransactionResponse(record))
}

func (h *APIHandlers) deleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	err := h.pipeline.DeleteTransaction(r.Context(), id)
	switch {
	case errors.Is(err, interfaces.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, interfaces.ErrFraudRecordProtected):
		writeError(w, http.StatusConflict, "fraud-flagged transactions cannot be deleted")
	case err != nil:
		h.logger.Error("failed to delete transaction", "error", err, "transactionId", id)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func toTransactionResponse(record models.TransactionRecord) transactionResponse {
	return transactionResponse{
		ID:          record.ID,
		SenderID:    record.SenderID,
		ReceiverID:  record.ReceiverID,
		PixKey:      record.PixKey,
		Amount:      record.Amount,
		Timestamp:   record.Timestamp,
		Description: record.Description,
		IsFraud:     record.IsFraud,
		FraudReason: record.FraudReason,
	}
}

func toFraudLogResponse(record models.FraudLogRecord) fraudLogResponse {
	return fraudLogResponse{
		ID:            record.ID,
		TransactionID: record.TransactionID,
		Reason:        record.Reason,
		LoggedAt:      record.LoggedAt,
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer io.Copy(io.Discard, r.Body)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

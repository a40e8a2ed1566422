package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paygrid/intent-service/internal/domain"
)

type intentService interface {
	Submit(ctx context.Context, candidate *domain.PaymentIntent) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
}

type IntentHandler struct {
	intents intentService
}

func NewIntentHandler(intents intentService) *IntentHandler {
	return &IntentHandler{intents: intents}
}

type createIntentRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
}

type intentResponse struct {
	ID             string  `json:"id"`
	Amount         string  `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	IdempotencyKey string  `json:"idempotency_key"`
	FailureReason  *string `json:"failure_reason,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

func toIntentResponse(p *domain.PaymentIntent) intentResponse {
	resp := intentResponse{
		ID:             p.ID.String(),
		Amount:         p.Amount.String(),
		Currency:       string(p.Currency),
		Status:         string(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339Nano),
	}
	if p.CompletedAt != nil {
		s := p.CompletedAt.Format(time.RFC3339Nano)
		resp.CompletedAt = &s
	}
	return resp
}

func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		RespondAppError(w, ErrInvalidAmount, nil)
		return
	}

	candidate := domain.NewIntent(amount, req.Currency, req.IdempotencyKey)

	intent, err := h.intents.Submit(r.Context(), candidate)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toIntentResponse(intent))
}

func (h *IntentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	intent, err := h.intents.GetIntent(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toIntentResponse(intent))
}

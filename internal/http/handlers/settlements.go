package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

type settlementEventRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	CelebrationID  string    `json:"celebration_id"`
	Outcome        string    `json:"outcome"`
	ProviderRef    string    `json:"provider_ref"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// SettlementsIntake accepts a provider settlement notification and queues it
// for the worker. The response is 202: acceptance, not application.
func (a *App) SettlementsIntake(w http.ResponseWriter, r *http.Request) {
	var req settlementEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.IdempotencyKey == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "idempotency key is required")
		return
	}
	outcome := domain.SettlementOutcome(req.Outcome)
	if outcome != domain.OutcomeCaptured && outcome != domain.OutcomeFailed {
		a.error(w, http.StatusBadRequest, "bad_request", "outcome must be captured or failed")
		return
	}
	occurred := req.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	ev := &domain.InboxEvent{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		CelebrationID:  req.CelebrationID,
		Outcome:        outcome,
		ProviderRef:    req.ProviderRef,
		OccurredAt:     occurred,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := a.Inbox.Enqueue(r.Context(), ev); err != nil {
		a.Logger.Error().Err(err).Str("idempotency_key", req.IdempotencyKey).Msg("settlements: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to accept settlement event")
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{"event_id": ev.ID, "status": "accepted"})
}

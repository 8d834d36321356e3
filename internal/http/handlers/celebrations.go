package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/powerbackus/powerback-sub000/internal/compliance"
	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/ledger"
	"github.com/powerbackus/powerback-sub000/internal/settlement"
)

type donorProfile struct {
	Name             string `json:"name"`
	Street           string `json:"street"`
	City             string `json:"city"`
	State            string `json:"state"`
	PostalCode       string `json:"postal_code"`
	Occupation       string `json:"occupation"`
	Employer         string `json:"employer"`
	EmploymentStatus string `json:"employment_status"`
}

type createCelebrationRequest struct {
	ContributorID  string       `json:"contributor_id"`
	RecipientID    string       `json:"recipient_id"`
	BillID         string       `json:"bill_id"`
	Jurisdiction   string       `json:"jurisdiction"`
	AmountCents    int64        `json:"amount_cents"`
	TipCents       int64        `json:"tip_cents"`
	IdempotencyKey string       `json:"idempotency_key"`
	Donor          donorProfile `json:"donor"`
}

type celebrationResponse struct {
	ID             string    `json:"id"`
	ContributorID  string    `json:"contributor_id"`
	RecipientID    string    `json:"recipient_id"`
	BillID         string    `json:"bill_id"`
	AmountCents    int64     `json:"amount_cents"`
	TipCents       int64     `json:"tip_cents"`
	FeeCents       int64     `json:"fee_cents"`
	TotalCents     int64     `json:"total_cents"`
	CurrentStatus  string    `json:"current_status"`
	ComplianceTier string    `json:"compliance_tier"`
	CreatedAt      time.Time `json:"created_at"`
}

func toResponse(cel *domain.Celebration) celebrationResponse {
	return celebrationResponse{
		ID:             cel.ID,
		ContributorID:  cel.ContributorID,
		RecipientID:    cel.RecipientID,
		BillID:         cel.BillID,
		AmountCents:    cel.AmountCents,
		TipCents:       cel.TipCents,
		FeeCents:       cel.FeeCents,
		TotalCents:     cel.TotalCents,
		CurrentStatus:  string(cel.CurrentStatus),
		ComplianceTier: string(cel.Donor.Tier),
		CreatedAt:      cel.CreatedAt,
	}
}

// CelebrationsCreate gates the amount against the contributor's remaining
// limit and, when allowed, persists the record with its first ledger entry.
// Limit rejections happen before any ledger entry exists and carry a
// machine-readable reason so the client can render tier-specific guidance.
func (a *App) CelebrationsCreate(w http.ResponseWriter, r *http.Request) {
	var req createCelebrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.AmountCents <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}
	if req.ContributorID == "" || req.RecipientID == "" || req.BillID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "contributor, recipient and bill are required")
		return
	}
	if req.IdempotencyKey == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "idempotency key is required")
		return
	}

	ctx := r.Context()

	// A replayed creation attempt returns the original record.
	if existing, err := a.Celebrations.GetByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		a.json(w, http.StatusOK, toResponse(existing))
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusInternalServerError, "internal", "failed to check idempotency key")
		return
	}

	recorded, err := a.Calculator.RecordedTier(ctx, req.ContributorID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load contributor history")
		return
	}
	achievable := compliance.AchievableTier(compliance.Profile{
		Name:             req.Donor.Name,
		Street:           req.Donor.Street,
		City:             req.Donor.City,
		State:            req.Donor.State,
		PostalCode:       req.Donor.PostalCode,
		Occupation:       req.Donor.Occupation,
		Employer:         req.Donor.Employer,
		EmploymentStatus: req.Donor.EmploymentStatus,
	})
	tier := compliance.EffectiveTier(recorded, achievable)

	now := time.Now().UTC()
	limit, err := a.Calculator.RemainingFor(ctx, req.ContributorID, req.RecipientID, req.Jurisdiction, tier, now)
	if err != nil {
		if errors.Is(err, domain.ErrLimitUndetermined) {
			a.error(w, http.StatusUnprocessableEntity, "limit_undetermined", "contribution limits could not be determined; contribution blocked")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to compute remaining limit")
		return
	}
	if err := limit.Check(req.AmountCents); err != nil {
		var limitErr *compliance.LimitError
		if errors.As(err, &limitErr) {
			a.json(w, http.StatusUnprocessableEntity, map[string]any{
				"error":           "limit_exceeded",
				"reason":          string(limitErr.Kind),
				"remaining_cents": limitErr.RemainingCents,
				"message":         a.printer.Sprintf("up to %s may still be contributed", a.dollars(limitErr.RemainingCents)),
			})
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to validate limit")
		return
	}

	fee := domain.ProcessingFeeCents(req.AmountCents + req.TipCents)
	cel := &domain.Celebration{
		ID:             uuid.NewString(),
		ContributorID:  req.ContributorID,
		RecipientID:    req.RecipientID,
		BillID:         req.BillID,
		Jurisdiction:   req.Jurisdiction,
		AmountCents:    req.AmountCents,
		TipCents:       req.TipCents,
		FeeCents:       fee,
		TotalCents:     req.AmountCents + req.TipCents + fee,
		IdempotencyKey: req.IdempotencyKey,
		Donor: domain.DonorSnapshot{
			Name:             req.Donor.Name,
			Street:           req.Donor.Street,
			City:             req.Donor.City,
			State:            req.Donor.State,
			PostalCode:       req.Donor.PostalCode,
			Occupation:       req.Donor.Occupation,
			Employer:         req.Donor.Employer,
			EmploymentStatus: req.Donor.EmploymentStatus,
			Tier:             tier,
		},
		Version:   1,
		CreatedAt: now,
	}
	if _, err := ledger.Initialize(cel, "celebration created", domain.TriggerUser); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to initialize ledger")
		return
	}

	if err := a.Celebrations.Create(ctx, cel); err != nil {
		if errors.Is(err, domain.ErrDuplicateOperation) {
			// Lost a concurrent create with the same key; return the
			// winner.
			if existing, lookupErr := a.Celebrations.GetByIdempotencyKey(ctx, req.IdempotencyKey); lookupErr == nil {
				a.json(w, http.StatusOK, toResponse(existing))
				return
			}
		}
		a.Logger.Error().Err(err).Msg("celebrations: create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create celebration")
		return
	}

	a.json(w, http.StatusCreated, toResponse(cel))
}

type transitionRequestBody struct {
	Target          string          `json:"target_status"`
	Reason          string          `json:"reason"`
	TriggeredBy     string          `json:"triggered_by"`
	TriggeredByID   string          `json:"triggered_by_id"`
	TriggeredByName string          `json:"triggered_by_name"`
	Metadata        json.RawMessage `json:"metadata"`
}

// CelebrationsTransition is the inbound trigger API used by watchers, admins
// and the UI.
func (a *App) CelebrationsTransition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transitionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	target := domain.Status(req.Target)
	if !target.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown target status")
		return
	}
	trigger := domain.Trigger(req.TriggeredBy)
	if trigger == "" {
		trigger = domain.TriggerAPI
	}
	metadata, err := domain.DecodeMetadata(req.Metadata)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid metadata payload")
		return
	}

	cel, err := a.Coordinator.RequestTransition(r.Context(), settlement.TransitionRequest{
		CelebrationID:   id,
		Target:          target,
		Reason:          req.Reason,
		TriggeredBy:     trigger,
		TriggeredByID:   req.TriggeredByID,
		TriggeredByName: req.TriggeredByName,
		Metadata:        metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "celebration not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			a.error(w, http.StatusConflict, "invalid_transition", "the requested transition is not valid for the current status")
		case errors.Is(err, settlement.ErrRetryable):
			a.error(w, http.StatusServiceUnavailable, "retryable", "the record is contended, retry shortly")
		default:
			a.Logger.Error().Err(err).Str("celebration_id", id).Msg("celebrations: transition failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to apply transition")
		}
		return
	}

	a.json(w, http.StatusOK, toResponse(cel))
}

// CelebrationsGet returns the current-status projection.
func (a *App) CelebrationsGet(w http.ResponseWriter, r *http.Request) {
	cel, err := a.Celebrations.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "celebration not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load celebration")
		return
	}
	a.json(w, http.StatusOK, toResponse(cel))
}

// CelebrationsHistory returns the most recent ledger entries, newest first.
func (a *App) CelebrationsHistory(w http.ResponseWriter, r *http.Request) {
	cel, err := a.Celebrations.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "celebration not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load celebration")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries := ledger.History(cel, limit)
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		metadata, err := domain.EncodeMetadata(entry.Metadata)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to encode ledger entry")
			return
		}
		item := map[string]any{
			"status_change_id":        entry.ID,
			"previous_status":         string(entry.PreviousStatus),
			"new_status":              string(entry.NewStatus),
			"change_datetime":         entry.ChangedAt,
			"reason":                  entry.Reason,
			"triggered_by":            string(entry.TriggeredBy),
			"compliance_tier_at_time": string(entry.TierAtTime),
			"fec_compliant":           entry.Compliant,
		}
		if entry.TriggeredByID != "" {
			item["triggered_by_id"] = entry.TriggeredByID
		}
		if entry.TriggeredByName != "" {
			item["triggered_by_name"] = entry.TriggeredByName
		}
		if metadata != nil {
			item["metadata"] = json.RawMessage(metadata)
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "current_status": string(cel.CurrentStatus)})
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/powerbackus/powerback-sub000/internal/compliance"
	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// ContributorRemaining reports how much the contributor may still give,
// optionally checking a proposed amount.
func (a *App) ContributorRemaining(w http.ResponseWriter, r *http.Request) {
	contributorID := chi.URLParam(r, "id")
	q := r.URL.Query()
	recipientID := q.Get("recipient")
	jurisdiction := q.Get("jurisdiction")
	if jurisdiction == "" {
		jurisdiction = "US"
	}

	ctx := r.Context()
	tier, err := a.Calculator.RecordedTier(ctx, contributorID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load contributor history")
		return
	}
	if tier == domain.TierElevated && recipientID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "recipient is required for elevated-tier contributors")
		return
	}

	limit, err := a.Calculator.RemainingFor(ctx, contributorID, recipientID, jurisdiction, tier, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrLimitUndetermined) {
			a.error(w, http.StatusUnprocessableEntity, "limit_undetermined", "contribution limits could not be determined")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to compute remaining limit")
		return
	}

	resp := map[string]any{
		"contributor_id":           contributorID,
		"tier":                     string(limit.Tier),
		"per_contribution_cents":   limit.PerContributionCents,
		"window_remaining_cents":   limit.WindowRemainingCents,
		"remaining_cents":          limit.RemainingCents(),
		"remaining_display":        a.dollars(limit.RemainingCents()),
		"election_boundary_source": string(limit.Source),
	}

	if v := q.Get("amount"); v != "" {
		amount, err := strconv.ParseInt(v, 10, 64)
		if err != nil || amount <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "amount must be a positive integer of cents")
			return
		}
		if err := limit.Check(amount); err != nil {
			var limitErr *compliance.LimitError
			if errors.As(err, &limitErr) {
				resp["allowed"] = false
				resp["reason"] = string(limitErr.Kind)
			}
		} else {
			resp["allowed"] = true
		}
	}

	a.json(w, http.StatusOK, resp)
}

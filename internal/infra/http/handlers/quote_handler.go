package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/infra/metrics"
	"github.com/hauldesk/hauldesk-api/internal/usecase"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type InstantQuoter interface {
	Execute(ctx context.Context, input usecase.InstantQuoteInput) (*usecase.InstantQuoteOutput, error)
}

type QuoteHandler struct {
	UseCase     InstantQuoter
	Normalizer  *usecase.Normalizer
	RateLimiter *IPRateLimiter
	Logger      *zap.Logger
}

func NewQuoteHandler(uc InstantQuoter, normalizer *usecase.Normalizer, limiter *IPRateLimiter, logger *zap.Logger) *QuoteHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteHandler{UseCase: uc, Normalizer: normalizer, RateLimiter: limiter, Logger: logger}
}

// QuoteResponse is what the customer sees. CRM outcome is never exposed.
type QuoteResponse struct {
	QuoteID               string             `json:"quote_id,omitempty"`
	PriceLow              int                `json:"price_low"`
	PriceHigh             int                `json:"price_high"`
	DiscountPercent       int                `json:"discount_percent,omitempty"`
	DiscountedLow         int                `json:"discounted_low,omitempty"`
	DiscountedHigh        int                `json:"discounted_high,omitempty"`
	LoadFractionEstimate  float64            `json:"load_fraction_estimate"`
	DisplayTierLabel      string             `json:"display_tier_label"`
	ReasonSummary         string             `json:"reason_summary"`
	NeedsInPersonEstimate bool               `json:"needs_in_person_estimate"`
	Source                entity.QuoteSource `json:"source"`
}

func (h *QuoteHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.RateLimiter != nil && !h.RateLimiter.Allow(getClientIP(r)) {
		writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.")
		return
	}

	var req usecase.QuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	out, err := h.UseCase.Execute(r.Context(), h.Normalizer.FromQuoteRequest(req))
	if err != nil {
		var verrs usecase.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "VALIDATION_FAILED",
				Message: "Some fields are invalid",
				Fields:  []usecase.ValidationError(verrs),
			})
			return
		}
		h.Logger.Error("instant quote failed", zap.Error(err))
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not produce a quote")
		return
	}

	recordOutcome(out)
	writeJSON(w, http.StatusOK, toQuoteResponse(out.Quote))
}

func recordOutcome(out *usecase.InstantQuoteOutput) {
	metrics.RecordQuote(string(out.Quote.Source))
	if out.CRM != nil {
		metrics.RecordCommit(out.CRM.OK())
	}
}

func toQuoteResponse(q usecase.QuoteResult) QuoteResponse {
	return QuoteResponse{
		QuoteID:               q.QuoteID,
		PriceLow:              q.Quote.PriceLow,
		PriceHigh:             q.Quote.PriceHigh,
		DiscountPercent:       q.DiscountPercent,
		DiscountedLow:         q.DiscountedLow,
		DiscountedHigh:        q.DiscountedHigh,
		LoadFractionEstimate:  q.Quote.LoadFractionEstimate,
		DisplayTierLabel:      q.Quote.DisplayTierLabel,
		ReasonSummary:         q.Quote.ReasonSummary,
		NeedsInPersonEstimate: q.Quote.NeedsInPersonEstimate,
		Source:                q.Source,
	}
}

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hauldesk/hauldesk-api/internal/entity"
	"github.com/hauldesk/hauldesk-api/internal/usecase"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	DefaultMaxTokens = 512

	VariantStrict = "strict"
	VariantLoose  = "loose"

	quoteToolName = "submit_quote"
)

var errSchemaMismatch = errors.New("response does not match the quote schema")

// QuoteGenerator asks the model for a candidate quote. It first forces a
// tool call with a typed schema and, if the reply does not fit the schema,
// retries asking for a bare JSON object.
type QuoteGenerator struct {
	Client       Client
	Model        string
	MaxTokens    int64
	UnitPrice    int
	UnitsPerLoad int
	Logger       *zap.Logger
}

func NewQuoteGenerator(client Client, model string, maxTokens int64, unitPrice, unitsPerLoad int, logger *zap.Logger) *QuoteGenerator {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteGenerator{
		Client:       client,
		Model:        model,
		MaxTokens:    maxTokens,
		UnitPrice:    unitPrice,
		UnitsPerLoad: unitsPerLoad,
		Logger:       logger,
	}
}

// Generate returns *usecase.UpstreamQuoteError on every failure.
func (g *QuoteGenerator) Generate(ctx context.Context, intake entity.JobIntake, bounds entity.QuoteBounds) (*entity.CandidateQuote, error) {
	var lastErr error
	for _, variant := range []string{VariantStrict, VariantLoose} {
		candidate, err := g.attempt(ctx, variant, intake, bounds)
		if err == nil {
			return candidate, nil
		}

		reason := "error"
		switch {
		case ctx.Err() != nil:
			reason = "timeout"
		case errors.Is(err, errSchemaMismatch):
			reason = "schema_mismatch"
		}
		lastErr = &usecase.UpstreamQuoteError{Variant: variant, Reason: reason, Err: err}

		if reason != "schema_mismatch" {
			break
		}
		g.Logger.Debug("quote variant rejected", zap.String("variant", variant), zap.Error(err))
	}
	return nil, lastErr
}

func (g *QuoteGenerator) attempt(ctx context.Context, variant string, intake entity.JobIntake, bounds entity.QuoteBounds) (*entity.CandidateQuote, error) {
	req := MessageRequest{
		Model:     g.Model,
		MaxTokens: g.MaxTokens,
		System:    g.systemPrompt(bounds),
		Messages:  []Message{{Role: "user", Content: describeIntake(intake)}},
	}
	if variant == VariantStrict {
		req.Tools = []Tool{quoteTool}
		req.ForceTool = quoteToolName
	} else {
		req.Messages[0].Content += "\n\nReply with only a JSON object with the keys " +
			"load_fraction_estimate, price_low, price_high, display_tier_label, " +
			"reason_summary and needs_in_person_estimate."
	}

	resp, err := g.Client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: %s quote", variant)
	}
	g.Logger.Debug("quote tokens",
		zap.String("variant", variant),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	var raw []byte
	if variant == VariantStrict {
		input, ok := resp.ToolInput(quoteToolName)
		if !ok {
			return nil, eris.Wrap(errSchemaMismatch, "no submit_quote call")
		}
		raw = input
	} else {
		obj, ok := extractJSONObject(resp.Text())
		if !ok {
			return nil, eris.Wrap(errSchemaMismatch, "no JSON object in reply")
		}
		raw = []byte(obj)
	}
	return parseCandidate(raw)
}

func (g *QuoteGenerator) systemPrompt(b entity.QuoteBounds) string {
	var sb strings.Builder
	sb.WriteString("You price junk removal jobs. Prices are whole multiples of ")
	fmt.Fprintf(&sb, "$%d, one unit per quarter trailer load; a full trailer is %d units.\n", g.UnitPrice, g.UnitsPerLoad)
	fmt.Fprintf(&sb, "Stay between $%d and $%d.", b.MinUnits*g.UnitPrice, b.MaxUnits*g.UnitPrice)
	if b.HasMinHigh() {
		fmt.Fprintf(&sb, " The high end must be at least $%d.", b.MinHighUnits*g.UnitPrice)
	}
	sb.WriteString("\nKeep reason_summary to one or two sentences and only mention multiple loads when the high end exceeds one trailer.")
	return sb.String()
}

func describeIntake(in entity.JobIntake) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job size: %s\n", in.Size)
	if len(in.Services) > 0 {
		tags := make([]string, len(in.Services))
		for i, t := range in.Services {
			tags[i] = string(t)
		}
		fmt.Fprintf(&sb, "Services: %s\n", strings.Join(tags, ", "))
	}
	if in.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", in.Notes)
	}
	if len(in.PhotoURLs) > 0 {
		fmt.Fprintf(&sb, "Photos attached: %d\n", len(in.PhotoURLs))
	}
	fmt.Fprintf(&sb, "Postal code: %s", in.PostalCode)
	return sb.String()
}

var quoteTool = Tool{
	Name:        quoteToolName,
	Description: "Submit the price range for the job.",
	Properties: map[string]any{
		"load_fraction_estimate":   map[string]any{"type": "number", "description": "Trailer loads, 0.25 per unit"},
		"price_low":                map[string]any{"type": "number"},
		"price_high":               map[string]any{"type": "number"},
		"display_tier_label":       map[string]any{"type": "string"},
		"reason_summary":           map[string]any{"type": "string"},
		"needs_in_person_estimate": map[string]any{"type": "boolean"},
	},
	Required: []string{"price_low", "price_high", "reason_summary"},
}

type candidateFields struct {
	LoadFractionEstimate  *float64 `json:"load_fraction_estimate"`
	PriceLow              *float64 `json:"price_low"`
	PriceHigh             *float64 `json:"price_high"`
	DisplayTierLabel      string   `json:"display_tier_label"`
	ReasonSummary         *string  `json:"reason_summary"`
	NeedsInPersonEstimate bool     `json:"needs_in_person_estimate"`
}

func parseCandidate(raw []byte) (*entity.CandidateQuote, error) {
	var f candidateFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(errSchemaMismatch, err.Error())
	}
	if f.PriceLow == nil || f.PriceHigh == nil || f.ReasonSummary == nil {
		return nil, eris.Wrap(errSchemaMismatch, "missing required field")
	}

	c := &entity.CandidateQuote{
		PriceLow:              *f.PriceLow,
		PriceHigh:             *f.PriceHigh,
		DisplayTierLabel:      f.DisplayTierLabel,
		ReasonSummary:         *f.ReasonSummary,
		NeedsInPersonEstimate: f.NeedsInPersonEstimate,
	}
	if f.LoadFractionEstimate != nil {
		c.LoadFractionEstimate = *f.LoadFractionEstimate
	}
	return c, nil
}

// extractJSONObject returns the outermost {...} span of s, tolerating code
// fences and prose around it.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

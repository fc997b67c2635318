package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/hauldesk/hauldesk-api/internal/usecase"
	"go.uber.org/zap"
)

const signatureHeader = "X-Hub-Signature-256"

// SocialWebhookHandler accepts lead-ads webhooks. Each leadgen change is
// quoted and committed like a web form submission.
type SocialWebhookHandler struct {
	UseCase    InstantQuoter
	Normalizer *usecase.Normalizer
	Secret     string
	Logger     *zap.Logger
}

type SocialWebhookResponse struct {
	Processed int `json:"processed"`
	Rejected  int `json:"rejected"`
}

func NewSocialWebhookHandler(uc InstantQuoter, normalizer *usecase.Normalizer, secret string, logger *zap.Logger) *SocialWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocialWebhookHandler{UseCase: uc, Normalizer: normalizer, Secret: secret, Logger: logger}
}

func (h *SocialWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_BODY", "Could not read body")
		return
	}

	if !h.validSignature(r.Header.Get(signatureHeader), body) {
		h.Logger.Warn("social webhook signature mismatch", zap.String("ip", getClientIP(r)))
		writeErrorResponse(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Signature mismatch")
		return
	}

	var payload usecase.SocialLeadWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	var resp SocialWebhookResponse
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "leadgen" {
				continue
			}

			out, err := h.UseCase.Execute(r.Context(), h.Normalizer.FromSocialLead(change.Value))
			if err != nil {
				resp.Rejected++
				level := h.Logger.Error
				var verrs usecase.ValidationErrors
				if errors.As(err, &verrs) {
					level = h.Logger.Warn
				}
				level("social lead rejected",
					zap.String("leadgen_id", change.Value.LeadgenID),
					zap.Error(err),
				)
				continue
			}

			resp.Processed++
			recordOutcome(out)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// validSignature checks "sha256=<hex>" against the body HMAC. An empty
// secret disables the check.
func (h *SocialWebhookHandler) validSignature(header string, body []byte) bool {
	if h.Secret == "" {
		return true
	}

	got, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

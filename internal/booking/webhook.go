package booking

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dentistez/clinic-api/internal/redislock"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

// WebhookVerifier checks the gateway signature over the callback data.
type WebhookVerifier interface {
	VerifyWebhook(data map[string]any, signature string) bool
}

// WebhookHandler receives PayOS payment callbacks.
type WebhookHandler struct {
	svc      *Service
	verifier WebhookVerifier
	logger   *logging.Logger
}

// NewWebhookHandler creates the callback endpoint. verifier may be nil to
// skip signature checks.
func NewWebhookHandler(svc *Service, verifier WebhookVerifier, logger *logging.Logger) *WebhookHandler {
	if svc == nil {
		panic("booking: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{svc: svc, verifier: verifier, logger: logger}
}

type webhookPayload struct {
	Code      string         `json:"code"`
	Desc      string         `json:"desc"`
	Signature string         `json:"signature"`
	Data      map[string]any `json:"data"`
}

// ServeHTTP handles POST /webhooks/payos. Benign conditions (unknown order
// code, replays, gateway-reported failures) answer 200 so the gateway stops
// retrying; slot conflicts answer 409; unexpected errors answer 500 so the
// gateway retries.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "unreadable body"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Data == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid payload"})
		return
	}

	if h.verifier != nil && !h.verifier.VerifyWebhook(payload.Data, payload.Signature) {
		h.logger.Warn("webhook signature rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid signature"})
		return
	}

	orderCode, ok := numericField(payload.Data, "orderCode")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "missing orderCode"})
		return
	}
	code := payload.Code
	if c, ok := payload.Data["code"].(string); ok && c != "" {
		code = c
	}

	outcome, err := h.svc.HandleCallback(r.Context(), orderCode, code)
	if err != nil {
		switch {
		case errors.Is(err, timeslot.ErrTaken),
			errors.Is(err, timeslot.ErrNotFound),
			errors.Is(err, redislock.ErrNotAcquired):
			writeJSON(w, http.StatusConflict, map[string]any{
				"success": false, "message": "timeslot no longer available",
			})
		default:
			h.logger.Error("webhook processing failed", "order_code", orderCode, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false, "message": "internal error",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "outcome": string(outcome)})
}

func numericField(data map[string]any, key string) (int64, bool) {
	switch v := data[key].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

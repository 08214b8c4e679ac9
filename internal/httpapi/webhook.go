package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	apperrors "estore/api/internal/errors"
	"estore/api/internal/logger"
	"estore/api/internal/model"
	"estore/api/internal/repository"
	"estore/api/internal/validation"
)

// Webhook event types.
const (
	EventPaymentPaid    = "payment.paid"
	EventPaymentFailed  = "payment.failed"
	EventPaymentExpired = "payment.expired"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		TransactionID string `json:"transaction_id"`
		Reason        string `json:"reason"`
	} `json:"data"`
}

// Sign returns the signature expected for body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// webhook handles POST /v1/webhook.
// Verifica assinatura (se WEBHOOK_SECRET definido), deduplica pelo id do
// evento e encaminha para a confirmação/falha/expiração do pagamento.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		respondError(w, r, apperrors.New(apperrors.CodeValidation, "erro ao ler corpo"))
		return
	}
	logger.Debugf("webhook recebido: %s", body)

	if s.cfg.WebhookSecret != "" {
		sig := r.Header.Get(SignatureHeader)
		if !hmac.Equal([]byte(sig), []byte(Sign(s.cfg.WebhookSecret, body))) {
			logger.WarnContext(ctx, "webhook signature mismatch")
			respondError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "assinatura inválida"))
			return
		}
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil || evt.ID == "" || evt.Data.TransactionID == "" {
		respondError(w, r, apperrors.WithMetadata(apperrors.CodeValidation, "corpo inválido",
			map[string]string{"field": "body", "reason": string(validation.InvalidFormat)}))
		return
	}

	if repository.WebhookEventExists(ctx, s.db, evt.ID) {
		logger.InfoContext(ctx, "webhook event already received", "event_id", evt.ID)
		respondJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
		return
	}

	var tx *model.Transaction
	switch evt.Type {
	case EventPaymentPaid:
		tx, err = s.payments.ConfirmAsyncPayment(ctx, evt.Data.TransactionID, model.System)
	case EventPaymentFailed:
		reason := evt.Data.Reason
		if reason == "" {
			reason = "recusado pela instituição"
		}
		tx, err = s.payments.FailAsyncPayment(ctx, evt.Data.TransactionID, reason, model.System)
	case EventPaymentExpired:
		tx, err = s.payments.ExpireTransaction(ctx, evt.Data.TransactionID, model.System)
	default:
		logger.WarnContext(ctx, "webhook event type not handled", "event_id", evt.ID, "type", evt.Type)
	}
	// Falhas de processamento não registram o evento, assim o reenvio
	// tenta de novo. Conflitos e ids desconhecidos são definitivos.
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.CodeConflict, apperrors.CodeNotFound:
		default:
			respondError(w, r, err)
			return
		}
	}

	if _, rerr := repository.InsertWebhookEvent(ctx, s.db, evt.ID, evt.Type, evt.Data.TransactionID, s.now()); rerr != nil {
		logger.ErrorContext(ctx, "webhook event not recorded", "event_id", evt.ID, "error", rerr)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.InfoContext(ctx, "webhook processed", "event_id", evt.ID, "type", evt.Type, "transaction_id", evt.Data.TransactionID)
	resp := map[string]any{"received": true}
	if tx != nil {
		resp["transaction"] = tx
	}
	respondJSON(w, http.StatusOK, resp)
}

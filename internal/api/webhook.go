package api

import (
	"io"
	"net/http"

	"snapdocs/internal/webhook"
)

const (
	headerSignature = "X-Hub-Signature-256"
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"

	// GitHub caps webhook payloads at 25 MB.
	maxWebhookBody = 25 << 20
)

// githubWebhook verifies and routes a GitHub delivery. It always answers 200
// so the provider does not redeliver; the envelope carries the outcome.
// POST /webhooks/github
func (h *Handler) githubWebhook(w http.ResponseWriter, r *http.Request) {
	event := r.Header.Get(headerEvent)
	delivery := r.Header.Get(headerDelivery)
	logger := h.logger.With("event", event, "delivery_id", delivery)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn("Failed to read webhook body", "error", err)
		respondWithJSON(w, http.StatusOK, webhook.Response{Success: false, Message: "invalid body"})
		return
	}

	if !h.verifier.Verify(body, r.Header.Get(headerSignature)) {
		logger.Warn("Rejected webhook with invalid signature")
		respondWithJSON(w, http.StatusOK, webhook.Response{Success: false, Message: "invalid signature"})
		return
	}

	respondWithJSON(w, http.StatusOK, h.events.Route(r.Context(), event, delivery, body))
}

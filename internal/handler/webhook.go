package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/service"
)

// maxWebhookBytes caps webhook bodies. Provider user payloads are a few KB.
const maxWebhookBytes = 256 << 10

type WebhookHandler struct {
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewWebhookHandler(identity *service.IdentityService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{identity: identity, logger: logger}
}

// HandleUserEvent receives identity-provider user lifecycle events.
//
// HTTP: POST /users/api/webhooks/user
//
// The body is read as raw bytes and handed over untouched: the signature
// covers the exact bytes sent, so it must never be decoded and re-encoded
// before verification.
func (h *WebhookHandler) HandleUserEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.ValidationFailed("body", "webhook payload too large"))
			return
		}
		h.logger.Warn("reading webhook body failed", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "could not read webhook payload"))
		return
	}

	result, err := h.identity.HandleWebhook(r.Context(), payload, r.Header)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

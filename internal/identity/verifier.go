package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/sakif/snapgram/internal/apperror"
)

// Verifier authenticates a raw webhook body and returns the typed event.
//
// Implementations must return:
//   - apperror.ErrValidation when a required header is missing or the
//     verified body is not a valid event
//   - apperror.ErrAuthentication when the signature does not match
//
// No caller may act on a payload before Verify returns nil.
type Verifier interface {
	Verify(payload []byte, headers http.Header) (*Event, error)
}

// SvixVerifier checks signatures with the provider's HMAC-SHA256 scheme
// (constant-time comparison and timestamp tolerance are done by svix).
type SvixVerifier struct {
	wh *svix.Webhook
}

var _ Verifier = (*SvixVerifier)(nil)

// NewSvixVerifier builds a verifier from the signing secret ("whsec_...").
// An empty or malformed secret is a configuration error: the server must not
// start without one.
func NewSvixVerifier(secret string) (*SvixVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, apperror.Configuration("WEBHOOK_SIGNING_SECRET", "webhook signing secret is not configured")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, &apperror.AppError{
			Err:     apperror.ErrConfiguration,
			Message: "webhook signing secret is invalid: " + err.Error(),
			Field:   "WEBHOOK_SIGNING_SECRET",
		}
	}
	return &SvixVerifier{wh: wh}, nil
}

func (v *SvixVerifier) Verify(payload []byte, headers http.Header) (*Event, error) {
	for _, h := range []string{HeaderID, HeaderTimestamp, HeaderSignature} {
		if headers.Get(h) == "" {
			return nil, apperror.ValidationFailed(h, "missing required webhook headers")
		}
	}

	if err := v.wh.Verify(payload, headers); err != nil {
		return nil, apperror.AuthenticationFailed()
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, apperror.ValidationFailed("body", "webhook payload is not valid JSON")
	}
	if evt.Type == "" {
		return nil, apperror.ValidationFailed("type", "webhook payload has no event type")
	}
	return &evt, nil
}

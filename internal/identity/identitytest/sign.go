// Package identitytest signs webhook payloads the way the identity provider
// does, for tests that drive the webhook endpoint end to end.
package identitytest

import (
	"net/http"
	"strconv"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/sakif/snapgram/internal/identity"
)

// Secret is a well-formed signing secret for tests.
const Secret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// SignedHeaders returns the three webhook headers for payload, signed with
// secret at the current time.
func SignedHeaders(secret, msgID string, payload []byte) (http.Header, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sig, err := wh.Sign(msgID, now, payload)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(identity.HeaderID, msgID)
	h.Set(identity.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	h.Set(identity.HeaderSignature, sig)
	return h, nil
}

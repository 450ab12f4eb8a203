// Package identity talks to the external identity provider: it verifies the
// signed lifecycle webhooks the provider sends and writes metadata back to
// the provider's user records.
package identity

import "encoding/json"

// Event types the reconciliation service acts on. Anything else is
// acknowledged and ignored.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Webhook headers. The provider signs "<id>.<timestamp>.<raw body>".
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Event is a verified webhook payload.
type Event struct {
	Type string   `json:"type"`
	Data UserData `json:"data"`
}

// UserData is the provider's user object. The provider sends every key on
// updates and uses null for a cleared field, so profile fields record
// whether the key was present at all.
type UserData struct {
	ID                    string           `json:"id"`
	EmailAddresses        []EmailAddress   `json:"email_addresses"`
	PrimaryEmailAddressID *string          `json:"primary_email_address_id"`
	ImageURL              Optional[string] `json:"image_url"`
	FirstName             Optional[string] `json:"first_name"`
	LastName              Optional[string] `json:"last_name"`
	Username              Optional[string] `json:"username"`
}

// Optional is a payload field that may be absent, null or set. Set is true
// whenever the key appeared, including as null; Value is then the zero
// value for null.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// PrimaryEmail returns the address marked primary, falling back to the
// first address. Empty when the user has none.
func (d UserData) PrimaryEmail() string {
	if d.PrimaryEmailAddressID != nil {
		for _, e := range d.EmailAddresses {
			if e.ID == *d.PrimaryEmailAddressID {
				return e.EmailAddress
			}
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

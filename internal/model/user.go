// Package model defines the data structures used throughout the application.
//
// Relationships between records are stored as identifiers, never embedded.
// The expanded views declared in post.go are produced on the read side
// by service.Expander and are never persisted.
package model

import "time"

// User is the local profile linked to one identity-provider account.
//
// ExternalIdentityID is assigned by the identity provider and never changes
// after the record is created. The store carries a UNIQUE index on it (and on
// Email) so two concurrent user.created deliveries cannot both insert.
//
// Following, Followers and Saved are derived from edge tables when the record
// is read; they are sets, so ordering carries no meaning for the first two.
type User struct {
	ID                 string    `json:"id"`
	ExternalIdentityID string    `json:"externalIdentityId"`
	Email              string    `json:"email"`
	Username           string    `json:"username"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	PhotoURL           string    `json:"photoUrl"`
	Following          []string  `json:"following"`
	Followers          []string  `json:"followers"`
	Saved              []string  `json:"saved"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// UserPatch lists profile fields to change. A nil field is left untouched.
// Email is not patchable: it is fixed when the record is created.
type UserPatch struct {
	Username  *string
	FirstName *string
	LastName  *string
	PhotoURL  *string
}

// Empty reports whether the patch would change nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.FirstName == nil && p.LastName == nil && p.PhotoURL == nil
}

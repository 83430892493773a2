package model

import (
	"encoding/json"
	"time"
)

// User represents a registered account of the application.
// Login is the primary identity and never changes after creation.
// SessionID is the current bearer credential and is rotated on every login.
// StripeCustomerID links the account to the billing provider and stays fixed
// once assigned.
type User struct {
	Login            string          `json:"login"`
	SessionID        string          `json:"sessionId"`
	StripeCustomerID string          `json:"stripeCustomerId,omitempty"`
	IsSubscribed     bool            `json:"isSubscribed"`
	PasswordHash     string          `json:"passwordHash,omitempty"`
	Profile          json.RawMessage `json:"profile,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Clone returns a deep copy so callers can mutate a record without
// affecting shared state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Profile != nil {
		cp.Profile = make(json.RawMessage, len(u.Profile))
		copy(cp.Profile, u.Profile)
	}
	return &cp
}

// Equal reports whether two records carry identical data.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Login == other.Login &&
		u.SessionID == other.SessionID &&
		u.StripeCustomerID == other.StripeCustomerID &&
		u.IsSubscribed == other.IsSubscribed &&
		u.PasswordHash == other.PasswordHash &&
		string(u.Profile) == string(other.Profile) &&
		u.CreatedAt.Equal(other.CreatedAt)
}

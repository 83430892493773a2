package dto

import (
	"encoding/json"
	"time"

	"github.com/polkiloo/userdir/internal/domain/model"
)

// UserResponse is the public shape of a user record. The session id and
// password hash never leave the server.
type UserResponse struct {
	Login            string          `json:"login"`
	StripeCustomerID string          `json:"stripe_customer_id,omitempty"`
	IsSubscribed     bool            `json:"is_subscribed"`
	Profile          json.RawMessage `json:"profile,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewUserResponse converts a domain record into its public shape.
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		Login:            u.Login,
		StripeCustomerID: u.StripeCustomerID,
		IsSubscribed:     u.IsSubscribed,
		Profile:          u.Profile,
		CreatedAt:        u.CreatedAt,
	}
}

// UpdateProfileRequest replaces the opaque profile payload.
type UpdateProfileRequest struct {
	Profile json.RawMessage `json:"profile"`
}

// UserListResponse is one page of the directory listing.
type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

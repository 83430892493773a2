package dto

import "encoding/json"

// RegisterRequest describes the account creation payload.
type RegisterRequest struct {
	Login    string          `json:"login"`
	Password string          `json:"password"`
	Profile  json.RawMessage `json:"profile,omitempty"`
}

// LoginRequest describes login/password payload.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

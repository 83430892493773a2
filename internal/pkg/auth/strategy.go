package auth

import "time"

// Strategy signs session identifiers into bearer tokens and verifies
// presented tokens back into session identifiers.
type Strategy interface {
	IssueToken(sessionID string) (string, error)
	ParseToken(token string) (string, error)
	Name() string
}

type Options struct {
	TTL time.Duration
}

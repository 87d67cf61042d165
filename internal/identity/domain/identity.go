// Package domain defines revoked API tokens.
package domain

import "time"

// RevokedToken is an invalid_auth_tokens row. Tokens are stored by SHA-256 hash and kept
// until they would have expired.
type RevokedToken struct {
	TokenHash string
	ExpiresAt time.Time
}

// Active reports whether the revocation still matters at now.
func (r *RevokedToken) Active(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

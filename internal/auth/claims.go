package auth

import "time"

// AccessClaims holds the claims carried by an access token.
// Standard PASETO claims use their registered short names.
type AccessClaims struct {
	Issuer    string    `json:"iss"`
	Subject   string    `json:"sub"`
	Audience  string    `json:"aud"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`

	// Custom claims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

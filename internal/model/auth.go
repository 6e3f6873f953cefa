package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are JWT claims carried by a player's session token.
// The subject claim holds the user id.
type UserClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a live connection resolves to after authentication
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
}

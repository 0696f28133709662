package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceClaims are JWT claims for callers of the selection API
type ServiceClaims struct {
	ClientID string `json:"clientId"`
	jwt.RegisteredClaims
}

// TokenRequest is the client-credentials body for POST /v1/auth/token
type TokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// TokenResponse is returned after a successful token exchange
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

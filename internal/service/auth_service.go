package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"voicefeedback/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid client id or secret")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService issues and validates tokens for the call orchestrator
type AuthService struct {
	clientID     string
	clientSecret string
	jwtSecret    []byte
	ttl          time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(clientID, clientSecret, jwtSecret string) *AuthService {
	return &AuthService{
		clientID:     clientID,
		clientSecret: clientSecret,
		jwtSecret:    []byte(jwtSecret),
		ttl:          12 * time.Hour,
	}
}

// IssueToken exchanges client credentials for a signed token
func (s *AuthService) IssueToken(clientID, clientSecret string) (*model.TokenResponse, error) {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(s.clientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(s.clientSecret)) == 1
	if !idOK || !secretOK {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := &model.ServiceClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{Token: tokenString, ExpiresAt: expiresAt.UTC()}, nil
}

// ValidateToken validates a service JWT and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*model.ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.ServiceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents the caller roles understood by the RBAC guard.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleService Role = "SERVICE"
	RoleTeacher Role = "TEACHER"
)

// ServiceAccount is a configured API client allowed to request tokens.
type ServiceAccount struct {
	ClientID   string
	SecretHash string
	Role       Role
}

// TokenRequest holds credentials for the client-credentials exchange.
type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// TokenResponse returns the issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

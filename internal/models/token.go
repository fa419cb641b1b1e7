package models

import (
	"time"

	"github.com/google/uuid"
)

// ExpirySafetyMargin is the remaining lifetime below which a token is
// treated as expired, so a call started now cannot outlive its token.
const ExpirySafetyMargin = 30 * time.Second

// Token is the current OAuth2 access/refresh token pair. It is always
// replaced wholesale, never mutated field by field.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// Usable reports whether the token can back a remote call started at now,
// applying the expiry safety margin.
func (t Token) Usable(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.Sub(now) >= ExpirySafetyMargin
}

// TokenRecord is the persisted form of the current token. There is exactly
// one row per provider; saving replaces it.
type TokenRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Provider     string    `gorm:"uniqueIndex"`
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r TokenRecord) Token() Token {
	return Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		ExpiresAt:    r.ExpiresAt,
	}
}

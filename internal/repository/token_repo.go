package repository

import (
	"context"
	"errors"
	"time"

	"invoice-sync-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository is the credential store: it owns the single current token
// for one provider.
type TokenRepository struct {
	db       *gorm.DB
	provider string
}

func NewTokenRepository(db *gorm.DB, provider string) *TokenRepository {
	return &TokenRepository{db: db, provider: provider}
}

// Load returns the stored token, with ok=false when none has been saved yet.
func (r *TokenRepository) Load(ctx context.Context) (models.Token, bool, error) {
	var record models.TokenRecord
	err := r.db.WithContext(ctx).First(&record, "provider = ?", r.provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Token{}, false, nil
	}
	if err != nil {
		return models.Token{}, false, err
	}
	return record.Token(), true, nil
}

// Save replaces the stored token wholesale. The upsert is a single statement,
// so concurrent readers never observe a partial write.
func (r *TokenRepository) Save(ctx context.Context, token models.Token) error {
	record := models.TokenRecord{
		ID:           uuid.New(),
		Provider:     r.provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
		ExpiresAt:    token.ExpiresAt,
		UpdatedAt:    time.Now(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_type", "scope", "expires_at", "updated_at",
		}),
	}).Create(&record).Error
}

// Clear removes the stored token, e.g. on logout.
func (r *TokenRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("provider = ?", r.provider).
		Delete(&models.TokenRecord{}).Error
}

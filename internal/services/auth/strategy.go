package auth

import (
	"context"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/xero"
)

// Acquirer produces a first token when the store is empty. The
// authorization-code flow is not an Acquirer: it needs a user in a browser,
// so the login handlers seed the store instead.
type Acquirer interface {
	Acquire(ctx context.Context) (models.Token, error)
}

// ClientCredentialsAcquirer exchanges the configured client id and secret
// directly for a token.
type ClientCredentialsAcquirer struct {
	gateway *xero.Client
}

func NewClientCredentialsAcquirer(gateway *xero.Client) *ClientCredentialsAcquirer {
	return &ClientCredentialsAcquirer{gateway: gateway}
}

func (a *ClientCredentialsAcquirer) Acquire(ctx context.Context) (models.Token, error) {
	return a.gateway.ExchangeClientCredentials(ctx)
}

// RefreshSeedAcquirer bootstraps from a refresh token provided out of band
// (environment variable), forcing an immediate refresh to obtain a live
// access token.
type RefreshSeedAcquirer struct {
	gateway      TokenRefresher
	refreshToken string
}

func NewRefreshSeedAcquirer(gateway TokenRefresher, refreshToken string) *RefreshSeedAcquirer {
	return &RefreshSeedAcquirer{gateway: gateway, refreshToken: refreshToken}
}

func (a *RefreshSeedAcquirer) Acquire(ctx context.Context) (models.Token, error) {
	seed := models.Token{RefreshToken: a.refreshToken}
	return a.gateway.RefreshToken(ctx, seed)
}

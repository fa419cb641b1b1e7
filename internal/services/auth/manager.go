// Package auth manages the OAuth2 token lifecycle: validity checks,
// transparent refresh, and the bounded retry around remote calls.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/xero"

	"go.uber.org/zap"
)

// maxAuthRetries bounds refresh-and-retry cycles per remote call. A remote
// that rejects a freshly refreshed token would otherwise loop forever.
const maxAuthRetries = 1

// CredentialStore persists the single current token.
type CredentialStore interface {
	Load(ctx context.Context) (models.Token, bool, error)
	Save(ctx context.Context, token models.Token) error
}

// TokenRefresher trades a refresh token for a new token pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, token models.Token) (models.Token, error)
}

// Manager guards the stored token: reads before every remote call and writes
// on the refresh path go through its mutex.
type Manager struct {
	store     CredentialStore
	gateway   TokenRefresher
	bootstrap Acquirer // optional; nil when only the login flow can seed tokens
	log       *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

func NewManager(store CredentialStore, gateway TokenRefresher, bootstrap Acquirer, log *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		gateway:   gateway,
		bootstrap: bootstrap,
		log:       log,
		now:       time.Now,
	}
}

// EnsureValidToken returns a token with at least the safety margin of
// lifetime left, refreshing at most once. Failure to refresh is reported as
// *CredentialError: the session is dead until the user logs in again.
func (m *Manager) EnsureValidToken(ctx context.Context) (models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx)
}

func (m *Manager) ensureLocked(ctx context.Context) (models.Token, error) {
	token, ok, err := m.store.Load(ctx)
	if err != nil {
		return models.Token{}, &CredentialError{Err: err}
	}

	if !ok {
		if m.bootstrap == nil {
			return models.Token{}, &CredentialError{Err: ErrNoToken}
		}
		return m.acquireLocked(ctx)
	}

	if token.Usable(m.now()) {
		return token, nil
	}
	return m.refreshLocked(ctx, token)
}

// ForceRefresh refreshes regardless of remaining lifetime, e.g. after a
// remote call rejected the current token.
func (m *Manager) ForceRefresh(ctx context.Context) (models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok, err := m.store.Load(ctx)
	if err != nil {
		return models.Token{}, &CredentialError{Err: err}
	}
	if !ok {
		return models.Token{}, &CredentialError{Err: ErrNoToken}
	}
	return m.refreshLocked(ctx, token)
}

func (m *Manager) acquireLocked(ctx context.Context) (models.Token, error) {
	token, err := m.bootstrap.Acquire(ctx)
	if err != nil {
		return models.Token{}, &CredentialError{Err: err}
	}
	if err := m.store.Save(ctx, token); err != nil {
		return models.Token{}, &CredentialError{Err: err}
	}
	m.log.Info("acquired initial token", zap.Time("expires_at", token.ExpiresAt))
	return token, nil
}

func (m *Manager) refreshLocked(ctx context.Context, token models.Token) (models.Token, error) {
	fresh, err := m.gateway.RefreshToken(ctx, token)
	if err != nil {
		return models.Token{}, &CredentialError{Err: err}
	}
	if err := m.store.Save(ctx, fresh); err != nil {
		return models.Token{}, &CredentialError{Err: err}
	}
	m.log.Info("token refreshed", zap.Time("expires_at", fresh.ExpiresAt))
	return fresh, nil
}

// WithAuthRetry runs op with a valid token. If the remote rejects the token
// (401-equivalent), it refreshes and retries exactly once; any further auth
// failure surfaces unmodified.
func (m *Manager) WithAuthRetry(ctx context.Context, op func(ctx context.Context, token models.Token) error) error {
	token, err := m.EnsureValidToken(ctx)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		opErr := op(ctx, token)

		var authErr *xero.AuthError
		if opErr == nil || attempt >= maxAuthRetries || !errors.As(opErr, &authErr) {
			return opErr
		}

		m.log.Warn("remote call rejected token, refreshing",
			zap.Int("attempt", attempt+1),
			zap.String("op", authErr.Op))

		if token, err = m.ForceRefresh(ctx); err != nil {
			return err
		}
	}
}

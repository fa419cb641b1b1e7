package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/xero"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	token   models.Token
	ok      bool
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(ctx context.Context) (models.Token, bool, error) {
	return m.token, m.ok, m.loadErr
}

func (m *memStore) Save(ctx context.Context, token models.Token) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	m.ok = true
	m.saves++
	return nil
}

type stubRefresher struct {
	next  models.Token
	err   error
	calls int
	seen  []models.Token
}

func (r *stubRefresher) RefreshToken(ctx context.Context, token models.Token) (models.Token, error) {
	r.calls++
	r.seen = append(r.seen, token)
	if r.err != nil {
		return models.Token{}, r.err
	}
	return r.next, nil
}

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(store *memStore, refresher *stubRefresher, bootstrap Acquirer) *Manager {
	m := NewManager(store, refresher, bootstrap, zap.NewNop())
	m.now = func() time.Time { return testTime }
	return m
}

func liveToken() models.Token {
	return models.Token{
		AccessToken:  "live",
		RefreshToken: "refresh-1",
		ExpiresAt:    testTime.Add(time.Hour),
	}
}

func staleToken() models.Token {
	return models.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-0",
		ExpiresAt:    testTime.Add(10 * time.Second), // inside the safety margin
	}
}

func TestEnsureValidTokenNoRefreshWhenUsable(t *testing.T) {
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{}
	m := newTestManager(store, refresher, nil)

	token, err := m.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "live", token.AccessToken)
	assert.Equal(t, 0, refresher.calls)
	assert.Equal(t, 0, store.saves)
}

func TestEnsureValidTokenRefreshesNearExpiry(t *testing.T) {
	fresh := models.Token{AccessToken: "fresh", RefreshToken: "refresh-1", ExpiresAt: testTime.Add(30 * time.Minute)}
	store := &memStore{token: staleToken(), ok: true}
	refresher := &stubRefresher{next: fresh}
	m := newTestManager(store, refresher, nil)

	token, err := m.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "refresh-0", refresher.seen[0].RefreshToken)

	// The replacement token was persisted wholesale.
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, fresh, store.token)
}

func TestEnsureValidTokenEmptyStore(t *testing.T) {
	m := newTestManager(&memStore{}, &stubRefresher{}, nil)

	_, err := m.EnsureValidToken(context.Background())

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestEnsureValidTokenBootstraps(t *testing.T) {
	fresh := models.Token{AccessToken: "boot", ExpiresAt: testTime.Add(30 * time.Minute)}
	store := &memStore{}
	refresher := &stubRefresher{next: fresh}
	m := newTestManager(store, refresher, NewRefreshSeedAcquirer(refresher, "seed-token"))

	token, err := m.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "boot", token.AccessToken)
	assert.Equal(t, "seed-token", refresher.seen[0].RefreshToken)
	assert.Equal(t, 1, store.saves)
}

func TestEnsureValidTokenRefreshFailure(t *testing.T) {
	store := &memStore{token: staleToken(), ok: true}
	refresher := &stubRefresher{err: &xero.AuthError{Op: "refresh token", Status: 400, Message: "invalid_grant"}}
	m := newTestManager(store, refresher, nil)

	_, err := m.EnsureValidToken(context.Background())

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	// The stale token stays in place until a refresh succeeds.
	assert.Equal(t, 0, store.saves)
}

func TestEnsureValidTokenSaveFailure(t *testing.T) {
	store := &memStore{token: staleToken(), ok: true, saveErr: errors.New("disk full")}
	refresher := &stubRefresher{next: liveToken()}
	m := newTestManager(store, refresher, nil)

	_, err := m.EnsureValidToken(context.Background())

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
}

func TestWithAuthRetrySuccessFirstTry(t *testing.T) {
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{}
	m := newTestManager(store, refresher, nil)

	calls := 0
	err := m.WithAuthRetry(context.Background(), func(ctx context.Context, token models.Token) error {
		calls++
		assert.Equal(t, "live", token.AccessToken)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, refresher.calls)
}

func TestWithAuthRetryRefreshesOnceThenSucceeds(t *testing.T) {
	fresh := models.Token{AccessToken: "fresh", ExpiresAt: testTime.Add(30 * time.Minute)}
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{next: fresh}
	m := newTestManager(store, refresher, nil)

	var seen []string
	err := m.WithAuthRetry(context.Background(), func(ctx context.Context, token models.Token) error {
		seen = append(seen, token.AccessToken)
		if len(seen) == 1 {
			return &xero.AuthError{Op: "create invoice", Status: 401, Message: "unauthorized"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"live", "fresh"}, seen)
	assert.Equal(t, 1, refresher.calls)
}

func TestWithAuthRetryBoundedAtOneRetry(t *testing.T) {
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{next: liveToken()}
	m := newTestManager(store, refresher, nil)

	calls := 0
	err := m.WithAuthRetry(context.Background(), func(ctx context.Context, token models.Token) error {
		calls++
		return &xero.AuthError{Op: "create invoice", Status: 401, Message: "unauthorized"}
	})

	var authErr *xero.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, refresher.calls)
}

func TestWithAuthRetryNonAuthErrorNotRetried(t *testing.T) {
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{}
	m := newTestManager(store, refresher, nil)

	boom := errors.New("connection reset")
	calls := 0
	err := m.WithAuthRetry(context.Background(), func(ctx context.Context, token models.Token) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, refresher.calls)
}

func TestWithAuthRetryRefreshFailureSurfacesCredentialError(t *testing.T) {
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{err: &xero.AuthError{Op: "refresh token", Status: 400, Message: "invalid_grant"}}
	m := newTestManager(store, refresher, nil)

	err := m.WithAuthRetry(context.Background(), func(ctx context.Context, token models.Token) error {
		return &xero.AuthError{Op: "create invoice", Status: 401, Message: "unauthorized"}
	})

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
}

func TestForceRefresh(t *testing.T) {
	fresh := models.Token{AccessToken: "forced", ExpiresAt: testTime.Add(30 * time.Minute)}
	store := &memStore{token: liveToken(), ok: true}
	refresher := &stubRefresher{next: fresh}
	m := newTestManager(store, refresher, nil)

	token, err := m.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "forced", token.AccessToken)
	assert.Equal(t, 1, store.saves)
}

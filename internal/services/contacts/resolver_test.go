package contacts

import (
	"context"
	"errors"
	"testing"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/xero"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRunner struct{}

func (stubRunner) WithAuthRetry(ctx context.Context, op func(ctx context.Context, token models.Token) error) error {
	return op(ctx, models.Token{AccessToken: "tok"})
}

type stubLister struct {
	contacts []xero.Contact
	err      error
}

func (s *stubLister) ListContacts(ctx context.Context, token models.Token, tenantID string) ([]xero.Contact, error) {
	return s.contacts, s.err
}

func newTestResolver(lister *stubLister) *Resolver {
	return NewResolver(lister, stubRunner{}, zap.NewNop())
}

func TestResolveEmptyNameFallsBackToFirst(t *testing.T) {
	lister := &stubLister{contacts: []xero.Contact{
		{ContactID: "c1", Name: "Acme Freight Ltd"},
		{ContactID: "c2", Name: "Globex Shipping"},
	}}

	contact, err := newTestResolver(lister).Resolve(context.Background(), "tenant-1", "  ")
	require.NoError(t, err)
	assert.Equal(t, "c1", contact.ContactID)
}

func TestResolveBestMatch(t *testing.T) {
	lister := &stubLister{contacts: []xero.Contact{
		{ContactID: "c1", Name: "Globex Shipping"},
		{ContactID: "c2", Name: "ACME FREIGHT, LTD."},
	}}

	contact, err := newTestResolver(lister).Resolve(context.Background(), "tenant-1", "Acme Freight Ltd")
	require.NoError(t, err)
	assert.Equal(t, "c2", contact.ContactID)
}

func TestResolveBelowThreshold(t *testing.T) {
	lister := &stubLister{contacts: []xero.Contact{
		{ContactID: "c1", Name: "Globex Shipping"},
	}}

	_, err := newTestResolver(lister).Resolve(context.Background(), "tenant-1", "Initech Logistics Corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no contact matching")
}

func TestResolveNoContacts(t *testing.T) {
	_, err := newTestResolver(&stubLister{}).Resolve(context.Background(), "tenant-1", "Anyone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no contacts found")
}

func TestResolveListError(t *testing.T) {
	boom := errors.New("listing failed")
	_, err := newTestResolver(&stubLister{err: boom}).Resolve(context.Background(), "tenant-1", "Anyone")
	assert.ErrorIs(t, err, boom)
}

func TestNameScore(t *testing.T) {
	tests := []struct {
		query     string
		candidate string
		want      float64
	}{
		{"Acme Freight", "ACME FREIGHT LTD", 100},
		{"Acme Freight Ltd", "Acme Freight", 200.0 / 3},
		{"acme-freight", "Acme Freight", 100},
		{"Initech", "Globex", 0},
		{"", "Anything", 0},
	}

	for _, tc := range tests {
		assert.InDelta(t, tc.want, nameScore(tc.query, tc.candidate), 0.001, "query %q candidate %q", tc.query, tc.candidate)
	}
}

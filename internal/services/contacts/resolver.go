// Package contacts resolves the target Xero contact for a sync run.
package contacts

import (
	"context"
	"fmt"
	"strings"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/xero"

	"go.uber.org/zap"
)

// matchThreshold is the minimum name-similarity score (0-100) for a
// configured contact name to be accepted.
const matchThreshold = 60.0

type ContactLister interface {
	ListContacts(ctx context.Context, token models.Token, tenantID string) ([]xero.Contact, error)
}

type TokenRunner interface {
	WithAuthRetry(ctx context.Context, op func(ctx context.Context, token models.Token) error) error
}

type Resolver struct {
	gateway ContactLister
	tokens  TokenRunner
	log     *zap.Logger
}

func NewResolver(gateway ContactLister, tokens TokenRunner, log *zap.Logger) *Resolver {
	return &Resolver{gateway: gateway, tokens: tokens, log: log}
}

// Resolve picks the contact the invoices will be billed against. An empty
// name falls back to the tenant's first contact; otherwise the best
// normalized-name match wins, and a score below the threshold is an error.
func (r *Resolver) Resolve(ctx context.Context, tenantID, name string) (xero.Contact, error) {
	var listed []xero.Contact
	err := r.tokens.WithAuthRetry(ctx, func(ctx context.Context, token models.Token) error {
		var err error
		listed, err = r.gateway.ListContacts(ctx, token, tenantID)
		return err
	})
	if err != nil {
		return xero.Contact{}, err
	}
	if len(listed) == 0 {
		return xero.Contact{}, fmt.Errorf("no contacts found in Xero")
	}

	if strings.TrimSpace(name) == "" {
		return listed[0], nil
	}

	best := listed[0]
	bestScore := nameScore(name, best.Name)
	for _, contact := range listed[1:] {
		if score := nameScore(name, contact.Name); score > bestScore {
			best, bestScore = contact, score
		}
	}

	if bestScore < matchThreshold {
		return xero.Contact{}, fmt.Errorf("no contact matching %q (best candidate %q scored %.0f)", name, best.Name, bestScore)
	}

	r.log.Debug("resolved contact",
		zap.String("name", best.Name),
		zap.Float64("score", bestScore))
	return best, nil
}

// nameScore rates how well candidate matches query, 0-100, as the share of
// query tokens present in the candidate after normalization.
func nameScore(query, candidate string) float64 {
	queryTokens := strings.Fields(normalizeName(query))
	candidateTokens := strings.Fields(normalizeName(candidate))
	if len(queryTokens) == 0 {
		return 0
	}

	matches := 0
	for _, qt := range queryTokens {
		for _, ct := range candidateTokens {
			if qt == ct {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(queryTokens)) * 100
}

func normalizeName(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"invoice-sync-backend/internal/models"
	"invoice-sync-backend/internal/repository"
	"invoice-sync-backend/internal/services/auth"
	"invoice-sync-backend/internal/xero"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stateCookie = "oauth_state"

// AuthHandler drives the Xero authorization-code flow and exposes the token
// lifecycle over HTTP.
type AuthHandler struct {
	gateway *xero.Client
	manager *auth.Manager
	store   *repository.TokenRepository
	log     *zap.Logger
}

func NewAuthHandler(gateway *xero.Client, manager *auth.Manager, store *repository.TokenRepository, log *zap.Logger) *AuthHandler {
	return &AuthHandler{gateway: gateway, manager: manager, store: store, log: log}
}

// Login redirects the browser to the Xero consent page. The state value is
// pinned in a short-lived cookie and checked on callback.
func (h *AuthHandler) Login(c *gin.Context) {
	state := uuid.New().String()
	c.SetCookie(stateCookie, state, 300, "/", "", false, true)
	c.Redirect(http.StatusFound, h.gateway.AuthCodeURL(state))
}

// Callback completes the authorization-code flow: verifies state, exchanges
// the code, and stores the resulting token.
func (h *AuthHandler) Callback(c *gin.Context) {
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state mismatch"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access denied: no authorization code"})
		return
	}

	token, err := h.gateway.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		h.log.Error("code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "code exchange failed"})
		return
	}

	if err := h.store.Save(c.Request.Context(), token); err != nil {
		h.log.Error("failed to store token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		return
	}

	c.SetCookie(stateCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"message":    "authenticated",
		"expires_at": token.ExpiresAt,
	})
}

// Logout destroys the stored token.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Status reports whether a usable token is stored.
func (h *AuthHandler) Status(c *gin.Context) {
	token, ok, err := h.store.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"usable":        token.Usable(time.Now()),
		"expires_at":    token.ExpiresAt,
	})
}

// Refresh forces a token refresh regardless of remaining lifetime.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := h.manager.ForceRefresh(c.Request.Context())
	if err != nil {
		respondAuthFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "token refreshed",
		"expires_at": token.ExpiresAt,
	})
}

// Tenants lists the Xero organisations the token is connected to.
func (h *AuthHandler) Tenants(c *gin.Context) {
	var connections []xero.Connection
	err := h.manager.WithAuthRetry(c.Request.Context(), func(ctx context.Context, token models.Token) error {
		var err error
		connections, err = h.gateway.Connections(ctx, token)
		return err
	})
	if err != nil {
		respondAuthFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": connections})
}

// respondAuthFailure maps a credential failure to a 401 telling the client
// to restart the login flow.
func respondAuthFailure(c *gin.Context, err error) {
	var credErr *auth.CredentialError
	if errors.As(err, &credErr) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
			"login": "/api/auth/login",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"invoice-sync-backend/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultAuthURL        = "https://login.xero.com/identity/connect/authorize"
	defaultTokenURL       = "https://identity.xero.com/connect/token"
	defaultAPIBaseURL     = "https://api.xero.com/api.xro/2.0"
	defaultConnectionsURL = "https://api.xero.com/connections"

	apiDateLayout = "2006-01-02"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides, used by tests; zero values select the live API.
	AuthURL        string
	TokenURL       string
	APIBaseURL     string
	ConnectionsURL string

	HTTPClient *http.Client
}

// Client talks to the Xero identity and accounting APIs. It is stateless:
// tokens are passed in per call and never cached here.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.ConnectionsURL == "" {
		cfg.ConnectionsURL = defaultConnectionsURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// Connection is one Xero tenant the authorised user can act on.
type Connection struct {
	TenantID   string `json:"tenantId"`
	TenantType string `json:"tenantType"`
	TenantName string `json:"tenantName"`
}

type Contact struct {
	ContactID string `json:"ContactID"`
	Name      string `json:"Name"`
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Scopes:       c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthCodeURL builds the consent URL for the authorization-code flow.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (models.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return models.Token{}, classifyOAuthError("code exchange", err)
	}
	return fromOAuth2Token(tok), nil
}

// ExchangeClientCredentials obtains a token directly from the client id and
// secret, for machine-to-machine setups with no user login.
func (c *Client) ExchangeClientCredentials(ctx context.Context) (models.Token, error) {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     c.cfg.TokenURL,
		Scopes:       c.cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := cc.Token(ctx)
	if err != nil {
		return models.Token{}, classifyOAuthError("client credentials exchange", err)
	}
	return fromOAuth2Token(tok), nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshToken trades a refresh token for a new token pair. Invalid or
// revoked credentials come back as *AuthError.
func (c *Client) RefreshToken(ctx context.Context, token models.Token) (models.Token, error) {
	if strings.TrimSpace(token.RefreshToken) == "" {
		return models.Token{}, &AuthError{Op: "token refresh", Status: http.StatusUnauthorized, Message: "no refresh token"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", token.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.Token{}, err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Token{}, fmt.Errorf("xero: token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Token{}, fmt.Errorf("xero: token refresh: %w", err)
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return models.Token{}, &AuthError{Op: "token refresh", Status: resp.StatusCode, Message: apiErrorMessage(body)}
	}
	if resp.StatusCode != http.StatusOK {
		return models.Token{}, fmt.Errorf("xero: token refresh: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return models.Token{}, fmt.Errorf("xero: token refresh: malformed token response")
	}

	fresh := models.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Scope:        tr.Scope,
		ExpiresAt:    c.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}

// Connections lists the tenants the token is connected to.
func (c *Client) Connections(ctx context.Context, token models.Token) ([]Connection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ConnectionsURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token, "")

	body, err := c.do(req, "list connections")
	if err != nil {
		return nil, err
	}

	var connections []Connection
	if err := json.Unmarshal(body, &connections); err != nil {
		return nil, fmt.Errorf("xero: list connections: %w", err)
	}
	return connections, nil
}

// ListContacts fetches the tenant's contacts.
func (c *Client) ListContacts(ctx context.Context, token models.Token, tenantID string) ([]Contact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/Contacts", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token, tenantID)

	body, err := c.do(req, "list contacts")
	if err != nil {
		return nil, err
	}

	var out struct {
		Contacts []Contact `json:"Contacts"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("xero: list contacts: %w", err)
	}
	return out.Contacts, nil
}

type contactRef struct {
	ContactID string `json:"ContactID"`
}

type invoicePayload struct {
	Type            string            `json:"Type"`
	Contact         contactRef        `json:"Contact"`
	LineItems       []models.LineItem `json:"LineItems"`
	Date            string            `json:"Date"`
	DueDate         string            `json:"DueDate"`
	Reference       string            `json:"Reference"`
	Status          string            `json:"Status"`
	LineAmountTypes string            `json:"LineAmountTypes"`
}

// CreateInvoice submits one draft and returns the remote-assigned invoice id.
// Business-rule rejections come back as *RemoteValidationError, expired or
// revoked tokens as *AuthError.
func (c *Client) CreateInvoice(ctx context.Context, token models.Token, tenantID string, draft models.InvoiceDraft) (string, error) {
	payload := struct {
		Invoices []invoicePayload `json:"Invoices"`
	}{
		Invoices: []invoicePayload{{
			Type:            draft.Type,
			Contact:         contactRef{ContactID: draft.ContactID},
			LineItems:       draft.LineItems,
			Date:            draft.Date.Format(apiDateLayout),
			DueDate:         draft.DueDate.Format(apiDateLayout),
			Reference:       draft.Reference,
			Status:          draft.Status,
			LineAmountTypes: draft.LineAmountTypes,
		}},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/Invoices?summarizeErrors=false", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	c.setHeaders(req, token, tenantID)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "create invoice")
	if err != nil {
		return "", err
	}

	var out struct {
		Invoices []struct {
			InvoiceID string `json:"InvoiceID"`
		} `json:"Invoices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("xero: create invoice: %w", err)
	}
	if len(out.Invoices) == 0 {
		return "", fmt.Errorf("xero: create invoice: empty response")
	}
	return out.Invoices[0].InvoiceID, nil
}

func (c *Client) setHeaders(req *http.Request, token models.Token, tenantID string) {
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")
	if tenantID != "" {
		req.Header.Set("Xero-tenant-id", tenantID)
	}
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xero: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("xero: %s: %w", op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Op: op, Status: resp.StatusCode, Message: apiErrorMessage(body)}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &RemoteValidationError{Reason: apiErrorMessage(body)}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("xero: %s: unexpected status %d", op, resp.StatusCode)
	}
	return body, nil
}

func classifyOAuthError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		status := rerr.Response.StatusCode
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return &AuthError{Op: op, Status: status, Message: apiErrorMessage(rerr.Body)}
		}
	}
	return fmt.Errorf("xero: %s: %w", op, err)
}

func fromOAuth2Token(tok *oauth2.Token) models.Token {
	scope := ""
	if s, ok := tok.Extra("scope").(string); ok {
		scope = s
	}
	return models.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        scope,
		ExpiresAt:    tok.Expiry,
	}
}

type apiErrorResponse struct {
	Message  string `json:"Message"`
	Detail   string `json:"Detail"`
	Elements []struct {
		ValidationErrors []struct {
			Message string `json:"Message"`
		} `json:"ValidationErrors"`
	} `json:"Elements"`
}

// apiErrorMessage digs a human-readable reason out of a Xero error body.
func apiErrorMessage(body []byte) string {
	var payload apiErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		var messages []string
		for _, element := range payload.Elements {
			for _, ve := range element.ValidationErrors {
				messages = append(messages, ve.Message)
			}
		}
		if len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// Package marketplace provides a client for the MercadoLibre items API.
// It fetches item descriptions and attributes, refreshing the OAuth access
// token when the marketplace rejects it.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the production MercadoLibre API endpoint.
const DefaultBaseURL = "https://api.mercadolibre.com"

// DefaultTimeout is the per-request HTTP timeout.
const DefaultTimeout = 20 * time.Second

// ExtractError represents a per-item extraction failure. Pipelines treat it
// as recoverable: the failing item is recorded and the batch continues.
type ExtractError struct {
	ItemID  string
	Message string
	Cause   error
}

func (e *ExtractError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("extract error: %s", e.Message)
	}
	return fmt.Sprintf("extract error for item %s: %s", e.ItemID, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// Config holds marketplace client credentials and endpoints.
type Config struct {
	BaseURL      string
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the MercadoLibre API. It is safe for concurrent use by
// multiple jobs; token refresh is serialized internally.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewClient creates a marketplace client from config, applying defaults for
// base URL and timeout.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
	}
}

// Attribute is a single item attribute (brand, model, color, ...).
type Attribute struct {
	ID        string `json:"id"`
	ValueName string `json:"value_name"`
}

// descriptionPayload mirrors the /items/{id}/description response. The text
// field is the legacy HTML body; plain_text supersedes it.
type descriptionPayload struct {
	Text      string `json:"text"`
	PlainText string `json:"plain_text"`
}

type itemPayload struct {
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes"`
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// FetchDescription retrieves the description text for an item. It prefers
// the plain_text field and falls back to stripping HTML from the legacy
// text field.
func (c *Client) FetchDescription(ctx context.Context, itemID string) (string, error) {
	endpoint := fmt.Sprintf("%s/items/%s/description", c.baseURL, itemID)

	log.Printf("Extracting description for item %s", itemID)

	body, status, err := c.request(ctx, http.MethodGet, endpoint)
	if err != nil {
		return "", &ExtractError{ItemID: itemID, Message: "request failed", Cause: err}
	}
	if status != http.StatusOK {
		return "", &ExtractError{
			ItemID:  itemID,
			Message: fmt.Sprintf("item description failed %d: %s", status, truncate(string(body), 200)),
		}
	}

	var payload descriptionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &ExtractError{ItemID: itemID, Message: "invalid description payload", Cause: err}
	}

	if payload.PlainText != "" {
		return payload.PlainText, nil
	}
	return htmlToText(payload.Text), nil
}

// FetchItemAttributes retrieves the attribute list for an item. Callers use
// it best-effort to surface brand/model/color in prompts; a failure here
// never fails the item.
func (c *Client) FetchItemAttributes(ctx context.Context, itemID string) ([]Attribute, error) {
	endpoint := fmt.Sprintf("%s/items/%s?attributes=id,attributes", c.baseURL, itemID)

	body, status, err := c.request(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, &ExtractError{ItemID: itemID, Message: "request failed", Cause: err}
	}
	if status != http.StatusOK {
		return nil, &ExtractError{
			ItemID:  itemID,
			Message: fmt.Sprintf("item lookup failed %d: %s", status, truncate(string(body), 200)),
		}
	}

	var payload itemPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ExtractError{ItemID: itemID, Message: "invalid item payload", Cause: err}
	}
	return payload.Attributes, nil
}

// request executes an authenticated request, refreshing the access token and
// retrying once when the marketplace answers 401/403.
func (c *Client) request(ctx context.Context, method, endpoint string) ([]byte, int, error) {
	body, status, err := c.do(ctx, method, endpoint)
	if err != nil {
		return nil, 0, err
	}

	if (status == http.StatusUnauthorized || status == http.StatusForbidden) && c.canRefresh() {
		if err := c.refreshAccessToken(ctx); err != nil {
			return nil, 0, err
		}
		body, status, err = c.do(ctx, method, endpoint)
		if err != nil {
			return nil, 0, err
		}
	}

	if status < 200 || status >= 300 {
		log.Printf("Marketplace request failed %s %s status=%d body=%s",
			method, endpoint, status, truncate(string(body), 200))
	}

	return body, status, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string) ([]byte, int, error) {
	token := c.token()
	if token == "" {
		return nil, 0, fmt.Errorf("access token not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) canRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken != "" && c.clientID != "" && c.clientSecret != ""
}

// refreshAccessToken exchanges the refresh token for a new token pair.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	c.mu.Lock()
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
	}
	c.mu.Unlock()

	endpoint := c.baseURL + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("invalid token refresh payload: %w", err)
	}

	c.mu.Lock()
	c.accessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		c.refreshToken = payload.RefreshToken
	}
	c.mu.Unlock()

	log.Printf("Marketplace access token refreshed")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

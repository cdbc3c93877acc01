package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"castsync/internal/config"
	"castsync/internal/ratelimit"
	"castsync/internal/services"
)

const (
	defaultTimeout = 10 * time.Second
	stageName      = "media_server"
	itemFields     = "People,ProviderIds,OriginalTitle,ProductionYear"
)

// Client reads and updates items on the media server.
type Client struct {
	baseURL  string
	apiKey   string
	userID   string
	client   services.HTTPDoer
	cooldown *ratelimit.Cooldown
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client services.HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithCooldown paces requests through a shared cooldown.
func WithCooldown(cooldown *ratelimit.Cooldown) Option {
	return func(c *Client) {
		c.cooldown = cooldown
	}
}

// New constructs a client. userID is optional; Emby requires it for item reads.
func New(baseURL, apiKey, userID string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "Media server url required", nil)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "Media server api key required", nil)
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		userID:  strings.TrimSpace(userID),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from the [media_server] section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	timeout := defaultTimeout
	if cfg.MediaServer.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.MediaServer.TimeoutSeconds) * time.Second
	}
	opts = append([]Option{WithHTTPClient(&http.Client{Timeout: timeout})}, opts...)
	return New(cfg.MediaServer.URL, cfg.MediaServer.APIKey, cfg.MediaServer.UserID, opts...)
}

// GetItemDetails fetches an item with its people and provider ids.
func (c *Client) GetItemDetails(ctx context.Context, itemID string) (*Item, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "get item", "Item id required", nil)
	}
	path := "/Items/" + url.PathEscape(itemID)
	if c.userID != "" {
		path = "/Users/" + url.PathEscape(c.userID) + "/Items/" + url.PathEscape(itemID)
	}
	query := url.Values{}
	query.Set("Fields", itemFields)

	var item Item
	if err := c.do(ctx, http.MethodGet, path, query, nil, &item, "get item"); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = itemID
	}
	return &item, nil
}

// UpdateItemCast replaces the item's cast. Non-cast credits (directors,
// writers) are preserved.
func (c *Client) UpdateItemCast(ctx context.Context, item *Item, cast []Person) error {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return services.Wrap(services.ErrValidation, stageName, "update cast", "Item required", nil)
	}
	doc, err := item.withCast(cast)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "update cast", "Encode update", err)
	}
	return c.do(ctx, http.MethodPost, "/Items/"+url.PathEscape(item.ID), nil, doc, nil, "update cast")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, op string) error {
	if err := c.cooldown.Wait(ctx); err != nil {
		return err
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return services.TransportError(stageName, op, latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := services.StatusError(stageName, op, resp.StatusCode, latency)
		c.cooldown.Observe(statusErr)
		return statusErr
	}
	c.cooldown.Observe(nil)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, op, "Decode response", err)
	}
	return nil
}

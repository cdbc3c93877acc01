package regional

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"castsync/internal/config"
	"castsync/internal/ratelimit"
	"castsync/internal/services"
)

const (
	stageName          = "regional"
	defaultTimeout     = 10 * time.Second
	defaultDetailCache = 512
)

// CastMember is one credited actor on a subject.
type CastMember struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AltName   string `json:"latin_name"`
	Character string `json:"character"`
}

type castResponse struct {
	Actors []CastMember `json:"actors"`
}

// PersonDetail carries the bridge id used to cross-reference other databases.
type PersonDetail struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	AltName  string   `json:"latin_name"`
	BridgeID string   `json:"imdb_id"`
	AKA      []string `json:"aka"`
}

// Names returns every known spelling, localized name first.
func (d *PersonDetail) Names() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, n := range append([]string{d.Name, d.AltName}, d.AKA...) {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Subject is a search hit.
type Subject struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	Year          string `json:"year"`
	Type          string `json:"type"`
}

type searchResponse struct {
	Subjects []Subject `json:"subjects"`
}

// Client talks to the regional database.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient services.HTTPDoer
	cooldown   *ratelimit.Cooldown
	details    *lru.Cache[string, *PersonDetail]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client services.HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCooldown paces requests through a shared cooldown.
func WithCooldown(cooldown *ratelimit.Cooldown) Option {
	return func(c *Client) {
		c.cooldown = cooldown
	}
}

// WithDetailCacheSize bounds the person detail memo.
func WithDetailCacheSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.details, _ = lru.New[string, *PersonDetail](n)
		}
	}
}

// New constructs a client. apiKey is optional.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "Regional database url required", nil)
	}
	details, err := lru.New[string, *PersonDetail](defaultDetailCache)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultTimeout},
		details:    details,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from the [regional] section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	base := []Option{WithDetailCacheSize(cfg.Regional.DetailCacheEntries)}
	if cfg.Regional.TimeoutSeconds > 0 {
		timeout := time.Duration(cfg.Regional.TimeoutSeconds) * time.Second
		base = append(base, WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return New(cfg.Regional.BaseURL, cfg.Regional.APIKey, append(base, opts...)...)
}

// GetCastForSubject returns the credited actors of a subject in billing order.
func (c *Client) GetCastForSubject(ctx context.Context, subjectID string) ([]CastMember, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "cast", "Subject id required", nil)
	}
	var payload castResponse
	if err := c.get(ctx, "/subject/"+url.PathEscape(subjectID)+"/celebrities", nil, &payload, "cast"); err != nil {
		return nil, err
	}
	return payload.Actors, nil
}

// GetPersonDetail returns a person's detail. A missing person is nil, nil.
func (c *Client) GetPersonDetail(ctx context.Context, personID string) (*PersonDetail, error) {
	personID = strings.TrimSpace(personID)
	if personID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "person", "Person id required", nil)
	}
	if detail, ok := c.details.Get(personID); ok {
		return detail, nil
	}
	var detail PersonDetail
	if err := c.get(ctx, "/celebrity/"+url.PathEscape(personID), nil, &detail, "person"); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.details.Add(personID, nil)
			return nil, nil
		}
		return nil, err
	}
	if detail.ID == "" {
		detail.ID = personID
	}
	detail.BridgeID = strings.TrimSpace(detail.BridgeID)
	c.details.Add(personID, &detail)
	return &detail, nil
}

// SearchSubject looks a subject up by title, narrowed by year when known.
func (c *Client) SearchSubject(ctx context.Context, title string, year int) ([]Subject, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "search", "Title required", nil)
	}
	params := url.Values{}
	params.Set("q", title)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	var payload searchResponse
	if err := c.get(ctx, "/search/subjects", params, &payload, "search"); err != nil {
		return nil, err
	}
	return payload.Subjects, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any, op string) error {
	if err := c.cooldown.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return services.TransportError(stageName, op, latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := services.StatusError(stageName, op, resp.StatusCode, latency)
		c.cooldown.Observe(statusErr)
		return statusErr
	}
	c.cooldown.Observe(nil)
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, op, "Decode response", err)
	}
	return nil
}

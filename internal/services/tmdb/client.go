package tmdb

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

	"castsync/internal/config"
	"castsync/internal/ratelimit"
	"castsync/internal/services"
)

const stageName = "tmdb"

// Credit is one cast credit.
type Credit struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	OriginalName       string `json:"original_name"`
	Character          string `json:"character"`
	Order              int    `json:"order"`
	KnownForDepartment string `json:"known_for_department"`
}

type creditsResponse struct {
	ID   int64    `json:"id"`
	Cast []Credit `json:"cast"`
}

// Person is the subset of the person detail payload used for verification.
type Person struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	AlsoKnownAs []string `json:"also_known_as"`
	IMDbID      string   `json:"imdb_id"`
}

// Names returns the primary and alternate names, primary first.
func (p *Person) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.AlsoKnownAs)+1)
	if name := strings.TrimSpace(p.Name); name != "" {
		out = append(out, name)
	}
	for _, aka := range p.AlsoKnownAs {
		if aka = strings.TrimSpace(aka); aka != "" {
			out = append(out, aka)
		}
	}
	return out
}

type findResponse struct {
	PersonResults []Person `json:"person_results"`
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient services.HTTPDoer
	cooldown   *ratelimit.Cooldown
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

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "TMDB api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "TMDB base url required", nil)
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [tmdb] section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg.TMDB.TimeoutSeconds > 0 {
		timeout := time.Duration(cfg.TMDB.TimeoutSeconds) * time.Second
		opts = append([]Option{WithHTTPClient(&http.Client{Timeout: timeout})}, opts...)
	}
	return New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language, opts...)
}

// GetCredits returns the cast of a movie or series, sorted as TMDB orders it.
// kind is "movie" or "tv".
func (c *Client) GetCredits(ctx context.Context, kind string, id int64) ([]Credit, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "movie" && kind != "tv" {
		return nil, services.Wrap(services.ErrValidation, stageName, "credits", fmt.Sprintf("Unsupported media kind %q", kind), nil)
	}
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "credits", "TMDB id required", nil)
	}
	var payload creditsResponse
	path := fmt.Sprintf("/%s/%d/credits", kind, id)
	if err := c.get(ctx, path, nil, &payload, "credits"); err != nil {
		return nil, err
	}
	return payload.Cast, nil
}

// GetPersonDetails returns a person with alternate names and the IMDb id.
// A missing person is nil, nil.
func (c *Client) GetPersonDetails(ctx context.Context, id int64) (*Person, error) {
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "person", "TMDB person id required", nil)
	}
	var person Person
	if err := c.get(ctx, "/person/"+strconv.FormatInt(id, 10), nil, &person, "person"); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &person, nil
}

// FindPersonByExternalID resolves a person by IMDb id. When verification names
// are supplied, a candidate is accepted only if one of its names matches one of
// them. A miss (no result or no verified result) is nil, nil.
func (c *Client) FindPersonByExternalID(ctx context.Context, bridgeID string, names []string) (*Person, error) {
	bridgeID = strings.TrimSpace(bridgeID)
	if bridgeID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "find", "Bridge id required", nil)
	}
	params := url.Values{}
	params.Set("external_source", "imdb_id")
	var payload findResponse
	if err := c.get(ctx, "/find/"+url.PathEscape(bridgeID), params, &payload, "find"); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	for i := range payload.PersonResults {
		candidate := payload.PersonResults[i]
		candidate.IMDbID = bridgeID
		if len(names) == 0 || namesAgree(candidate.Names(), names) {
			return &candidate, nil
		}
		// /find returns no alternate names; fetch them before rejecting.
		detail, err := c.GetPersonDetails(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if detail != nil && namesAgree(detail.Names(), names) {
			if detail.IMDbID == "" {
				detail.IMDbID = bridgeID
			}
			return detail, nil
		}
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any, op string) error {
	if err := c.cooldown.Wait(ctx); err != nil {
		return err
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
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
		return services.Wrap(services.ErrExternalTool, stageName, op, "Decode tmdb response", err)
	}
	return nil
}

// Package pipedrive provides a client for the Pipedrive REST API (v1).
package pipedrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/deal-briefing/internal/resilience"
)

const (
	defaultBaseURL = "https://api.pipedrive.com/v1"

	// pageSize is the largest page Pipedrive accepts on list endpoints.
	pageSize = 100
)

// ErrUnauthorized is returned when Pipedrive rejects the API token.
var ErrUnauthorized = eris.New("pipedrive: unauthorized")

// Client defines the Pipedrive operations used by the briefing pipeline.
type Client interface {
	// CurrentUser returns the user that owns the API token.
	CurrentUser(ctx context.Context) (*User, error)
	// ListOpenDeals returns up to limit open deals owned by userID, most
	// recently updated first.
	ListOpenDeals(ctx context.Context, userID int64, limit int) ([]Deal, error)
	// ListStages returns every pipeline stage.
	ListStages(ctx context.Context) ([]Stage, error)
	// DealPersons returns the persons associated with a deal.
	DealPersons(ctx context.Context, dealID int64) ([]Person, error)
	// DealActivities returns up to limit activities for a deal.
	DealActivities(ctx context.Context, dealID int64, limit int) ([]Activity, error)
}

// Option configures the Pipedrive client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second request budget. A burst equal to the
// integer portion of rps is allowed.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiToken string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// NewClient creates a Pipedrive client authenticated with an API token.
func NewClient(apiToken string, opts ...Option) Client {
	c := &httpClient{
		apiToken: apiToken,
		baseURL:  defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("pipedrive", "get")
	}
	return c
}

// envelope is the common Pipedrive v1 response wrapper.
type envelope[T any] struct {
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	Data           T              `json:"data"`
	AdditionalData additionalData `json:"additional_data"`
}

type additionalData struct {
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Start                 int  `json:"start"`
	Limit                 int  `json:"limit"`
	MoreItemsInCollection bool `json:"more_items_in_collection"`
	NextStart             int  `json:"next_start"`
}

func (c *httpClient) CurrentUser(ctx context.Context) (*User, error) {
	var env envelope[*User]
	if err := c.get(ctx, "/users/me", nil, &env); err != nil {
		return nil, eris.Wrap(err, "pipedrive: current user")
	}
	if env.Data == nil {
		return nil, eris.New("pipedrive: current user: empty response")
	}
	return env.Data, nil
}

func (c *httpClient) ListOpenDeals(ctx context.Context, userID int64, limit int) ([]Deal, error) {
	if limit <= 0 {
		return nil, nil
	}

	var deals []Deal
	start := 0
	for len(deals) < limit {
		q := url.Values{}
		q.Set("status", "open")
		q.Set("sort", "update_time DESC")
		q.Set("start", strconv.Itoa(start))
		q.Set("limit", strconv.Itoa(min(pageSize, limit-len(deals))))
		if userID > 0 {
			q.Set("user_id", strconv.FormatInt(userID, 10))
		}

		var env envelope[[]Deal]
		if err := c.get(ctx, "/deals", q, &env); err != nil {
			return nil, eris.Wrap(err, "pipedrive: list open deals")
		}
		deals = append(deals, env.Data...)

		p := env.AdditionalData.Pagination
		if !p.MoreItemsInCollection || len(env.Data) == 0 {
			break
		}
		start = p.NextStart
	}

	if len(deals) > limit {
		deals = deals[:limit]
	}
	return deals, nil
}

func (c *httpClient) ListStages(ctx context.Context) ([]Stage, error) {
	var env envelope[[]Stage]
	if err := c.get(ctx, "/stages", nil, &env); err != nil {
		return nil, eris.Wrap(err, "pipedrive: list stages")
	}
	return env.Data, nil
}

func (c *httpClient) DealPersons(ctx context.Context, dealID int64) ([]Person, error) {
	var env envelope[[]Person]
	path := fmt.Sprintf("/deals/%d/persons", dealID)
	if err := c.get(ctx, path, nil, &env); err != nil {
		return nil, eris.Wrapf(err, "pipedrive: deal %d persons", dealID)
	}
	return env.Data, nil
}

func (c *httpClient) DealActivities(ctx context.Context, dealID int64, limit int) ([]Activity, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var env envelope[[]Activity]
	path := fmt.Sprintf("/deals/%d/activities", dealID)
	if err := c.get(ctx, path, q, &env); err != nil {
		return nil, eris.Wrapf(err, "pipedrive: deal %d activities", dealID)
	}
	if limit > 0 && len(env.Data) > limit {
		return env.Data[:limit], nil
	}
	return env.Data, nil
}

// get performs a GET against path, retrying transient failures, and decodes
// the JSON body into out.
func (c *httpClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiToken)
	reqURL := c.baseURL + path + "?" + query.Encode()

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, reqURL)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, eris.Wrapf(ErrUnauthorized, "status %d", resp.StatusCode)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

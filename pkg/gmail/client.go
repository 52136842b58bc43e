// Package gmail provides a read-only Gmail client that searches message
// metadata for a correspondent.
package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/deal-briefing/internal/resilience"
)

// dateLayout is the format of Gmail's after: search operator.
const dateLayout = "2006/01/02"

// ErrUnauthorized is returned when Google rejects the stored token.
var ErrUnauthorized = eris.New("gmail: unauthorized")

// Message is the metadata of one mail message.
type Message struct {
	ID      string
	From    string
	To      string
	Subject string
	Date    string
	Snippet string
}

// Profile identifies the authenticated mailbox.
type Profile struct {
	EmailAddress  string
	MessagesTotal int64
}

// Client defines the Gmail operations used by the briefing pipeline.
type Client interface {
	// Profile returns the authenticated mailbox profile.
	Profile(ctx context.Context) (*Profile, error)
	// Search returns up to maxResults messages exchanged with email since the given
	// time, newest first.
	Search(ctx context.Context, email string, since time.Time, maxResults int) ([]Message, error)
}

// Option configures the Gmail client.
type Option func(*apiClient)

// WithRateLimit sets a per-second request budget shared by all calls.
func WithRateLimit(rps float64) Option {
	return func(c *apiClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *apiClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker guards every call with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *apiClient) {
		c.breaker = cb
	}
}

type apiClient struct {
	svc     *gapi.Service
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a Gmail client. clientOpts are passed to the Google API
// service (token source, HTTP client, endpoint).
func NewClient(ctx context.Context, clientOpts []option.ClientOption, opts ...Option) (Client, error) {
	svc, err := gapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: create service")
	}

	c := &apiClient{
		svc:   svc,
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.ShouldRetry == nil {
		c.retry.ShouldRetry = isRetryable
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("gmail", "call")
	}
	return c, nil
}

// TokenSourceFromFile loads a previously stored OAuth token and returns a
// refreshing token source for the read-only Gmail scope. It never starts an
// authorization flow.
func TokenSourceFromFile(ctx context.Context, clientID, clientSecret, path string) (oauth2.TokenSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gmail: open token file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, eris.Wrapf(err, "gmail: decode token file %s", path)
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gapi.GmailReadonlyScope},
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// BuildQuery returns the search expression for messages to or from email
// after since.
func BuildQuery(email string, since time.Time) string {
	email = strings.TrimSpace(email)
	return "(from:" + email + " OR to:" + email + ") after:" + since.UTC().Format(dateLayout)
}

func (c *apiClient) Profile(ctx context.Context) (*Profile, error) {
	p, err := call(ctx, c, func(ctx context.Context) (*gapi.Profile, error) {
		return c.svc.Users.GetProfile("me").Context(ctx).Do()
	})
	if err != nil {
		return nil, eris.Wrap(err, "gmail: get profile")
	}
	return &Profile{EmailAddress: p.EmailAddress, MessagesTotal: p.MessagesTotal}, nil
}

func (c *apiClient) Search(ctx context.Context, email string, since time.Time, maxResults int) ([]Message, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	q := BuildQuery(email, since)
	list, err := call(ctx, c, func(ctx context.Context) (*gapi.ListMessagesResponse, error) {
		return c.svc.Users.Messages.List("me").Q(q).MaxResults(int64(maxResults)).Context(ctx).Do()
	})
	if err != nil {
		return nil, eris.Wrapf(err, "gmail: list messages for %s", email)
	}

	refs := list.Messages
	if len(refs) > maxResults {
		refs = refs[:maxResults]
	}

	out := make([]Message, 0, len(refs))
	for _, ref := range refs {
		msg, err := call(ctx, c, func(ctx context.Context) (*gapi.Message, error) {
			return c.svc.Users.Messages.Get("me", ref.Id).
				Format("metadata").
				MetadataHeaders("From", "To", "Subject", "Date").
				Context(ctx).
				Do()
		})
		if err != nil {
			return nil, eris.Wrapf(err, "gmail: get message %s", ref.Id)
		}
		out = append(out, fromAPIMessage(msg))
	}
	return out, nil
}

// call runs fn behind the limiter, the circuit breaker and the retry policy.
func call[T any](ctx context.Context, c *apiClient, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) (T, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				var zero T
				return zero, eris.Wrap(err, "rate limit")
			}
		}
		v, err := fn(ctx)
		if err != nil {
			return v, classify(err)
		}
		return v, nil
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (T, error) {
		if c.breaker == nil {
			return attempt(ctx)
		}
		return resilience.ExecuteVal(ctx, c.breaker, attempt)
	})
}

// classify maps Google API errors onto ErrUnauthorized or a transient error.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return eris.Wrapf(ErrUnauthorized, "status %d: %s", gerr.Code, gerr.Message)
	case resilience.IsTransientHTTPStatus(gerr.Code):
		return resilience.NewTransientError(err, gerr.Code)
	}
	return err
}

// isRetryable retries transient failures but never an open circuit.
func isRetryable(err error) bool {
	if eris.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return resilience.IsTransient(err)
}

func fromAPIMessage(m *gapi.Message) Message {
	out := Message{ID: m.Id, Snippet: m.Snippet}
	if m.Payload == nil {
		return out
	}
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.From = h.Value
		case "to":
			out.To = h.Value
		case "subject":
			out.Subject = h.Value
		case "date":
			out.Date = h.Value
		}
	}
	return out
}

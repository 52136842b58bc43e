// Package notify delivers briefing results to webhook callbacks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-briefing/internal/config"
	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/internal/resilience"
)

// ErrNoDestination is returned when neither the event nor the config names a
// webhook URL.
var ErrNoDestination = eris.New("notify: no webhook url")

// Status is the outcome carried by an Event.
type Status string

const (
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Event is the payload posted to a callback URL when an async run ends.
type Event struct {
	RunID     string          `json:"run_id"`
	Status    Status          `json:"status"`
	Kind      string          `json:"kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Analysis  *model.Analysis `json:"analysis,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notifier posts Events to webhooks, retrying 5xx and 429 responses.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// New creates a Notifier. cfg.WebhookURL is the fallback destination for
// events sent without an explicit URL.
func New(cfg config.NotifyConfig, retry resilience.RetryConfig) *Notifier {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("notify", "webhook")
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		retry:  retry,
	}
}

// Send posts ev to url, or to the configured webhook when url is empty.
func (n *Notifier) Send(ctx context.Context, url string, ev Event) error {
	if url == "" {
		url = n.cfg.WebhookURL
	}
	if url == "" {
		return ErrNoDestination
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	err = resilience.Do(ctx, n.retry, func(ctx context.Context) error {
		return n.post(ctx, url, payload)
	})
	if err != nil {
		zap.L().Error("notify: callback failed",
			zap.String("run_id", ev.RunID),
			zap.String("url", url),
			zap.Error(err),
		)
		return err
	}

	zap.L().Info("notify: callback sent",
		zap.String("run_id", ev.RunID),
		zap.String("status", string(ev.Status)),
	)
	return nil
}

func (n *Notifier) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("notify: webhook returned status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode >= 400:
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

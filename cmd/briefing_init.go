package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sells-group/deal-briefing/internal/briefing"
	"github.com/sells-group/deal-briefing/internal/notify"
	"github.com/sells-group/deal-briefing/internal/resilience"
	"github.com/sells-group/deal-briefing/internal/store"
	anthropicpkg "github.com/sells-group/deal-briefing/pkg/anthropic"
	"github.com/sells-group/deal-briefing/pkg/gmail"
	"github.com/sells-group/deal-briefing/pkg/pipedrive"
)

// briefingEnv holds the wired service and its optional collaborators for
// the brief and serve commands.
type briefingEnv struct {
	Service  *briefing.Service
	Store    store.Store // nil when history is disabled
	Notifier *notify.Notifier
}

// Close releases resources held by the environment.
func (be *briefingEnv) Close() {
	if be.Store != nil {
		_ = be.Store.Close()
	}
}

// initBriefing validates config for mode and builds every client. Callers
// should defer env.Close().
func initBriefing(ctx context.Context, mode string) (*briefingEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)

	pipedriveClient := pipedrive.NewClient(cfg.Pipedrive.APIToken,
		pipedrive.WithBaseURL(cfg.Pipedrive.BaseURL),
		pipedrive.WithRateLimit(cfg.Pipedrive.RateLimitRPS),
		pipedrive.WithRetry(retry),
	)

	tokens, err := gmail.TokenSourceFromFile(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.TokenPath)
	if err != nil {
		return nil, eris.Wrap(err, "init gmail credentials")
	}
	breaker := resilience.NewCircuitBreaker(resilience.FromCircuitConfig(cfg.Google.BreakerThreshold, cfg.Google.BreakerResetSecs))
	gmailClient, err := gmail.NewClient(ctx,
		[]option.ClientOption{option.WithTokenSource(tokens)},
		gmail.WithRateLimit(cfg.Google.RateLimitRPS),
		gmail.WithRetry(retry),
		gmail.WithCircuitBreaker(breaker),
	)
	if err != nil {
		return nil, eris.Wrap(err, "init gmail client")
	}

	// The prioritization call is never retried.
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.WithMaxRetries(0))

	prompt, err := briefing.LoadPrompt(cfg.Anthropic.PromptPath)
	if err != nil {
		return nil, err
	}
	engine := briefing.NewEngine(anthropicClient, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, prompt)

	svc := briefing.NewService(
		briefing.NewPipedriveSource(pipedriveClient),
		briefing.NewGmailMailbox(gmailClient),
		engine,
		briefing.Options{
			Concurrency:   cfg.Briefing.Concurrency,
			MaxContacts:   cfg.Briefing.MaxContacts,
			ActivityLimit: cfg.Briefing.ActivityLimit,
		},
	)

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("briefing environment ready",
		zap.String("model", cfg.Anthropic.Model),
		zap.Int("concurrency", cfg.Briefing.Concurrency),
		zap.Bool("history", st != nil),
	)

	return &briefingEnv{
		Service:  svc,
		Store:    st,
		Notifier: notify.New(cfg.Notify, retry),
	}, nil
}

// initStore opens the configured run history backend. It returns a nil
// Store when history is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if eris.Is(err, store.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// runTimeout is the per-run deadline, zero when unbounded.
func runTimeout() time.Duration {
	return time.Duration(cfg.Briefing.RunTimeoutSecs) * time.Second
}

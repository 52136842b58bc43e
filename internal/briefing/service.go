package briefing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deal-briefing/internal/metrics"
	"github.com/sells-group/deal-briefing/internal/model"
)

// Request holds the caller-supplied bounds for one run.
type Request struct {
	Limit     int  `json:"limit"`
	EmailDays int  `json:"email_days"`
	MaxEmails int  `json:"max_emails"`
	Verbose   bool `json:"verbose,omitempty"`
}

// Validate checks the request bounds.
func (r Request) Validate() error {
	switch {
	case r.Limit < 1:
		return eris.Errorf("limit must be >= 1, got %d", r.Limit)
	case r.EmailDays < 0:
		return eris.Errorf("email_days must be >= 0, got %d", r.EmailDays)
	case r.MaxEmails < 0:
		return eris.Errorf("max_emails must be >= 0, got %d", r.MaxEmails)
	}
	return nil
}

// Options configures a Service.
type Options struct {
	Concurrency   int
	MaxContacts   int
	ActivityLimit int
}

// Service runs briefings.
type Service struct {
	source   DealSource
	mailbox  Mailbox
	engine   Prioritizer
	opts     Options
	now      func() time.Time
	newRunID func() string
}

// NewService wires the pipeline. All collaborators are required.
func NewService(source DealSource, mailbox Mailbox, engine Prioritizer, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Service{
		source:   source,
		mailbox:  mailbox,
		engine:   engine,
		opts:     opts,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// Run produces a prioritized briefing of the owner's open deals. Errors are
// always *Failure. Zero open deals is a valid empty result and makes no
// model call.
func (s *Service) Run(ctx context.Context, req Request) (analysis *model.Analysis, err error) {
	start := s.now()
	runID := s.newRunID()
	log := zap.L().With(zap.String("run_id", runID))

	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
			log.Error("briefing failed", zap.Error(err))
		}
		metrics.ObserveRun(time.Since(start), outcome)
	}()

	if err := req.Validate(); err != nil {
		return nil, newFailure(KindInvalidRequest, "", err)
	}

	owner, err := s.source.CurrentUser(ctx)
	if err != nil {
		return nil, newFailure(KindCredential, "pipedrive", err)
	}
	if err := s.mailbox.Validate(ctx); err != nil {
		return nil, newFailure(KindCredential, "gmail", err)
	}

	deals, err := s.source.ListOpenDeals(ctx, owner.ID, req.Limit)
	if err != nil {
		return nil, newFailure(KindUpstream, "pipedrive", err)
	}

	analysis = &model.Analysis{
		RunID:         runID,
		GeneratedAt:   start.UTC(),
		DealsAnalyzed: len(deals),
		CRMDomain:     owner.Domain,
		Analysis:      model.PriorityResult{Deals: []model.DealPriority{}},
	}
	log = log.With(zap.Int64("owner_id", owner.ID), zap.Int("deals", len(deals)))

	if len(deals) == 0 {
		log.Info("no open deals")
		return analysis, nil
	}

	stages, err := s.source.StageNames(ctx)
	if err != nil {
		log.Warn("stage names unavailable", zap.Error(err))
		analysis.Warnings = append(analysis.Warnings, "stage names unavailable: "+err.Error())
		stages = map[int64]string{}
	}

	enricher := NewEnricher(s.source, s.mailbox, EnrichOptions{
		EmailDays:     req.EmailDays,
		MaxEmails:     req.MaxEmails,
		MaxContacts:   s.opts.MaxContacts,
		ActivityLimit: s.opts.ActivityLimit,
	})
	enricher.now = s.now
	contexts, diags := enricher.EnrichAll(ctx, deals, stages, s.opts.Concurrency)
	log.Info("deals enriched", zap.Int("diagnostics", len(diags)))

	p, err := s.engine.Prioritize(ctx, contexts)
	if err != nil {
		if _, ok := KindOf(err); ok {
			return nil, err
		}
		return nil, newFailure(KindModelCall, "anthropic", err)
	}

	titles := make(map[int64]string, len(deals))
	analysis.Deals = make([]model.DealSummary, len(deals))
	for i, d := range deals {
		titles[d.ID] = d.Title
		analysis.Deals[i] = model.DealSummary{
			ID:            d.ID,
			Title:         d.Title,
			Value:         d.Value,
			Currency:      d.Currency,
			Stage:         stages[d.StageID],
			StalenessDays: d.StalenessDays(start),
		}
	}

	ranked := p.Result.Deals
	for i := range ranked {
		if ranked[i].DealTitle == "" {
			ranked[i].DealTitle = titles[ranked[i].DealID]
		}
	}
	analysis.Analysis = model.PriorityResult{Deals: ranked}
	analysis.Warnings = append(analysis.Warnings, p.Warnings...)
	usage := p.Usage
	analysis.Usage = &usage
	if req.Verbose {
		analysis.Diagnostics = diags
	}

	log.Info("briefing complete",
		zap.Int("ranked", len(ranked)),
		zap.Int("warnings", len(analysis.Warnings)),
		zap.Float64("estimated_cost_usd", usage.EstimatedCostUSD),
	)
	return analysis, nil
}

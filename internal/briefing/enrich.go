package briefing

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deal-briefing/internal/metrics"
	"github.com/sells-group/deal-briefing/internal/model"
)

// DefaultConcurrency is the enrichment worker pool size.
const DefaultConcurrency = 5

// EnrichOptions bounds the data gathered per deal.
type EnrichOptions struct {
	EmailDays     int
	MaxEmails     int
	MaxContacts   int
	ActivityLimit int
}

// Enricher turns deals into DealContexts by fanning out to the CRM and
// the mailbox.
type Enricher struct {
	source  DealSource
	mailbox Mailbox
	opts    EnrichOptions
	now     func() time.Time
}

// NewEnricher creates an Enricher. Zero MaxContacts and ActivityLimit take
// their defaults.
func NewEnricher(source DealSource, mailbox Mailbox, opts EnrichOptions) *Enricher {
	if opts.MaxContacts <= 0 {
		opts.MaxContacts = DefaultMaxContacts
	}
	if opts.ActivityLimit <= 0 {
		opts.ActivityLimit = DefaultActivityLimit
	}
	return &Enricher{source: source, mailbox: mailbox, opts: opts, now: time.Now}
}

// EnrichAll enriches every deal with a fixed pool of concurrencyLimit
// workers. contexts[i] always describes deals[i]. It returns once every deal
// is done; failures inside a deal are reported as diagnostics, never as an
// error.
func (e *Enricher) EnrichAll(ctx context.Context, deals []model.Deal, stages map[int64]string, concurrencyLimit int) ([]model.DealContext, []model.Diagnostic) {
	if concurrencyLimit <= 0 {
		concurrencyLimit = DefaultConcurrency
	}
	workers := min(concurrencyLimit, len(deals))

	contexts := make([]model.DealContext, len(deals))
	perDeal := make([][]model.Diagnostic, len(deals))

	var cursor atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(deals) {
					return nil
				}
				contexts[i], perDeal[i] = e.enrichDeal(ctx, deals[i], stages)
			}
		})
	}
	_ = g.Wait()

	var diags []model.Diagnostic
	for _, d := range perDeal {
		diags = append(diags, d...)
	}
	return contexts, diags
}

// enrichDeal gathers contacts and activities concurrently, then each
// contact's communications concurrently, and builds the context.
func (e *Enricher) enrichDeal(ctx context.Context, deal model.Deal, stages map[int64]string) (dc model.DealContext, diags []model.Diagnostic) {
	done := metrics.EnrichmentStarted()
	defer done()

	now := e.now()
	log := zap.L().With(zap.Int64("deal_id", deal.ID))

	degrade := func(err error) {
		log.Error("deal enrichment aborted", zap.Error(err))
		metrics.ObserveEnrichmentFailure(StageEnrichment)
		dc = HeaderOnlyContext(deal, stages, now)
		diags = append(diags, model.Diagnostic{DealID: deal.ID, Stage: StageEnrichment, Error: err.Error()})
	}
	defer func() {
		if r := recover(); r != nil {
			degrade(panicError(r))
		}
	}()

	var contacts Outcome[[]model.Contact]
	var activities Outcome[[]model.Activity]

	var g errgroup.Group
	g.Go(func() (err error) {
		defer recoverTo(&err)
		contacts = ResolveContacts(ctx, e.source, deal.ID, e.opts.MaxContacts)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverTo(&err)
		activities = e.fetchActivities(ctx, deal.ID)
		return nil
	})
	if err := g.Wait(); err != nil {
		degrade(err)
		return dc, diags
	}

	comms := make([]Outcome[[]model.CommunicationRecord], len(contacts.Value))
	var cg errgroup.Group
	for i, c := range contacts.Value {
		if !c.HasEmail() {
			continue
		}
		cg.Go(func() (err error) {
			defer recoverTo(&err)
			comms[i] = FetchCommunications(ctx, e.mailbox, c.Email, e.opts.EmailDays, e.opts.MaxEmails, now)
			return nil
		})
	}
	if err := cg.Wait(); err != nil {
		degrade(err)
		return dc, diags
	}

	record := func(d *model.Diagnostic) {
		if d == nil {
			return
		}
		log.Warn("enrichment degraded",
			zap.String("stage", d.Stage),
			zap.String("target", d.Target),
			zap.String("error", d.Error),
		)
		metrics.ObserveEnrichmentFailure(d.Stage)
		diags = append(diags, *d)
	}
	record(contacts.Diagnostic(deal.ID, StageContacts, ""))
	record(activities.Diagnostic(deal.ID, StageActivities, ""))

	var all []model.CommunicationRecord
	for i, o := range comms {
		record(o.Diagnostic(deal.ID, StageCommunications, contacts.Value[i].Email))
		all = append(all, o.Value...)
	}

	dc = BuildDealContext(deal, stages, contacts.Value, activities.Value, all, now)
	return dc, diags
}

func (e *Enricher) fetchActivities(ctx context.Context, dealID int64) Outcome[[]model.Activity] {
	acts, err := e.source.RecentActivities(ctx, dealID, e.opts.ActivityLimit)
	if err != nil {
		return Outcome[[]model.Activity]{
			Value: []model.Activity{},
			Err:   eris.Wrapf(err, "fetch activities for deal %d", dealID),
		}
	}
	if len(acts) > e.opts.ActivityLimit {
		acts = acts[:e.opts.ActivityLimit]
	}
	return Ok(acts)
}

func recoverTo(err *error) {
	if r := recover(); r != nil {
		*err = panicError(r)
	}
}

func panicError(r any) error {
	zap.L().Debug("recovered panic", zap.ByteString("stack", debug.Stack()))
	return eris.New(fmt.Sprintf("panic: %v", r))
}

package main

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/deal-briefing/internal/briefing"
	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/internal/notify"
	"github.com/sells-group/deal-briefing/internal/store"
)

type fakeRunner struct {
	mu       sync.Mutex
	analysis *model.Analysis
	err      error
	requests []briefing.Request
}

func (f *fakeRunner) Run(_ context.Context, req briefing.Request) (*model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakeRunner) calls() []briefing.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]briefing.Request(nil), f.requests...)
}

type memStore struct {
	mu   sync.Mutex
	runs map[string]*model.BriefingRun
}

func newMemStore() *memStore {
	return &memStore{runs: make(map[string]*model.BriefingRun)}
}

func (m *memStore) SaveRun(_ context.Context, run *model.BriefingRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *memStore) GetRun(_ context.Context, id string) (*model.BriefingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (m *memStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.BriefingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BriefingRun
	for _, r := range m.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

type recordingNotifier struct {
	mu     sync.Mutex
	urls   []string
	events []notify.Event
}

func (n *recordingNotifier) Send(_ context.Context, url string, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	n.events = append(n.events, ev)
	return nil
}

func sampleAnalysis() *model.Analysis {
	return &model.Analysis{
		RunID:         "run-42",
		DealsAnalyzed: 1,
		Analysis: model.PriorityResult{
			Deals: []model.DealPriority{
				{DealID: 101, DealTitle: "Acme Renewal", Rank: 1, Health: model.HealthAtRisk, Urgency: model.UrgencyImmediate},
			},
		},
	}
}

package briefing

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/deal-briefing/internal/model"
	"github.com/sells-group/deal-briefing/pkg/anthropic"
)

// fakeSource is a DealSource driven by plain fields and funcs so tests can
// inject latency and failures per deal.
type fakeSource struct {
	owner      *Owner
	ownerErr   error
	deals      []model.Deal
	dealsErr   error
	stages     map[int64]string
	stagesErr  error
	persons    func(ctx context.Context, dealID int64) ([]model.Person, error)
	activities func(ctx context.Context, dealID int64, limit int) ([]model.Activity, error)
}

func (f *fakeSource) CurrentUser(context.Context) (*Owner, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	if f.owner == nil {
		return &Owner{ID: 7, Name: "Dana", Domain: "sells"}, nil
	}
	return f.owner, nil
}

func (f *fakeSource) ListOpenDeals(_ context.Context, _ int64, limit int) ([]model.Deal, error) {
	if f.dealsErr != nil {
		return nil, f.dealsErr
	}
	if len(f.deals) > limit {
		return f.deals[:limit], nil
	}
	return f.deals, nil
}

func (f *fakeSource) StageNames(context.Context) (map[int64]string, error) {
	if f.stagesErr != nil {
		return nil, f.stagesErr
	}
	return f.stages, nil
}

func (f *fakeSource) DealPersons(ctx context.Context, dealID int64) ([]model.Person, error) {
	if f.persons == nil {
		return nil, nil
	}
	return f.persons(ctx, dealID)
}

func (f *fakeSource) RecentActivities(ctx context.Context, dealID int64, limit int) ([]model.Activity, error) {
	if f.activities == nil {
		return nil, nil
	}
	return f.activities(ctx, dealID, limit)
}

// fakeMailbox is a Mailbox driven by a search func.
type fakeMailbox struct {
	validateErr error
	search      func(ctx context.Context, email string, since time.Time, maxResults int) ([]model.CommunicationRecord, error)
}

func (f *fakeMailbox) Validate(context.Context) error {
	return f.validateErr
}

func (f *fakeMailbox) Search(ctx context.Context, email string, since time.Time, maxResults int) ([]model.CommunicationRecord, error) {
	if f.search == nil {
		return nil, nil
	}
	return f.search(ctx, email, since, maxResults)
}

// MockAnthropicClient mocks anthropic.Client.
type MockAnthropicClient struct {
	mock.Mock
}

func (m *MockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// MockPrioritizer mocks Prioritizer.
type MockPrioritizer struct {
	mock.Mock
}

func (m *MockPrioritizer) Prioritize(ctx context.Context, contexts []model.DealContext) (*Prioritization, error) {
	args := m.Called(ctx, contexts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Prioritization), args.Error(1)
}

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// toolResponse builds a model response that calls the priority tool.
func toolResponse(input string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		ID:         "msg_01",
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "tool_use",
		Content: []anthropic.ContentBlock{
			{Type: "tool_use", Name: PriorityToolName, Input: []byte(input)},
		},
		Usage: anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 200},
	}
}

// priority builds a valid entry.
func priority(dealID int64, rank int) model.DealPriority {
	return model.DealPriority{
		DealID:             dealID,
		Rank:               rank,
		Health:             model.HealthWarm,
		Urgency:            model.UrgencyThisWeek,
		RecommendedActions: []string{"follow up"},
		Reasoning:          []string{"recent reply"},
		Signals:            []string{},
		History:            []model.HistoryEntry{},
	}
}

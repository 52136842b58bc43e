package briefing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-briefing/pkg/gmail"
	"github.com/sells-group/deal-briefing/pkg/pipedrive"
)

type mockPipedrive struct {
	mock.Mock
}

func (m *mockPipedrive) CurrentUser(ctx context.Context) (*pipedrive.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipedrive.User), args.Error(1)
}

func (m *mockPipedrive) ListOpenDeals(ctx context.Context, userID int64, limit int) ([]pipedrive.Deal, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]pipedrive.Deal), args.Error(1)
}

func (m *mockPipedrive) ListStages(ctx context.Context) ([]pipedrive.Stage, error) {
	args := m.Called(ctx)
	return args.Get(0).([]pipedrive.Stage), args.Error(1)
}

func (m *mockPipedrive) DealPersons(ctx context.Context, dealID int64) ([]pipedrive.Person, error) {
	args := m.Called(ctx, dealID)
	return args.Get(0).([]pipedrive.Person), args.Error(1)
}

func (m *mockPipedrive) DealActivities(ctx context.Context, dealID int64, limit int) ([]pipedrive.Activity, error) {
	args := m.Called(ctx, dealID, limit)
	return args.Get(0).([]pipedrive.Activity), args.Error(1)
}

type mockGmail struct {
	mock.Mock
}

func (m *mockGmail) Profile(ctx context.Context) (*gmail.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gmail.Profile), args.Error(1)
}

func (m *mockGmail) Search(ctx context.Context, email string, since time.Time, maxResults int) ([]gmail.Message, error) {
	args := m.Called(ctx, email, since, maxResults)
	return args.Get(0).([]gmail.Message), args.Error(1)
}

func TestPipedriveSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pd := new(mockPipedrive)
	pd.On("CurrentUser", ctx).Return(&pipedrive.User{ID: 7, Name: "Dana", CompanyDomain: "sells"}, nil)
	pd.On("ListOpenDeals", ctx, int64(7), 3).Return([]pipedrive.Deal{
		{ID: 1, Title: "A", StageID: 3, UpdateTime: "2026-10-01 09:30:00"},
	}, nil)
	pd.On("ListStages", ctx).Return([]pipedrive.Stage{{ID: 3, Name: "Proposal Sent"}}, nil)
	pd.On("DealPersons", ctx, int64(1)).Return([]pipedrive.Person{
		{ID: 10, Name: "Jane", Emails: []pipedrive.Email{{Value: "jane@acme.com", Primary: true}}},
	}, nil)
	pd.On("DealActivities", ctx, int64(1), 10).Return([]pipedrive.Activity{{ID: 5, Subject: "Call", Done: true}}, nil)

	src := NewPipedriveSource(pd)

	owner, err := src.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Owner{ID: 7, Name: "Dana", Domain: "sells"}, owner)

	deals, err := src.ListOpenDeals(ctx, 7, 3)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	require.NotNil(t, deals[0].UpdatedAt)
	assert.Equal(t, time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC), *deals[0].UpdatedAt)

	stages, err := src.StageNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{3: "Proposal Sent"}, stages)

	persons, err := src.DealPersons(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", ResolveEmail(persons[0].Emails))

	acts, err := src.RecentActivities(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, acts[0].Done)

	pd.AssertExpectations(t)
}

func TestPipedriveSource_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pd := new(mockPipedrive)
	pd.On("CurrentUser", ctx).Return(nil, pipedrive.ErrUnauthorized)
	pd.On("ListStages", ctx).Return([]pipedrive.Stage(nil), errors.New("timeout"))

	src := NewPipedriveSource(pd)
	_, err := src.CurrentUser(ctx)
	require.ErrorIs(t, err, pipedrive.ErrUnauthorized)
	_, err = src.StageNames(ctx)
	require.Error(t, err)
}

func TestGmailMailbox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	since := testNow.AddDate(0, 0, -90)
	gm := new(mockGmail)
	gm.On("Profile", ctx).Return(&gmail.Profile{EmailAddress: "dana@sells.com"}, nil)
	gm.On("Search", ctx, "jane@acme.com", since, 10).Return([]gmail.Message{
		{ID: "m1", From: "jane@acme.com", To: "dana@sells.com", Subject: "Re: proposal", Date: "Mon, 12 Oct 2026", Snippet: "sounds good"},
	}, nil)

	mb := NewGmailMailbox(gm)
	require.NoError(t, mb.Validate(ctx))

	recs, err := mb.Search(ctx, "jane@acme.com", since, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sounds good", recs[0].Preview)
	assert.Equal(t, "Re: proposal", recs[0].Subject)
}

func TestGmailMailbox_ValidateFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	empty := new(mockGmail)
	empty.On("Profile", ctx).Return(&gmail.Profile{}, nil)
	require.Error(t, NewGmailMailbox(empty).Validate(ctx))

	denied := new(mockGmail)
	denied.On("Profile", ctx).Return(nil, gmail.ErrUnauthorized)
	require.ErrorIs(t, NewGmailMailbox(denied).Validate(ctx), gmail.ErrUnauthorized)
}

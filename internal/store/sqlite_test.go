package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deal-briefing/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleRun(id string, offsetMinutes int) *model.BriefingRun {
	a := &model.Analysis{
		RunID:         id,
		GeneratedAt:   testNow,
		DealsAnalyzed: 2,
		Analysis: model.PriorityResult{Deals: []model.DealPriority{{
			DealID: 1, Rank: 1, Health: model.HealthHot, Urgency: model.UrgencyImmediate,
			RecommendedActions: []string{"call"}, Reasoning: []string{"reply"},
		}}},
	}
	run := NewRun(model.BriefingRequest{Limit: 2, EmailDays: 90, MaxEmails: 10}, a, nil, testNow)
	run.CreatedAt = testNow.Add(time.Duration(offsetMinutes) * time.Minute)
	return run
}

func TestSQLite_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", 0)
	require.NoError(t, st.SaveRun(ctx, run))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 2, got.DealsAnalyzed)
	assert.Equal(t, run.Request, got.Request)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Analysis)
	require.Len(t, got.Analysis.Analysis.Deals, 1)
	assert.Equal(t, model.HealthHot, got.Analysis.Analysis.Deals[0].Health)
}

func TestSQLite_SaveReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", 0)
	require.NoError(t, st.SaveRun(ctx, run))

	run.Status = model.RunStatusFailed
	run.Error = "model_call (anthropic): overloaded"
	run.Analysis = nil
	require.NoError(t, st.SaveRun(ctx, run))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "model_call (anthropic): overloaded", got.Error)
	assert.Nil(t, got.Analysis)
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_SaveRequiresID(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.Error(t, st.SaveRun(context.Background(), &model.BriefingRun{}))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, st.SaveRun(ctx, sampleRun(fmt.Sprintf("run-%d", i), i)))
	}
	failed := sampleRun("run-failed", 10)
	failed.Status = model.RunStatusFailed
	require.NoError(t, st.SaveRun(ctx, failed))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "run-failed", all[0].ID)
	assert.Equal(t, "run-0", all[4].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "run-3", page[0].ID)

	onlyFailed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "run-failed", onlyFailed[0].ID)
}

// Package store persists briefing runs for the history surfaces.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/deal-briefing/internal/config"
	"github.com/sells-group/deal-briefing/internal/model"
)

var (
	// ErrNotFound is returned when a run id is unknown.
	ErrNotFound = eris.New("store: run not found")
	// ErrDisabled is returned by Open when the configured driver is none.
	ErrDisabled = eris.New("store: disabled")
)

const defaultListLimit = 50

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for briefing runs.
type Store interface {
	// SaveRun inserts run, or replaces the stored run with the same id.
	SaveRun(ctx context.Context, run *model.BriefingRun) error
	GetRun(ctx context.Context, id string) (*model.BriefingRun, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.BriefingRun, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the backend named by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, ErrDisabled
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// NewRun builds the record of a finished run. A missing analysis run id is
// replaced by a fresh uuid.
func NewRun(req model.BriefingRequest, a *model.Analysis, runErr error, now time.Time) *model.BriefingRun {
	run := &model.BriefingRun{
		Status:    model.RunStatusComplete,
		Request:   req,
		Analysis:  a,
		CreatedAt: now.UTC(),
	}
	if a != nil {
		run.ID = a.RunID
		run.DealsAnalyzed = a.DealsAnalyzed
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}
	return run
}

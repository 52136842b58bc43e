package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/deal-briefing/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS briefing_runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	request        TEXT NOT NULL,
	deals_analyzed INTEGER NOT NULL DEFAULT 0,
	analysis       TEXT,
	error          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_briefing_runs_status ON briefing_runs(status);
CREATE INDEX IF NOT EXISTS idx_briefing_runs_created_at ON briefing_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.BriefingRun) error {
	reqJSON, analysisJSON, err := encodeRun(run)
	if err != nil {
		return err
	}

	var analysis sql.NullString
	if analysisJSON != nil {
		analysis = sql.NullString{String: string(analysisJSON), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO briefing_runs (id, status, request, deals_analyzed, analysis, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			request = excluded.request,
			deals_analyzed = excluded.deals_analyzed,
			analysis = excluded.analysis,
			error = excluded.error`,
		run.ID, string(run.Status), string(reqJSON), run.DealsAnalyzed, analysis, run.Error, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.BriefingRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, request, deals_analyzed, analysis, error, created_at FROM briefing_runs WHERE id = ?`,
		id,
	)
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", id)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.BriefingRun, error) {
	query := `SELECT id, status, request, deals_analyzed, analysis, error, created_at FROM briefing_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	runs := []model.BriefingRun{}
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.BriefingRun, error) {
	var (
		r            model.BriefingRun
		status       string
		reqJSON      string
		analysisJSON sql.NullString
	)
	err := row.Scan(&r.ID, &status, &reqJSON, &r.DealsAnalyzed, &analysisJSON, &r.Error, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)

	var analysis []byte
	if analysisJSON.Valid {
		analysis = []byte(analysisJSON.String)
	}
	if err := decodeRun(&r, []byte(reqJSON), analysis); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode run")
	}
	return &r, nil
}

func encodeRun(run *model.BriefingRun) (reqJSON, analysisJSON []byte, err error) {
	if run == nil || run.ID == "" {
		return nil, nil, eris.New("store: run id is required")
	}
	reqJSON, err = json.Marshal(run.Request)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal request")
	}
	if run.Analysis != nil {
		analysisJSON, err = json.Marshal(run.Analysis)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal analysis")
		}
	}
	return reqJSON, analysisJSON, nil
}

func decodeRun(r *model.BriefingRun, reqJSON, analysisJSON []byte) error {
	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return eris.Wrap(err, "unmarshal request")
	}
	if len(analysisJSON) > 0 {
		r.Analysis = &model.Analysis{}
		if err := json.Unmarshal(analysisJSON, r.Analysis); err != nil {
			return eris.Wrap(err, "unmarshal analysis")
		}
	}
	return nil
}

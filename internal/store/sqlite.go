package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/reserve-cli/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	strategy   TEXT NOT NULL,
	args       TEXT NOT NULL DEFAULT '{}',
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	error      TEXT,
	selection  BLOB,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_units (
	run_id TEXT NOT NULL REFERENCES runs(id),
	pu     INTEGER NOT NULL,
	PRIMARY KEY (run_id, pu)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, strategy model.Strategy, args map[string]string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal args")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, args, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(strategy), string(argsJSON), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Strategy:  strategy,
		Args:      args,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult, selection []byte) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET result = ?, selection = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), selection, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_units WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear run units %s", runID)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_units (run_id, pu) VALUES (?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare run units")
	}
	defer stmt.Close() //nolint:errcheck
	for _, pu := range result.Selected {
		if _, err := stmt.ExecContext(ctx, runID, pu); err != nil {
			return eris.Wrapf(err, "sqlite: insert run unit %d", pu)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run result")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errorText(runErr), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const sqliteRunColumns = `id, strategy, args, status, result, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewLookupError("run", runID, 0)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, string(filter.Strategy))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RunUnits(ctx context.Context, runID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pu FROM run_units WHERE run_id = ? ORDER BY pu`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: run units %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var units []int64
	for rows.Next() {
		var pu int64
		if err := rows.Scan(&pu); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run unit")
		}
		units = append(units, pu)
	}
	return units, eris.Wrap(rows.Err(), "sqlite: run units iterate")
}

func (s *SQLiteStore) Selection(ctx context.Context, runID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT selection FROM runs WHERE id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewLookupError("run", runID, 0)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: selection %s", runID)
	}
	return data, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return model.NewLookupError(entity, id, 0)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r                  model.Run
		strategy, status   string
		argsJSON           string
		resultJSON, errMsg sql.NullString
	)

	err := row.Scan(&r.ID, &strategy, &argsJSON, &status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Strategy = model.Strategy(strategy)
	r.Status = model.RunStatus(status)
	r.Error = errMsg.String

	if err := json.Unmarshal([]byte(argsJSON), &r.Args); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal args")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pci-audit/internal/model"
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
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	segment_source   TEXT NOT NULL,
	table_source     TEXT NOT NULL,
	lower_threshold  REAL NOT NULL,
	higher_threshold REAL NOT NULL,
	status           TEXT NOT NULL DEFAULT 'running',
	counts           TEXT,
	error            TEXT,
	started_at       TEXT NOT NULL,
	completed_at     TEXT
);

CREATE TABLE IF NOT EXISTS summary_rows (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	key            TEXT NOT NULL,
	street_name    TEXT NOT NULL DEFAULT '',
	begin_loc      TEXT NOT NULL DEFAULT '',
	end_loc        TEXT NOT NULL DEFAULT '',
	prev_date      TEXT,
	last_date      TEXT,
	prev_pci       REAL,
	last_pci       REAL,
	delta          REAL,
	classification TEXT NOT NULL,
	lat            REAL NOT NULL DEFAULT 0,
	lon            REAL NOT NULL DEFAULT 0,
	imagery_url    TEXT NOT NULL DEFAULT '',
	panorama_url   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_summary_rows_run_id ON summary_rows(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, segment_source, table_source, lower_threshold, higher_threshold, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SegmentSource, run.TableSource,
		run.LowerThreshold, run.HigherThreshold,
		string(run.Status), run.StartedAt.Format(time.RFC3339),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, counts model.PartitionCounts) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counts")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, counts = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(countsJSON),
		time.Now().UTC().Format(time.RFC3339), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), message,
		time.Now().UTC().Format(time.RFC3339), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, segment_source, table_source, lower_threshold, higher_threshold, status, counts, error, started_at, completed_at
		 FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, segment_source, table_source, lower_threshold, higher_threshold, status, counts, error, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) AddSummary(ctx context.Context, summaryRows []model.SummaryRow) error {
	if len(summaryRows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin summary tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO summary_rows
		 (id, run_id, key, street_name, begin_loc, end_loc, prev_date, last_date, prev_pci, last_pci, delta, classification, lat, lon, imagery_url, panorama_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare summary insert")
	}
	defer func() { _ = stmt.Close() }()

	for i := range summaryRows {
		r := &summaryRows[i]
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), r.RunID, r.Key, r.StreetName, r.BeginLoc, r.EndLoc,
			timeText(r.PrevDate), timeText(r.LastDate),
			r.PrevPCI, r.LastPCI, r.Delta, string(r.Classification),
			r.Lat, r.Lon, r.ImageryURL, r.PanoramaURL,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert summary row %s", r.Key)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit summary")
}

func (s *SQLiteStore) GetSummary(ctx context.Context, runID string) ([]model.SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, key, street_name, begin_loc, end_loc, prev_date, last_date, prev_pci, last_pci, delta, classification, lat, lon, imagery_url, panorama_url
		 FROM summary_rows WHERE run_id = ? ORDER BY key`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: summary for run %s", runID)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SummaryRow
	for rows.Next() {
		var r model.SummaryRow
		var prevDate, lastDate sql.NullString
		var prevPCI, lastPCI, delta sql.NullFloat64
		var class string
		if err := rows.Scan(
			&r.RunID, &r.Key, &r.StreetName, &r.BeginLoc, &r.EndLoc,
			&prevDate, &lastDate, &prevPCI, &lastPCI, &delta,
			&class, &r.Lat, &r.Lon, &r.ImageryURL, &r.PanoramaURL,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary row")
		}
		r.Classification = model.Classification(class)
		r.PrevDate = textTime(prevDate)
		r.LastDate = textTime(lastDate)
		r.PrevPCI = nullFloat(prevPCI)
		r.LastPCI = nullFloat(lastPCI)
		r.Delta = nullFloat(delta)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: scan summary rows")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var counts, errMsg, completedAt sql.NullString
	var status, startedAt string
	if err := row.Scan(
		&run.ID, &run.SegmentSource, &run.TableSource,
		&run.LowerThreshold, &run.HigherThreshold,
		&status, &counts, &errMsg, &startedAt, &completedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: run not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	run.Status = model.RunStatus(status)
	run.Error = errMsg.String

	if ts, err := time.Parse(time.RFC3339, startedAt); err == nil {
		run.StartedAt = ts
	}
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			run.CompletedAt = &ts
		}
	}
	if counts.Valid && counts.String != "" {
		var c model.PartitionCounts
		if err := json.Unmarshal([]byte(counts.String), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal counts")
		}
		run.Counts = &c
	}
	return &run, nil
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func timeText(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func textTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &ts
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pci-audit/internal/db"
	"github.com/sells-group/pci-audit/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; tests inject pgxmock here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	segment_source   TEXT NOT NULL,
	table_source     TEXT NOT NULL,
	lower_threshold  DOUBLE PRECISION NOT NULL,
	higher_threshold DOUBLE PRECISION NOT NULL,
	status           TEXT NOT NULL DEFAULT 'running',
	counts           JSONB,
	error            TEXT,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS summary_rows (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	key            TEXT NOT NULL,
	street_name    TEXT NOT NULL DEFAULT '',
	begin_loc      TEXT NOT NULL DEFAULT '',
	end_loc        TEXT NOT NULL DEFAULT '',
	prev_date      TIMESTAMPTZ,
	last_date      TIMESTAMPTZ,
	prev_pci       DOUBLE PRECISION,
	last_pci       DOUBLE PRECISION,
	delta          DOUBLE PRECISION,
	classification TEXT NOT NULL,
	lat            DOUBLE PRECISION NOT NULL DEFAULT 0,
	lon            DOUBLE PRECISION NOT NULL DEFAULT 0,
	imagery_url    TEXT NOT NULL DEFAULT '',
	panorama_url   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_summary_rows_run_id ON summary_rows(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, segment_source, table_source, lower_threshold, higher_threshold, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.SegmentSource, run.TableSource,
		run.LowerThreshold, run.HigherThreshold,
		string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, counts model.PartitionCounts) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counts")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, counts = $2, completed_at = now() WHERE id = $3`,
		string(model.RunStatusComplete), countsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, completed_at = now() WHERE id = $3`,
		string(model.RunStatusFailed), message, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, segment_source, table_source, lower_threshold, higher_threshold, status, counts, error, started_at, completed_at
		 FROM runs WHERE id = $1`, runID)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, segment_source, table_source, lower_threshold, higher_threshold, status, counts, error, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

var summaryColumns = []string{
	"id", "run_id", "key", "street_name", "begin_loc", "end_loc",
	"prev_date", "last_date", "prev_pci", "last_pci", "delta",
	"classification", "lat", "lon", "imagery_url", "panorama_url",
}

func (s *PostgresStore) AddSummary(ctx context.Context, summaryRows []model.SummaryRow) error {
	if len(summaryRows) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(summaryRows))
	for i := range summaryRows {
		r := &summaryRows[i]
		rows = append(rows, []any{
			uuid.New().String(), r.RunID, r.Key, r.StreetName, r.BeginLoc, r.EndLoc,
			r.PrevDate, r.LastDate, r.PrevPCI, r.LastPCI, r.Delta,
			string(r.Classification), r.Lat, r.Lon, r.ImageryURL, r.PanoramaURL,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "summary_rows", summaryColumns, rows)
	return eris.Wrap(err, "postgres: add summary")
}

func (s *PostgresStore) GetSummary(ctx context.Context, runID string) ([]model.SummaryRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, key, street_name, begin_loc, end_loc, prev_date, last_date, prev_pci, last_pci, delta, classification, lat, lon, imagery_url, panorama_url
		 FROM summary_rows WHERE run_id = $1 ORDER BY key`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: summary for run %s", runID)
	}
	defer rows.Close()

	var out []model.SummaryRow
	for rows.Next() {
		var r model.SummaryRow
		var class string
		if err := rows.Scan(
			&r.RunID, &r.Key, &r.StreetName, &r.BeginLoc, &r.EndLoc,
			&r.PrevDate, &r.LastDate, &r.PrevPCI, &r.LastPCI, &r.Delta,
			&class, &r.Lat, &r.Lon, &r.ImageryURL, &r.PanoramaURL,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary row")
		}
		r.Classification = model.Classification(class)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: scan summary rows")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var status string
	var counts []byte
	var errMsg *string
	if err := row.Scan(
		&run.ID, &run.SegmentSource, &run.TableSource,
		&run.LowerThreshold, &run.HigherThreshold,
		&status, &counts, &errMsg, &run.StartedAt, &run.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(err, "postgres: run not found")
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	run.Status = model.RunStatus(status)
	if errMsg != nil {
		run.Error = *errMsg
	}
	if len(counts) > 0 {
		var c model.PartitionCounts
		if err := json.Unmarshal(counts, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal counts")
		}
		run.Counts = &c
	}
	return &run, nil
}

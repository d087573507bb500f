package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pci-audit/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresCreateRun(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "a.shp", "b.csv", -10.0, 10.0,
			string(model.RunStatusRunning), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.Run{
		SegmentSource:   "a.shp",
		TableSource:     "b.csv",
		LowerThreshold:  -10,
		HigherThreshold: 10,
	}
	require.NoError(t, s.CreateRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteRun_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(model.RunStatusComplete), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", model.PartitionCounts{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	s, mock := newMockStore(t)

	started := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)
	errMsg := ""
	mock.ExpectQuery(`SELECT .* FROM runs WHERE id`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "segment_source", "table_source", "lower_threshold",
			"higher_threshold", "status", "counts", "error", "started_at", "completed_at",
		}).AddRow(
			"run-1", "a.shp", "b.csv", -10.0, 10.0,
			string(model.RunStatusComplete),
			[]byte(`{"below":2,"above":1,"combined":3,"unflagged":0,"missing_data":0,"unmatched":0,"total":3}`),
			&errMsg, started, &completed,
		))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Counts)
	assert.Equal(t, 2, run.Counts.Below)
	require.NotNil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddSummary_UsesCopy(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"summary_rows"}, summaryColumns).
		WillReturnResult(2)

	rows := []model.SummaryRow{
		{RunID: "run-1", Key: "100 - 1", Classification: model.ClassBelowLower},
		{RunID: "run-1", Key: "100 - 2", Classification: model.ClassAboveHigher},
	}
	require.NoError(t, s.AddSummary(context.Background(), rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddSummary_EmptyNoQuery(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.AddSummary(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

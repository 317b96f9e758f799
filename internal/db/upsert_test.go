package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "events",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	rows := [][]any{{1}}

	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, rows)
	assert.ErrorContains(t, err, "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"id"}}, rows)
	assert.ErrorContains(t, err, "no conflict keys specified")
}

func TestBulkUpsert_UpdateOnConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{
		{"a", int64(1)},
		{"b", int64(2)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_events"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_events"}, []string{"id", "count"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "events" \("id", "count"\) SELECT .* ON CONFLICT \("id"\) DO UPDATE SET "count" = EXCLUDED."count"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "events",
		Columns:      []string{"id", "count"},
		ConflictKeys: []string{"id"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_DoNothingWhenAllColumnsAreKeys(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_events"}, []string{"id"}).
		WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("id"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "events",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"a"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_SchemaQualifiedTempTableName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_analytics_events" \(LIKE "analytics"\."events"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_analytics_events"}, []string{"id"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "analytics"\."events"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "analytics.events",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"a"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"events"`, SanitizeTable("events"))
	assert.Equal(t, `"analytics"."events"`, SanitizeTable("analytics.events"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"a", "b"`, quoteAndJoin([]string{"a", "b"}))
}

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	stmts []string
	err   error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.stmts = append(r.stmts, sql)
	return pgconn.CommandTag{}, r.err
}

func TestMigrateRunsEmbeddedFiles(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, Migrate(context.Background(), db))
	require.NotEmpty(t, db.stmts)
	assert.Contains(t, db.stmts[0], "CREATE TABLE IF NOT EXISTS kv_entries")
}

func TestMigrateStopsOnError(t *testing.T) {
	db := &recordingExecer{err: errors.New("syntax error")}
	err := Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "001_kv.sql")
	assert.Len(t, db.stmts, 1)
}

package kv

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, found, err := m.Get(ctx, "recordings")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "recordings", "[]"))
	v, found, err := m.Get(ctx, "recordings")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", v)
}

func TestRedisGetMissingKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectGet("ps:recordings").RedisNil()

	_, found, err := NewRedis(db, "ps:", nil).Get(context.Background(), "recordings")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectSet("ps:safety_events", `[{"id":"evt_1"}]`, 0).SetVal("OK")
	mock.ExpectGet("ps:safety_events").SetVal(`[{"id":"evt_1"}]`)

	s := NewRedis(db, "ps:", nil)
	require.NoError(t, s.Set(context.Background(), "safety_events", `[{"id":"evt_1"}]`))
	v, found, err := s.Get(context.Background(), "safety_events")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"evt_1"}]`, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisErrorsAreWrapped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	boom := errors.New("connection refused")
	mock.ExpectGet("ps:recordings").SetErr(boom)

	_, _, err := NewRedis(db, "ps:", nil).Get(context.Background(), "recordings")
	assert.ErrorIs(t, err, boom)
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

type fakeQuerier struct {
	rows map[string]string
	sql  []string
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql = append(q.sql, sql)
	q.rows[args[0].(string)] = args[1].(string)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = append(q.sql, sql)
	v, ok := q.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuerier{rows: map[string]string{}}
	p := NewPostgres(q, "ps:")

	_, found, err := p.Get(ctx, "recordings")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, p.Set(ctx, "recordings", "[]"))
	assert.Equal(t, "[]", q.rows["ps:recordings"])
	assert.True(t, strings.Contains(q.sql[1], "ON CONFLICT"))

	v, found, err := p.Get(ctx, "recordings")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", v)
}

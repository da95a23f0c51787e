package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis, *schema.Model) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewWithClient(client, "test:")
	t.Cleanup(func() { s.Destroy(context.Background()) })

	m, err := schema.Define("cat").
		Attr("name", "string").
		Attr("age", "number").
		MustBuild().
		Resolve(types.Defaults())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.CreateRecord(ctx, m, adapter.Record{"name": "Fluffy", "age": "12"})
	require.NoError(t, err)
	_, err = s.CreateRecord(ctx, m, adapter.Record{"name": "Rt Hon. Douglas Meow", "age": "10"})
	require.NoError(t, err)

	return s, mr, m
}

func TestOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := Open(context.Background(), adapter.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, s.Destroy(context.Background()))
	assert.NoError(t, s.Destroy(context.Background()))
}

func TestOpenConnectionError(t *testing.T) {
	_, err := Open(context.Background(), adapter.Config{Addr: "localhost:1", Password: "hunter2"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestRecordLayout(t *testing.T) {
	_, mr, _ := setupTestRedis(t)

	assert.Equal(t, "Fluffy", mr.HGet("test:cat:1", "name"))
	assert.Equal(t, "12", mr.HGet("test:cat:1", "age"))
	assert.Equal(t, "1", mr.HGet("test:cat:1", "id"))

	members, err := mr.ZMembers("test:cat:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, members)

	seq, err := mr.Get("test:cat:seq")
	require.NoError(t, err)
	assert.Equal(t, "2", seq)
}

func TestCreateRecord(t *testing.T) {
	s, _, m := setupTestRedis(t)
	ctx := context.Background()

	rec, err := s.CreateRecord(ctx, m, adapter.Record{"name": "Tom"})
	require.NoError(t, err)
	assert.Equal(t, adapter.Record{"id": "3", "name": "Tom", "age": nil}, rec)

	rec, err = s.CreateRecord(ctx, m, adapter.Record{"id": "10", "name": "Jerry"})
	require.NoError(t, err)
	assert.Equal(t, "10", rec["id"])

	rec, err = s.CreateRecord(ctx, m, adapter.Record{"name": "Garfield"})
	require.NoError(t, err)
	assert.Equal(t, "11", rec["id"])

	_, err = s.CreateRecord(ctx, m, adapter.Record{"id": 10})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestReads(t *testing.T) {
	s, _, m := setupTestRedis(t)
	ctx := context.Background()

	rec, err := s.OneByID(ctx, m, 2, &adapter.SingleOptions{Fields: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, adapter.Record{"id": "2", "name": "Rt Hon. Douglas Meow"}, rec)

	rec, err = s.One(ctx, m, adapter.Where{"age": "12"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Fluffy", rec["name"])

	rec, err = s.OneByID(ctx, m, 42, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	recs, err := s.All(ctx, m, &adapter.MultiOptions{Sort: "-age"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Fluffy", recs[0]["name"])

	recs, err = s.All(ctx, m, &adapter.MultiOptions{Sort: "name", Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Rt Hon. Douglas Meow", recs[0]["name"])

	n, err := s.CountSome(ctx, m, adapter.Where{"name": "Fluffy"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.OneBySQL(ctx, m, "SELECT 1", nil, nil)
	assert.ErrorIs(t, err, adapter.ErrUnsupported)
}

func TestUpdates(t *testing.T) {
	s, mr, m := setupTestRedis(t)
	ctx := context.Background()

	rec, err := s.UpdateRecord(ctx, m, "1", adapter.Record{"age": "13", "name": nil})
	require.NoError(t, err)
	assert.Equal(t, adapter.Record{"id": "1", "name": nil, "age": "13"}, rec)
	assert.Equal(t, "", mr.HGet("test:cat:1", "name"))

	rec, err = s.UpdateRecord(ctx, m, "99", adapter.Record{"age": "1"})
	require.NoError(t, err)
	assert.Nil(t, rec)

	n, err := s.UpdateAll(ctx, m, adapter.Record{"age": "5"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.UpdateOne(ctx, m, adapter.Where{"age": "5"}, adapter.Record{"age": "6"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.UpdateOneByID(ctx, m, 2, adapter.Record{"name": "Douglas"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.UpdateSome(ctx, m, adapter.Where{"name": "Douglas"}, adapter.Record{"age": "7"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeletes(t *testing.T) {
	s, mr, m := setupTestRedis(t)
	ctx := context.Background()

	n, err := s.DeleteOneByID(ctx, m, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, mr.Exists("test:cat:1"))

	n, err = s.CreateSome(ctx, m, []adapter.Record{{"name": "a"}, {"name": "a"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteOne(ctx, m, adapter.Where{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteSome(ctx, m, adapter.Where{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.DeleteRecord(ctx, m, 2))
	n, err = s.CountAll(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCreateSomeCleansUp(t *testing.T) {
	s, _, m := setupTestRedis(t)
	ctx := context.Background()

	_, err := s.CreateSome(ctx, m, []adapter.Record{{"name": "a"}, {"id": "1"}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	n, err := s.CountAll(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// failingRollback lets writes through until an identifier check has run,
// then fails every transaction
type failingRollback struct {
	checked bool
}

func (h *failingRollback) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failingRollback) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "exists" {
			h.checked = true
		}
		return next(ctx, cmd)
	}
}

func (h *failingRollback) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.checked {
			return errors.New("connection reset")
		}
		return next(ctx, cmds)
	}
}

func TestCreateSomeReportsFailedCleanup(t *testing.T) {
	s, _, m := setupTestRedis(t)
	ctx := context.Background()
	s.client.AddHook(&failingRollback{})

	_, err := s.CreateSome(ctx, m, []adapter.Record{{"name": "a"}, {"id": "1"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorContains(t, err, "rollback 3: connection reset")
}

func TestTruncate(t *testing.T) {
	s, mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Truncate(ctx, m))
	assert.False(t, mr.Exists("test:cat:1"))
	assert.False(t, mr.Exists("test:cat:seq"))

	rec, err := s.CreateRecord(ctx, m, adapter.Record{"name": "again"})
	require.NoError(t, err)
	assert.Equal(t, "1", rec["id"])
}

package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/datamap/pkg/orm/adapter"
	"github.com/conduit-lang/datamap/pkg/orm/schema"
	"github.com/conduit-lang/datamap/pkg/orm/types"
)

const catColumns = `"id", "name", "age", "created_at" AS "createdAt"`

func catModel(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.Define("cat").
		Attr("name", "string").
		Attr("age", "number").
		Attr("createdAt", "date").
		MustBuild().
		Resolve(types.Defaults())
	require.NoError(t, err)
	return m
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres), mock
}

func TestOneSQL(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + catColumns + ` FROM "cat" WHERE "name" = $1 LIMIT 1`)).
		WithArgs("Fluffy").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "createdAt"}).
			AddRow(int64(1), "Fluffy", []byte("12"), "2017-08-28T20:17:25.601Z"))

	rec, err := s.One(context.Background(), m, adapter.Where{"name": "Fluffy"}, nil)
	require.NoError(t, err)
	assert.Equal(t, adapter.Record{
		"id":        int64(1),
		"name":      "Fluffy",
		"age":       "12",
		"createdAt": "2017-08-28T20:17:25.601Z",
	}, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOneByIDNoMatch(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "name" FROM "cat" WHERE "id" = $1 LIMIT 1`)).
		WithArgs("7").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	rec, err := s.OneByID(context.Background(), m, "7", &adapter.SingleOptions{Fields: []string{"name"}})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSomeSQL(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + catColumns + ` FROM "cat" WHERE "age" = $1 AND "name" IS NULL ORDER BY "created_at" DESC, "name" ASC LIMIT 1 OFFSET 1`)).
		WithArgs("12").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "createdAt"}).
			AddRow(int64(2), nil, int64(12), nil))

	recs, err := s.Some(context.Background(), m, adapter.Where{"age": "12", "name": nil}, &adapter.MultiOptions{
		Sort:  "-createdAt, name",
		Page:  2,
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(2), recs[0]["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllDefaultsPagination(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + catColumns + ` FROM "cat" LIMIT 20 OFFSET 0`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "createdAt"}))

	recs, err := s.All(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSomeBySQLMapsColumns(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM cat WHERE age > $1`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "created_at"}).
			AddRow(int64(1), "Fluffy", int64(12), nil))

	recs, err := s.SomeBySQL(context.Background(), m, `SELECT * FROM cat WHERE age > $1`, []any{5}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "createdAt")
	assert.NotContains(t, recs[0], "created_at")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRecordSQL(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "cat" ("age", "name") VALUES ($1, $2) RETURNING ` + catColumns)).
		WithArgs("12", "Fluffy").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "createdAt"}).
			AddRow(int64(1), "Fluffy", int64(12), nil))

	rec, err := s.CreateRecord(context.Background(), m, adapter.Record{"name": "Fluffy", "age": "12", "createdAt": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRecordUniqueViolation(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	pgErr := &pgconn.PgError{Code: "23505", Detail: "Key (name)=(Fluffy) already exists."}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "cat" ("name") VALUES ($1)`)).
		WithArgs("Fluffy").
		WillReturnError(pgErr)

	_, err := s.CreateRecord(context.Background(), m, adapter.Record{"name": "Fluffy"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	var got *pgconn.PgError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "23505", got.Code)
}

func TestCreateSomeTransaction(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "cat" ("name") VALUES ($1)`)).
		WithArgs("Fluffy").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "cat" DEFAULT VALUES`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	n, err := s.CreateSome(context.Background(), m, []adapter.Record{{"name": "Fluffy"}, {}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSomeRollsBack(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "cat" ("name") VALUES ($1)`)).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := s.CreateSome(context.Background(), m, []adapter.Record{{"name": "Fluffy"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRecordSQL(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "cat" SET "age" = $1, "name" = $2 WHERE "id" = $3 RETURNING ` + catColumns)).
		WithArgs("13", "Fluffy", "1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "createdAt"}).
			AddRow(int64(1), "Fluffy", int64(13), nil))

	rec, err := s.UpdateRecord(context.Background(), m, "1", adapter.Record{"id": "1", "name": "Fluffy", "age": "13"})
	require.NoError(t, err)
	assert.Equal(t, int64(13), rec["age"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkMutationsSQL(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "cat" SET "age" = $1 WHERE "id" IN (SELECT "id" FROM "cat" WHERE "name" = $2 LIMIT 1)`)).
		WithArgs("3", "Fluffy").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "cat" SET "age" = $1 WHERE "name" = $2`)).
		WithArgs("3", "Fluffy").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "cat" SET "age" = $1 WHERE "id" = $2`)).
		WithArgs("3", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cat" WHERE "id" IN (SELECT "id" FROM "cat" WHERE "name" = $1 LIMIT 1)`)).
		WithArgs("Fluffy").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cat"`)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "cat"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := s.UpdateOne(ctx, m, adapter.Where{"name": "Fluffy"}, adapter.Record{"age": "3"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.UpdateSome(ctx, m, adapter.Where{"name": "Fluffy"}, adapter.Record{"age": "3"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.UpdateOneByID(ctx, m, 1, adapter.Record{"age": "3"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteOne(ctx, m, adapter.Where{"name": "Fluffy"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteAll(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, s.Truncate(ctx, m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountSQL(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "cat" WHERE "name" = $1`)).
		WithArgs("Fluffy").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	n, err := s.CountSome(context.Background(), m, adapter.Where{"name": "Fluffy"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownFieldsRejectedBeforeQuery(t *testing.T) {
	s, mock := newMock(t)
	m := catModel(t)

	_, err := s.Some(context.Background(), m, nil, &adapter.MultiOptions{Fields: []string{"tail"}})
	assert.True(t, schema.IsInvalidAttribute(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDestroyIsIdempotent(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectClose()

	require.NoError(t, s.Destroy(context.Background()))
	require.NoError(t, s.Destroy(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), adapter.Config{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestConnectionErrorMasksPassword(t *testing.T) {
	err := error(&ConnectionError{
		Config: adapter.Config{Driver: "postgres", User: "cat", Password: "hunter2"}.Redacted(),
		Err:    errors.New("connection refused"),
	})

	assert.True(t, IsConnectionError(err))
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, ":memory:", buildDSN(SQLite, adapter.Config{}))
	assert.Equal(t, "cats.db", buildDSN(SQLite, adapter.Config{Database: "cats.db"}))
	assert.Equal(t,
		"postgres://cat:meow@db:5433/cats?sslmode=disable",
		buildDSN(Postgres, adapter.Config{Host: "db", Port: 5433, User: "cat", Password: "meow", Database: "cats"}))
	assert.Equal(t,
		"postgres://localhost:5432/cats?sslmode=disable",
		buildDSN(Postgres, adapter.Config{Database: "cats"}))
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), adapter.Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Destroy(context.Background()) })

	_, err = s.DB().Exec(`CREATE TABLE cat (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE,
		age INTEGER,
		created_at TEXT
	)`)
	require.NoError(t, err)
	return s
}

func TestSQLiteEndToEnd(t *testing.T) {
	s := openSQLite(t)
	m := catModel(t)
	ctx := context.Background()
	assert.Equal(t, SQLite, s.Dialect())

	rec, err := s.CreateRecord(ctx, m, adapter.Record{"name": "Fluffy", "age": "12", "createdAt": "2017-08-28T20:17:25.601Z"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec["id"])
	assert.Equal(t, int64(12), rec["age"])
	assert.Equal(t, "2017-08-28T20:17:25.601Z", rec["createdAt"])

	n, err := s.CreateSome(ctx, m, []adapter.Record{{"name": "Rt Hon. Douglas Meow", "age": "10"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.CountSome(ctx, m, adapter.Where{"name": "Fluffy"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recs, err := s.All(ctx, m, &adapter.MultiOptions{Sort: "name", Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Rt Hon. Douglas Meow", recs[0]["name"])

	rec, err = s.UpdateRecord(ctx, m, "1", adapter.Record{"age": "13"})
	require.NoError(t, err)
	assert.Equal(t, int64(13), rec["age"])

	rec, err = s.UpdateRecord(ctx, m, "99", adapter.Record{"age": "13"})
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = s.OneBySQL(ctx, m, `SELECT * FROM cat WHERE age < ?`, []any{11}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Rt Hon. Douglas Meow", rec["name"])

	_, err = s.CreateRecord(ctx, m, adapter.Record{"name": "Fluffy"})
	assert.True(t, IsUniqueViolation(err))

	n, err = s.DeleteOne(ctx, m, adapter.Where{"age": "13"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Truncate(ctx, m))
	n, err = s.CountAll(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLiteContextCancellation(t *testing.T) {
	s := openSQLite(t)
	m := catModel(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CountAll(ctx, m)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

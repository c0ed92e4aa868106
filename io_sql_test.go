package tablejoin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestReadSQLFromSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.ExecContext(ctx, `
		CREATE TABLE people (id INTEGER, name TEXT, score REAL, note TEXT);
		INSERT INTO people VALUES (1, 'ann', 1.5, NULL), (2, NULL, 2.0, NULL), (3, 'cy', NULL, NULL);
	`)
	require.NoError(t, err)

	df, err := ReadSQL(ctx, db, "SELECT id, name, score, note FROM people WHERE id >= ? ORDER BY id", 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score", "note"}, df.Columns())
	assert.Equal(t, []DType{Int64, String, Float64, Null}, df.Schema().DTypes())
	want := [][]any{
		{int64(1), "ann", 1.5, nil},
		{int64(2), nil, 2.0, nil},
		{int64(3), "cy", nil, nil},
	}
	if diff := cmp.Diff(want, rowsOf(df)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	empty, err := ReadSQL(ctx, db, "SELECT id, name FROM people WHERE id > 100")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, empty.Columns())
	assert.Equal(t, 0, empty.Height())

	_, err = ReadSQL(ctx, db, "SELECT * FROM nowhere")
	assert.ErrorContains(t, err, "query failed")
}

func TestReadSQLDriverValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"flag", "at", "raw", "num", "mixed"}).
		AddRow(true, ts, []byte("x"), int64(1), int64(5)).
		AddRow(nil, nil, []byte("y"), 2.5, "five")
	mock.ExpectQuery("SELECT (.+) FROM events").WillReturnRows(rows)

	df, err := ReadSQL(context.Background(), db, "SELECT * FROM events")
	require.NoError(t, err)

	assert.Equal(t, []DType{Bool, DateTime, String, Float64, String}, df.Schema().DTypes())
	assert.Equal(t, []any{true, ts, "x", 1.0, "5"}, df.Row(0))
	assert.Equal(t, []any{nil, nil, "y", 2.5, "five"}, df.Row(1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadSQLErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	_, err = ReadSQL(context.Background(), db, "SELECT 1")
	assert.ErrorContains(t, err, "connection reset")

	rows := sqlmock.NewRows([]string{"n"}).
		AddRow(int64(1)).
		AddRow(int64(2)).
		RowError(1, errors.New("bad row"))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)
	_, err = ReadSQL(context.Background(), db, "SELECT n")
	assert.ErrorContains(t, err, "failed to iterate rows")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// loadKeyed stores {id, <value>} from a randomKeyedFrame in table name.
func loadKeyed(t *testing.T, db *sql.DB, name string, df *DataFrame) {
	t.Helper()
	ctx := context.Background()
	value := df.Column(1).Name()
	_, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (id INTEGER, %s INTEGER)", name, value))
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (?, ?)", name))
	require.NoError(t, err)
	for i := 0; i < df.Height(); i++ {
		_, err := stmt.ExecContext(ctx, df.Column(0).Get(i), df.Column(1).Get(i))
		require.NoError(t, err)
	}
	require.NoError(t, stmt.Close())
	require.NoError(t, tx.Commit())
}

func TestJoinMatchesSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	rng := rand.New(rand.NewSource(42))
	left := randomKeyedFrame(rng, "lv", 120)
	right := randomKeyedFrame(rng, "rv", 90)
	loadKeyed(t, db, "l", left)
	loadKeyed(t, db, "r", right)

	tests := []struct {
		how   JoinType
		query string
	}{
		{InnerJoin, `SELECT l.id, l.lv, r.rv FROM l JOIN r ON l.id = r.id ORDER BY l.rowid, r.rowid`},
		{LeftJoin, `SELECT l.id, l.lv, r.rv FROM l LEFT JOIN r ON l.id = r.id ORDER BY l.rowid, r.rowid`},
		{SemiJoin, `SELECT id, lv FROM l WHERE EXISTS (SELECT 1 FROM r WHERE r.id = l.id) ORDER BY rowid`},
	}

	for _, tt := range tests {
		t.Run(tt.how.String(), func(t *testing.T) {
			want, err := ReadSQL(ctx, db, tt.query)
			require.NoError(t, err)

			got, err := Join(left, right, On("id").How(tt.how))
			require.NoError(t, err)

			if diff := cmp.Diff(rowsOf(want), rowsOf(got)); diff != "" {
				t.Errorf("join differs from sqlite (-sqlite +tablejoin):\n%s", diff)
			}
		})
	}
}

func TestCaseInsensitiveJoinMatchesSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.ExecContext(ctx, `
		CREATE TABLE l (name TEXT, n INTEGER);
		CREATE TABLE r (name TEXT, m INTEGER);
		INSERT INTO l VALUES ('Ann', 1), ('bob', 2), (NULL, 3), ('CY', 4), ('dee', 5);
		INSERT INTO r VALUES ('ANN', 10), ('Bob', 20), ('bob', 21), (NULL, 30), ('cy', 40);
	`)
	require.NoError(t, err)

	left, err := ReadSQL(ctx, db, "SELECT name, n FROM l ORDER BY rowid")
	require.NoError(t, err)
	right, err := ReadSQL(ctx, db, "SELECT name, m FROM r ORDER BY rowid")
	require.NoError(t, err)

	want, err := ReadSQL(ctx, db, `
		SELECT l.name, l.n, r.name AS name_R, r.m FROM l JOIN r ON UPPER(l.name) = UPPER(r.name)
		ORDER BY l.rowid, r.rowid`)
	require.NoError(t, err)

	got, err := Join(left, right, On("name").CaseSensitive(false).KeepRightKeys(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "n", "name_R", "m"}, got.Columns())
	if diff := cmp.Diff(rowsOf(want), rowsOf(got)); diff != "" {
		t.Errorf("join differs from sqlite (-sqlite +tablejoin):\n%s", diff)
	}
}

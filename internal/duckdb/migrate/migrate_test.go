package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err, "open duckdb")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCreatesStateTables(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	applied, err := NewRunner(db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	for _, table := range []string{"kv_store", "schema_migrations"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s not found", table)
	}

	var col string
	err = db.QueryRowContext(ctx, "SELECT column_name FROM information_schema.columns WHERE table_name = 'kv_store' AND column_name = 'size_bytes'").Scan(&col)
	require.NoError(t, err, "size_bytes column missing")
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	r := NewRunner(db)
	ctx := context.Background()

	_, err := r.Run(ctx)
	require.NoError(t, err, "first Run")
	applied, err := r.Run(ctx)
	require.NoError(t, err, "second Run")
	assert.Zero(t, applied)

	cur, pending, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cur)
	assert.Zero(t, pending)
}

func TestStatusBeforeRun(t *testing.T) {
	db := openTestDB(t)

	cur, pending, err := NewRunner(db).Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, cur)
	assert.Equal(t, 2, pending)
}

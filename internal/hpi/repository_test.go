package hpi

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS hpi_observations (
			quarter   TEXT PRIMARY KEY,
			value     REAL NOT NULL,
			loaded_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func TestRepositoryReplaceAndAll(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	series := Series{
		{Date: date(2022, time.March, 31), Value: 100},
		{Date: date(2022, time.June, 30), Value: 103},
	}
	require.NoError(t, repo.Replace(series))

	stored, err := repo.All()
	require.NoError(t, err)
	assert.Equal(t, series, stored)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRepositoryReplaceIsWholesale(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	require.NoError(t, repo.Replace(Series{
		{Date: date(2021, time.March, 31), Value: 90},
		{Date: date(2021, time.June, 30), Value: 91},
		{Date: date(2021, time.September, 30), Value: 92},
	}))
	require.NoError(t, repo.Replace(Series{
		{Date: date(2022, time.March, 31), Value: 100},
	}))

	stored, err := repo.All()
	require.NoError(t, err)
	require.Equal(t, 1, stored.Len())
	assert.Equal(t, 100.0, stored[0].Value)
}

func TestRepositoryAllEmpty(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())

	stored, err := repo.All()
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Len())
}

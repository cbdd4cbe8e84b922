package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	database, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	assert.False(t, database.IsPostgres())
	require.NoError(t, RunMigrations(database))
	assert.NoError(t, database.Ping(context.Background()))

	assert.True(t, database.Migrator().HasTable(&Book{}))
	assert.True(t, database.Migrator().HasTable(&Reservation{}))
}

func TestPoolForSQLiteKeepsSingleConnection(t *testing.T) {
	pool := poolFor(DriverSQLite)
	assert.Equal(t, 1, pool.maxOpen)
	assert.Equal(t, 1, pool.maxIdle)
	assert.Zero(t, pool.maxLifetime)

	pool = poolFor(DriverPostgres)
	assert.Equal(t, 100, pool.maxOpen)
	assert.Equal(t, time.Hour, pool.maxLifetime)
}

func TestSQLiteMemoryConnectionIsNotRecycled(t *testing.T) {
	database, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, RunMigrations(database))

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.Zero(t, sqlDB.Stats().MaxLifetimeClosed)
	assert.True(t, database.Migrator().HasTable(&Reservation{}))
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect("oracle", "whatever")
	assert.Error(t, err)
}

func TestParseReservationStatus(t *testing.T) {
	for _, name := range []string{"ACTIVE", "CANCELED", "EXPIRED"} {
		status, err := ParseReservationStatus(name)
		require.NoError(t, err)
		assert.Equal(t, name, status.String())
	}

	_, err := ParseReservationStatus("canceled")
	assert.Error(t, err)
	_, err = ParseReservationStatus("")
	assert.Error(t, err)
}

func TestReservationStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusActive.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestReservationBeforeCreateDefaults(t *testing.T) {
	database, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, RunMigrations(database))

	r := &Reservation{UserID: "u1", BookID: "b1"}
	require.NoError(t, database.Create(r).Error)

	assert.Len(t, r.ID, 36)
	assert.Equal(t, StatusActive, r.Status)
	assert.False(t, r.Created.IsZero())
}

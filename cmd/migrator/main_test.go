package main

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/jersey-shop/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMigrateDSN(t *testing.T) {
	dsn := buildMigrateDSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "shop", Name: "jersey"}, "migrations", "pw")
	assert.Equal(t, "postgres://shop:pw@db:5432/jersey?sslmode=disable&x-migrations-table=migrations", dsn)
}

func TestMissingTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM unnest($1::text[]) AS t")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow("outbox"))

	missing, err := missingTables(db, requiredTables)
	require.NoError(t, err)
	assert.Equal(t, []string{"outbox"}, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("JERSEY_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("JERSEY_TEST_KEY", "default"))
	assert.Equal(t, "default", GetEnv("JERSEY_TEST_MISSING", "default"))
}

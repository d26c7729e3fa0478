package db

import (
	"testing"

	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectNames(t *testing.T) {
	for dbType, want := range map[string]string{
		"postgres":   "postgres",
		"PostgreSQL": "postgres",
		"mysql":      "mysql",
		"sqlite":     "sqlite",
	} {
		d, err := Dialect(config.Config{DBType: dbType})
		require.NoError(t, err, dbType)
		assert.Equal(t, want, d.Name(), dbType)
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.EqualError(t, err, `unsupported database type "oracle"`)
}

func TestPostgresDSNDefaults(t *testing.T) {
	dsn := postgresDSN(config.Config{DBHost: "db", DBPort: "5432", DBUser: "app", DBName: "quotes"})
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "TimeZone=UTC")
	assert.Contains(t, dsn, "application_name=sellerflow")
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "sellerflow.db?_busy_timeout=5000&_foreign_keys=on", sqliteDSN(config.Config{}))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN(config.Config{DBName: "file::memory:?cache=shared"}))
}

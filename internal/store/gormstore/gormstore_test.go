package gormstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/statuspage/internal/store"
	"github.com/agentstation/statuspage/internal/store/gormstore"
	"github.com/agentstation/statuspage/internal/store/storetest"
	"github.com/agentstation/statuspage/pkg/errors"
)

func openSQLite(t *testing.T) *gormstore.Store {
	t.Helper()
	s, err := gormstore.Open(gormstore.Config{Driver: gormstore.DriverSQLite, DSN: "file::memory:", Migrate: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openSQLite(t) })
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := gormstore.Open(gormstore.Config{Driver: "postgres"}, nil)
	require.Error(t, err)
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openSQLite(t)
	require.NoError(t, s.Migrate(t.Context()))
}

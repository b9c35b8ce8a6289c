// Package testutil opens throwaway in-memory stores for package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

// NewDB opens a private in-memory sqlite database that is closed when the
// test ends. The pool is pinned to one connection so every statement sees
// the same in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// NewStore returns a migrated keystore over a fresh in-memory database.
func NewStore(t testing.TB, views ...keystore.View) *keystore.Store {
	t.Helper()

	s, err := keystore.New(NewDB(t), views...)
	require.NoError(t, err)
	require.NoError(t, s.AutoMigrate())
	return s
}

package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/db"
)

func TestOpenSQLite(t *testing.T) {
	d, err := db.Open(config.Database{
		Driver:   config.DriverSQLite,
		Path:     filepath.Join(t.TempDir(), "precinct.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, d.Exec("SELECT 1").Error)
	require.NoError(t, db.Close(d))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := db.Open(config.Database{Driver: "oracle"})
	require.ErrorIs(t, err, config.ErrUnknownDriver)
}

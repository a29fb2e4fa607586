package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	conn, dialect, err := Connect("sqlite", "", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, SQLite, dialect)

	_, _, err = Connect("mysql", "", "")
	require.ErrorContains(t, err, "unknown database driver")

	_, _, err = Connect("postgres", " ", "")
	require.ErrorContains(t, err, "DATABASE_URL")
}

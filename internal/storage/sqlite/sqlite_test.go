package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/storage/storagetest"
)

func TestRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) *storage.Repos {
		db, err := New(filepath.Join(t.TempDir(), "records.db"))
		require.NoError(t, err)

		repos := db.Repos()
		t.Cleanup(func() { repos.Close(context.Background()) })
		return repos
	})
}

func TestNewCreatesTableIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Db.Close())

	second, err := New(path)
	require.NoError(t, err)
	require.NoError(t, second.Db.Close())
}

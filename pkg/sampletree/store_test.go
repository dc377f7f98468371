package sampletree

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/himanishpuri/SampleTree/pkg/sampletree/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "songs.db")
	store, err := OpenStore("sqlite://" + dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &storage.SQLiteStore{}, store)
	assert.NoError(t, store.Ping(context.Background()))
	assert.FileExists(t, dbPath)
}

func TestOpenStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := OpenStore("redis://"+mr.Addr()+"/0", storage.WithMatchMode(storage.MatchSubstring))
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &storage.RedisStore{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenStoreRejects(t *testing.T) {
	for _, uri := range []string{
		"",
		"songs.db",
		"sqlite://",
		"mongodb://localhost:27017/sampletree",
	} {
		_, err := OpenStore(uri)
		assert.Error(t, err, uri)
	}
}

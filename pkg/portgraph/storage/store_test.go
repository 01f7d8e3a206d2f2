package storage_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/portgraph/pkg/portgraph/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) storage.Store

func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Load", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		data := []byte(`{"label":"adder"}`)
		require.NoError(t, store.Save("g-1", "/adder", data))

		loaded, err := store.Load("g-1", "/adder")
		require.NoError(t, err)
		assert.Equal(t, data, loaded)
	})

	t.Run(name+"/Load_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Load("g-missing", "/nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run(name+"/Save_Overwrite", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("g-1", "/a", []byte("first")))
		require.NoError(t, store.Save("g-1", "/a", []byte("second")))

		loaded, err := store.Load("g-1", "/a")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), loaded)
	})

	t.Run(name+"/List_ordered_by_latest_write", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("g-1", "/a", []byte("1")))
		require.NoError(t, store.Save("g-1", "/b", []byte("22")))
		require.NoError(t, store.Save("g-1", "/a", []byte("333")))
		require.NoError(t, store.Save("g-2", "/c", []byte("x")))

		infos, err := store.List("g-1")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "/b", infos[0].Path)
		assert.Equal(t, "/a", infos[1].Path)
		assert.Equal(t, int64(3), infos[1].Size)
		assert.Equal(t, "g-1", infos[1].GraphID)
		assert.False(t, infos[1].Timestamp.IsZero())
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List("g-none")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run(name+"/Graphs", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("g-b", "/x", []byte("1")))
		require.NoError(t, store.Save("g-a", "/x", []byte("1")))
		ids, err := store.Graphs()
		require.NoError(t, err)
		assert.Equal(t, []string{"g-a", "g-b"}, ids)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("g-1", "/a", []byte("1")))
		require.NoError(t, store.Delete("g-1", "/a"))
		require.NoError(t, store.Delete("g-1", "/a"))
		_, err := store.Load("g-1", "/a")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run(name+"/DeleteGraph", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("g-1", "/a", []byte("1")))
		require.NoError(t, store.Save("g-1", "/b", []byte("1")))
		require.NoError(t, store.Save("g-2", "/a", []byte("1")))
		require.NoError(t, store.DeleteGraph("g-1"))

		infos, err := store.List("g-1")
		require.NoError(t, err)
		assert.Empty(t, infos)
		_, err = store.Load("g-2", "/a")
		assert.NoError(t, err)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Save("g", "/a", nil), storage.ErrStoreClosed)
		_, err := store.Load("g", "/a")
		assert.ErrorIs(t, err, storage.ErrStoreClosed)
		_, err = store.List("g")
		assert.ErrorIs(t, err, storage.ErrStoreClosed)
		_, err = store.Graphs()
		assert.ErrorIs(t, err, storage.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				path := "/n" + string(rune('a'+id%5))
				for j := 0; j < 10; j++ {
					switch j % 3 {
					case 0:
						_ = store.Save("g", path, []byte("data"))
					case 1:
						_, _ = store.Load("g", path)
					case 2:
						_, _ = store.List("g")
					}
				}
			}(i)
		}
		wg.Wait()
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "memory", func(t *testing.T) storage.Store {
		return storage.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "sqlite", func(t *testing.T) storage.Store {
		s, err := storage.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestMemoryStore_Len(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Save("g-1", "/a", []byte("a")))
	require.NoError(t, store.Save("g-1", "/b", []byte("b")))
	require.NoError(t, store.Save("g-2", "/a", []byte("a")))
	assert.Equal(t, 3, store.Len())

	require.NoError(t, store.DeleteGraph("g-1"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()

	data := []byte("abc")
	require.NoError(t, store.Save("g", "/a", data))
	data[0] = 'z'

	loaded, err := store.Load("g", "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), loaded)
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")

	first, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Save("g-1", "/adder", []byte("persistent")))
	require.NoError(t, first.Close())

	second, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	data, err := second.Load("g-1", "/adder")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := storage.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

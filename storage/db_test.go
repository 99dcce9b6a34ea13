package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	lvl, err := NewMemLevelDB()
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(t.TempDir(), "state.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		lvl.Close()
		bolt.Close()
	})
	return map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": lvl,
		"bolt":    bolt,
	}
}

func TestDatabaseContract(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			require.NoError(t, db.Put([]byte("a"), []byte("1")))
			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), got)

			ok, err := db.Has([]byte("a"))
			require.NoError(t, err)
			require.True(t, ok)

			batch := new(Batch)
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("a"))
			require.NoError(t, db.Write(batch))

			ok, err = db.Has([]byte("a"))
			require.NoError(t, err)
			require.False(t, ok)
			got, err = db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), got)

			require.NoError(t, db.Delete([]byte("b")))
			_, err = db.Get([]byte("b"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOverlayCommit(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("keep"), []byte("x")))
	require.NoError(t, base.Put([]byte("drop"), []byte("y")))

	ov := NewOverlay(base)
	require.NoError(t, ov.Put([]byte("new"), []byte("z")))
	require.NoError(t, ov.Delete([]byte("drop")))

	got, err := ov.Get([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, []byte("z"), got)
	_, err = ov.Get([]byte("drop"))
	require.ErrorIs(t, err, ErrNotFound)

	// base untouched until commit
	ok, _ := base.Has([]byte("new"))
	require.False(t, ok)

	require.NoError(t, ov.Commit())
	require.Equal(t, 0, ov.Dirty())
	ok, _ = base.Has([]byte("new"))
	require.True(t, ok)
	ok, _ = base.Has([]byte("drop"))
	require.False(t, ok)
	require.Equal(t, 2, base.Len())
}

func TestOverlayDiscard(t *testing.T) {
	base := NewMemDB()
	ov := NewOverlay(base)
	require.NoError(t, ov.Put([]byte("k"), []byte("v")))
	require.Equal(t, 1, ov.Dirty())
	ov.Discard()
	require.Equal(t, 0, ov.Dirty())
	require.NoError(t, ov.Commit())
	require.Equal(t, 0, base.Len())
}

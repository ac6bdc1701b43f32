// Package testing provides a conformance suite every content store
// backend must pass.
package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubbit/meshfs/pkg/content"
	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// RunStoreSuite exercises the Store contract against a fresh store
// produced by newStore for each subtest.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) content.Store) {
	t.Run("CreateAndSize", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/dir/file")

		created, err := store.Create(p)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.Create(p)
		require.NoError(t, err)
		assert.False(t, created, "second create of the same file")

		size, err := store.Size(p)
		require.NoError(t, err)
		assert.EqualValues(t, 0, size)
	})

	t.Run("CreateRoot", func(t *testing.T) {
		store := newStore(t)

		created, err := store.Create(fspath.Root())
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("SizeOfMissing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Size(fspath.MustParse("/nope"))
		assert.ErrorIs(t, err, rpc.ErrNotFound)
	})

	t.Run("WriteAndRead", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)
		require.NoError(t, store.Write(p, 0, []byte("hello world")))

		data, err := store.Read(p, 6, 5)
		require.NoError(t, err)
		assert.Equal(t, []byte("world"), data)
	})

	t.Run("WriteExtends", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)
		require.NoError(t, store.Write(p, 0, []byte("abc")))

		// A write starting exactly at the end grows the file by the
		// payload length.
		require.NoError(t, store.Write(p, 3, []byte("def")))
		size, err := store.Size(p)
		require.NoError(t, err)
		assert.EqualValues(t, 6, size)
	})

	t.Run("WriteBeyondEnd", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)
		require.NoError(t, store.Write(p, 10, []byte("x")))

		size, err := store.Size(p)
		require.NoError(t, err)
		assert.EqualValues(t, 11, size)
	})

	t.Run("ReadAtEnd", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)
		require.NoError(t, store.Write(p, 0, []byte("abc")))

		data, err := store.Read(p, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("ReadBounds", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)
		require.NoError(t, store.Write(p, 0, []byte("abc")))

		_, err = store.Read(p, -1, 1)
		assert.ErrorIs(t, err, rpc.ErrInvalidArgument)

		_, err = store.Read(p, 0, -1)
		assert.ErrorIs(t, err, rpc.ErrInvalidArgument)

		_, err = store.Read(p, 1, 5)
		assert.ErrorIs(t, err, rpc.ErrInvalidArgument)

		_, err = store.Read(p, 10, 1)
		assert.ErrorIs(t, err, rpc.ErrInvalidArgument)
	})

	t.Run("WriteBounds", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)

		err = store.Write(p, -1, []byte("x"))
		assert.ErrorIs(t, err, rpc.ErrInvalidArgument)

		err = store.Write(fspath.MustParse("/missing"), 0, []byte("x"))
		assert.ErrorIs(t, err, rpc.ErrNotFound)
	})

	t.Run("DeleteFile", func(t *testing.T) {
		store := newStore(t)
		p := fspath.MustParse("/f")

		_, err := store.Create(p)
		require.NoError(t, err)

		deleted, err := store.Delete(p)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = store.Size(p)
		assert.ErrorIs(t, err, rpc.ErrNotFound)
	})

	t.Run("DeleteDirRecursive", func(t *testing.T) {
		store := newStore(t)

		for _, s := range []string{"/d/a", "/d/sub/b", "/other"} {
			_, err := store.Create(fspath.MustParse(s))
			require.NoError(t, err)
		}

		deleted, err := store.Delete(fspath.MustParse("/d"))
		require.NoError(t, err)
		assert.True(t, deleted)

		files, err := store.List()
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "/other", files[0].String())
	})

	t.Run("DeleteRootAndMissing", func(t *testing.T) {
		store := newStore(t)

		deleted, err := store.Delete(fspath.Root())
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = store.Delete(fspath.MustParse("/nope"))
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("ListAndPrune", func(t *testing.T) {
		store := newStore(t)

		for _, s := range []string{"/a/b/f1", "/a/f2", "/c/f3"} {
			_, err := store.Create(fspath.MustParse(s))
			require.NoError(t, err)
		}

		files, err := store.List()
		require.NoError(t, err)
		got := make([]string, len(files))
		for i, f := range files {
			got[i] = f.String()
		}
		assert.ElementsMatch(t, []string{"/a/b/f1", "/a/f2", "/c/f3"}, got)

		_, err = store.Delete(fspath.MustParse("/c/f3"))
		require.NoError(t, err)
		require.NoError(t, store.PruneEmptyDirs())

		files, err = store.List()
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})
}

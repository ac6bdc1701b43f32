package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/rpc"
)

var (
	s1 = proto.StorageID{Data: "127.0.0.1:7000", Command: "127.0.0.1:7001"}
	s2 = proto.StorageID{Data: "127.0.0.1:7002", Command: "127.0.0.1:7003"}
)

func TestTreeCreateAndResolve(t *testing.T) {
	tr := newTree()

	created, err := tr.createDirectory(fspath.MustParse("/a"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = tr.createFile(fspath.MustParse("/a/f"), s1)
	require.NoError(t, err)
	assert.True(t, created)

	dir, err := tr.isDirectory(fspath.MustParse("/a"))
	require.NoError(t, err)
	assert.True(t, dir)

	dir, err = tr.isDirectory(fspath.MustParse("/a/f"))
	require.NoError(t, err)
	assert.False(t, dir)

	_, err = tr.isDirectory(fspath.MustParse("/missing"))
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestTreeCreateCollisions(t *testing.T) {
	tr := newTree()

	_, err := tr.createDirectory(fspath.MustParse("/a"))
	require.NoError(t, err)

	created, err := tr.createDirectory(fspath.MustParse("/a"))
	require.NoError(t, err)
	assert.False(t, created, "second create of the same directory")

	created, err = tr.createFile(fspath.MustParse("/a"), s1)
	require.NoError(t, err)
	assert.False(t, created, "file over an existing directory")

	// A parent that does not exist is an error, not a false return.
	_, err = tr.createFile(fspath.MustParse("/nope/f"), s1)
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	// A file cannot serve as a parent directory.
	_, err = tr.createFile(fspath.MustParse("/a/f"), s1)
	require.NoError(t, err)
	_, err = tr.createFile(fspath.MustParse("/a/f/g"), s1)
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	created, err = tr.createDirectory(fspath.Root())
	require.NoError(t, err)
	assert.False(t, created, "root always exists")
}

func TestTreeList(t *testing.T) {
	tr := newTree()

	_, err := tr.createDirectory(fspath.MustParse("/a"))
	require.NoError(t, err)
	_, err = tr.createFile(fspath.MustParse("/a/f"), s1)
	require.NoError(t, err)
	_, err = tr.createDirectory(fspath.MustParse("/a/sub"))
	require.NoError(t, err)

	names, err := tr.list(fspath.MustParse("/a"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f", "sub"}, names)

	_, err = tr.list(fspath.MustParse("/a/f"))
	assert.ErrorIs(t, err, rpc.ErrNotFound, "listing a file")
}

func TestTreeRemove(t *testing.T) {
	tr := newTree()

	_, err := tr.createDirectory(fspath.MustParse("/a"))
	require.NoError(t, err)
	_, err = tr.createFile(fspath.MustParse("/a/f"), s1)
	require.NoError(t, err)

	require.NoError(t, tr.remove(fspath.MustParse("/a/f")))
	assert.False(t, tr.exists(fspath.MustParse("/a/f")))
	assert.True(t, tr.exists(fspath.MustParse("/a")))

	assert.ErrorIs(t, tr.remove(fspath.MustParse("/a/f")), rpc.ErrNotFound)
	assert.ErrorIs(t, tr.remove(fspath.Root()), rpc.ErrInvalidArgument)
}

func TestTreeInsertFileCreatesIntermediates(t *testing.T) {
	tr := newTree()

	require.NoError(t, tr.insertFile(fspath.MustParse("/x/y/z"), s1))

	dir, err := tr.isDirectory(fspath.MustParse("/x/y"))
	require.NoError(t, err)
	assert.True(t, dir)
	assert.True(t, tr.isFile(fspath.MustParse("/x/y/z")))

	// Anything already present at the path is a conflict.
	err = tr.insertFile(fspath.MustParse("/x/y/z"), s2)
	assert.ErrorIs(t, err, rpc.ErrInvalidState)

	// Crossing a file is impossible.
	err = tr.insertFile(fspath.MustParse("/x/y/z/deeper"), s2)
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

func TestTreeReplicas(t *testing.T) {
	tr := newTree()

	require.NoError(t, tr.insertFile(fspath.MustParse("/f"), s1))

	replicas, err := tr.replicas(fspath.MustParse("/f"))
	require.NoError(t, err)
	assert.Equal(t, []proto.StorageID{s1}, replicas)

	require.NoError(t, tr.addReplica(fspath.MustParse("/f"), s2))
	require.NoError(t, tr.addReplica(fspath.MustParse("/f"), s2), "adding twice is idempotent")

	replicas, err = tr.replicas(fspath.MustParse("/f"))
	require.NoError(t, err)
	assert.Len(t, replicas, 2)

	id, err := tr.randomReplica(fspath.MustParse("/f"))
	require.NoError(t, err)
	assert.Contains(t, replicas, id)

	require.NoError(t, tr.removeReplica(fspath.MustParse("/f"), s1))
	replicas, err = tr.replicas(fspath.MustParse("/f"))
	require.NoError(t, err)
	assert.Equal(t, []proto.StorageID{s2}, replicas)

	_, err = tr.replicas(fspath.MustParse("/nope"))
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

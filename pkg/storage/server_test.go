package storage_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubbit/meshfs/pkg/content/memory"
	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/rpc"
	"github.com/cubbit/meshfs/pkg/storage"
)

// fakeRegistration records registrations and answers with a fixed
// duplicate list.
type fakeRegistration struct {
	mu         sync.Mutex
	id         proto.StorageID
	files      []fspath.Path
	duplicates []fspath.Path
}

func (f *fakeRegistration) Register(id proto.StorageID, files []fspath.Path) ([]fspath.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id = id
	f.files = files
	return f.duplicates, nil
}

// startFakeNaming serves the registration interface and returns the
// fake plus a stub pointed at it.
func startFakeNaming(t *testing.T, duplicates []fspath.Path) (*fakeRegistration, *proto.RegistrationStub) {
	t.Helper()

	fake := &fakeRegistration{duplicates: duplicates}
	skeleton, err := proto.NewRegistrationSkeleton(fake, "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, skeleton.Start())
	t.Cleanup(skeleton.Stop)

	stub, err := proto.NewRegistrationStub(skeleton.Addr())
	require.NoError(t, err)
	return fake, stub
}

// startServer boots a storage server over store against a fake naming
// server.
func startServer(t *testing.T, store *memory.Store, duplicates []fspath.Path) (*storage.Server, *fakeRegistration) {
	t.Helper()

	fake, stub := startFakeNaming(t, duplicates)

	srv, err := storage.New(store, storage.Config{
		DataAddr:    "127.0.0.1:0",
		CommandAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(stub))
	t.Cleanup(srv.Stop)
	return srv, fake
}

func TestStartAnnouncesFiles(t *testing.T) {
	store := memory.New()
	for _, s := range []string{"/a/f", "/b"} {
		_, err := store.Create(fspath.MustParse(s))
		require.NoError(t, err)
	}

	srv, fake := startServer(t, store, nil)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, srv.ID(), fake.id)

	announced := make([]string, len(fake.files))
	for i, p := range fake.files {
		announced[i] = p.String()
	}
	assert.ElementsMatch(t, []string{"/a/f", "/b"}, announced)
}

func TestStartDropsDuplicates(t *testing.T) {
	store := memory.New()
	for _, s := range []string{"/dupe/f", "/keep"} {
		_, err := store.Create(fspath.MustParse(s))
		require.NoError(t, err)
	}

	startServer(t, store, []fspath.Path{fspath.MustParse("/dupe/f")})

	_, err := store.Size(fspath.MustParse("/dupe/f"))
	assert.ErrorIs(t, err, rpc.ErrNotFound, "duplicate deleted locally")

	_, err = store.Size(fspath.MustParse("/keep"))
	assert.NoError(t, err)

	// Only the non-duplicate file is left in the store.
	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/keep", files[0].String())
}

func TestDoubleStartFails(t *testing.T) {
	store := memory.New()
	srv, _ := startServer(t, store, nil)

	stub, err := proto.NewRegistrationStub("127.0.0.1:1")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Start(stub), rpc.ErrInvalidState)
}

func TestDataInterfaceOverTheWire(t *testing.T) {
	store := memory.New()
	srv, _ := startServer(t, store, nil)

	commands, err := proto.NewCommandStub(srv.ID().Command)
	require.NoError(t, err)
	data := proto.MustStorageStub(srv.ID().Data)

	p := fspath.MustParse("/dir/f")

	created, err := commands.Create(p)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = commands.Create(p)
	require.NoError(t, err)
	assert.False(t, created, "second create")

	require.NoError(t, data.Write(p, 0, []byte("hello world")))

	size, err := data.Size(p)
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)

	got, err := data.Read(p, 6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	// Boundary semantics survive the wire.
	got, err = data.Read(p, 11, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = data.Read(p, -1, 5)
	assert.ErrorIs(t, err, rpc.ErrInvalidArgument)

	_, err = data.Read(p, 0, 100)
	assert.ErrorIs(t, err, rpc.ErrInvalidArgument)

	_, err = data.Size(fspath.MustParse("/missing"))
	assert.ErrorIs(t, err, rpc.ErrNotFound)

	deleted, err := commands.Delete(p)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = commands.Delete(fspath.Root())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestWriteExtendsOverTheWire(t *testing.T) {
	store := memory.New()
	srv, _ := startServer(t, store, nil)

	data := proto.MustStorageStub(srv.ID().Data)
	p := fspath.MustParse("/f")

	commands, err := proto.NewCommandStub(srv.ID().Command)
	require.NoError(t, err)
	_, err = commands.Create(p)
	require.NoError(t, err)

	require.NoError(t, data.Write(p, 0, []byte("abc")))
	require.NoError(t, data.Write(p, 3, []byte("def")))

	size, err := data.Size(p)
	require.NoError(t, err)
	assert.EqualValues(t, 6, size, "write at the end extends by exactly the payload")
}

func TestCopyBetweenServers(t *testing.T) {
	source := memory.New()
	srcSrv, _ := startServer(t, source, nil)

	target := memory.New()
	tgtSrv, _ := startServer(t, target, nil)

	// 100 KiB forces many chunks with the 8 KiB default.
	payload := bytes.Repeat([]byte("0123456789abcdef"), 6400)
	p := fspath.MustParse("/big")
	_, err := source.Create(p)
	require.NoError(t, err)
	require.NoError(t, source.Write(p, 0, payload))

	commands, err := proto.NewCommandStub(tgtSrv.ID().Command)
	require.NoError(t, err)

	copied, err := commands.Copy(p, srcSrv.ID().Data)
	require.NoError(t, err)
	assert.True(t, copied)

	got, err := target.Read(p, 0, int32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCopyOverwritesExisting(t *testing.T) {
	source := memory.New()
	srcSrv, _ := startServer(t, source, nil)

	target := memory.New()
	tgtSrv, _ := startServer(t, target, nil)

	p := fspath.MustParse("/f")
	_, err := source.Create(p)
	require.NoError(t, err)
	require.NoError(t, source.Write(p, 0, []byte("fresh")))

	_, err = target.Create(p)
	require.NoError(t, err)
	require.NoError(t, target.Write(p, 0, []byte("stale stale stale")))

	commands, err := proto.NewCommandStub(tgtSrv.ID().Command)
	require.NoError(t, err)

	copied, err := commands.Copy(p, srcSrv.ID().Data)
	require.NoError(t, err)
	assert.True(t, copied)

	size, err := target.Size(p)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	got, err := target.Read(p, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)
}

func TestCopyMissingSource(t *testing.T) {
	source := memory.New()
	srcSrv, _ := startServer(t, source, nil)

	target := memory.New()
	tgtSrv, _ := startServer(t, target, nil)

	commands, err := proto.NewCommandStub(tgtSrv.ID().Command)
	require.NoError(t, err)

	_, err = commands.Copy(fspath.MustParse("/nope"), srcSrv.ID().Data)
	assert.ErrorIs(t, err, rpc.ErrNotFound)
}

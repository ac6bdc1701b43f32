package proto

import (
	"fmt"

	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// Wire messages. Paths travel in their string form and are re-parsed
// on receipt, so a malformed path is rejected at the boundary with
// InvalidArgument rather than deep inside a handler.

// Naming service messages.

type LockRequest struct {
	Path      string
	Exclusive bool
}

type LockResponse struct{}

type UnlockRequest struct {
	Path      string
	Exclusive bool
}

type UnlockResponse struct{}

type IsDirectoryRequest struct {
	Path string
}

type IsDirectoryResponse struct {
	Directory bool
}

type ListRequest struct {
	Path string
}

type ListResponse struct {
	Names []string
}

type CreateFileRequest struct {
	Path string
}

type CreateFileResponse struct {
	Created bool
}

type CreateDirectoryRequest struct {
	Path string
}

type CreateDirectoryResponse struct {
	Created bool
}

type DeleteRequest struct {
	Path string
}

type DeleteResponse struct {
	Deleted bool
}

type GetStorageRequest struct {
	Path string
}

type GetStorageResponse struct {
	Storage StorageID
}

// Registration messages.

type RegisterRequest struct {
	DataAddr    string
	CommandAddr string
	Files       []string
}

type RegisterResponse struct {
	Duplicates []string
}

// Storage data messages.

type SizeRequest struct {
	Path string
}

type SizeResponse struct {
	Size int64
}

type ReadRequest struct {
	Path   string
	Offset int64
	Length int32
}

type ReadResponse struct {
	Data []byte
}

type WriteRequest struct {
	Path   string
	Offset int64
	Data   []byte
}

type WriteResponse struct{}

// Storage command messages.

type CreateRequest struct {
	Path string
}

type CreateResponse struct {
	Created bool
}

type CommandDeleteRequest struct {
	Path string
}

type CommandDeleteResponse struct {
	Deleted bool
}

type CopyRequest struct {
	Path   string
	Source string
}

type CopyResponse struct {
	Copied bool
}

// parsePath re-parses a wire path, mapping failures to the
// InvalidArgument kind.
func parsePath(s string) (fspath.Path, error) {
	p, err := fspath.Parse(s)
	if err != nil {
		return fspath.Path{}, fmt.Errorf("%v: %w", err, rpc.ErrInvalidArgument)
	}
	return p, nil
}

func pathStrings(paths []fspath.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func parsePaths(raw []string) ([]fspath.Path, error) {
	out := make([]fspath.Path, len(raw))
	for i, s := range raw {
		p, err := parsePath(s)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

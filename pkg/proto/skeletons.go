package proto

import (
	"fmt"

	"github.com/cubbit/meshfs/pkg/rpc"
)

// handle decodes the argument struct, invokes the implementation, and
// hands the response struct back to the skeleton for encoding.
func handle[Req any, Resp any](args []byte, fn func(*Req) (*Resp, error)) (any, error) {
	var req Req
	if err := rpc.DecodeBody(args, &req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, rpc.ErrRPC)
	}
	return fn(&req)
}

// NewServiceSkeleton builds a skeleton serving the naming Service
// interface at addr.
func NewServiceSkeleton(impl Service, addr string) (*rpc.Skeleton, error) {
	handlers := map[string]rpc.Handler{
		"Lock": func(args []byte) (any, error) {
			return handle(args, func(req *LockRequest) (*LockResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				if err := impl.Lock(p, req.Exclusive); err != nil {
					return nil, err
				}
				return &LockResponse{}, nil
			})
		},
		"Unlock": func(args []byte) (any, error) {
			return handle(args, func(req *UnlockRequest) (*UnlockResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				if err := impl.Unlock(p, req.Exclusive); err != nil {
					return nil, err
				}
				return &UnlockResponse{}, nil
			})
		},
		"IsDirectory": func(args []byte) (any, error) {
			return handle(args, func(req *IsDirectoryRequest) (*IsDirectoryResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				dir, err := impl.IsDirectory(p)
				if err != nil {
					return nil, err
				}
				return &IsDirectoryResponse{Directory: dir}, nil
			})
		},
		"List": func(args []byte) (any, error) {
			return handle(args, func(req *ListRequest) (*ListResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				names, err := impl.List(p)
				if err != nil {
					return nil, err
				}
				return &ListResponse{Names: names}, nil
			})
		},
		"CreateFile": func(args []byte) (any, error) {
			return handle(args, func(req *CreateFileRequest) (*CreateFileResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				created, err := impl.CreateFile(p)
				if err != nil {
					return nil, err
				}
				return &CreateFileResponse{Created: created}, nil
			})
		},
		"CreateDirectory": func(args []byte) (any, error) {
			return handle(args, func(req *CreateDirectoryRequest) (*CreateDirectoryResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				created, err := impl.CreateDirectory(p)
				if err != nil {
					return nil, err
				}
				return &CreateDirectoryResponse{Created: created}, nil
			})
		},
		"Delete": func(args []byte) (any, error) {
			return handle(args, func(req *DeleteRequest) (*DeleteResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				deleted, err := impl.Delete(p)
				if err != nil {
					return nil, err
				}
				return &DeleteResponse{Deleted: deleted}, nil
			})
		},
		"GetStorage": func(args []byte) (any, error) {
			return handle(args, func(req *GetStorageRequest) (*GetStorageResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				id, err := impl.GetStorage(p)
				if err != nil {
					return nil, err
				}
				return &GetStorageResponse{Storage: id}, nil
			})
		},
	}

	return rpc.NewSkeleton(ServiceInterface, handlers, addr)
}

// NewRegistrationSkeleton builds a skeleton serving the naming
// Registration interface at addr.
func NewRegistrationSkeleton(impl Registration, addr string) (*rpc.Skeleton, error) {
	handlers := map[string]rpc.Handler{
		"Register": func(args []byte) (any, error) {
			return handle(args, func(req *RegisterRequest) (*RegisterResponse, error) {
				if req.DataAddr == "" || req.CommandAddr == "" {
					return nil, fmt.Errorf("registration with empty endpoint: %w", rpc.ErrInvalidArgument)
				}
				files, err := parsePaths(req.Files)
				if err != nil {
					return nil, err
				}
				dupes, err := impl.Register(StorageID{Data: req.DataAddr, Command: req.CommandAddr}, files)
				if err != nil {
					return nil, err
				}
				return &RegisterResponse{Duplicates: pathStrings(dupes)}, nil
			})
		},
	}

	return rpc.NewSkeleton(RegistrationInterface, handlers, addr)
}

// NewStorageSkeleton builds a skeleton serving the storage data
// interface at addr.
func NewStorageSkeleton(impl Storage, addr string) (*rpc.Skeleton, error) {
	handlers := map[string]rpc.Handler{
		"Size": func(args []byte) (any, error) {
			return handle(args, func(req *SizeRequest) (*SizeResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				size, err := impl.Size(p)
				if err != nil {
					return nil, err
				}
				return &SizeResponse{Size: size}, nil
			})
		},
		"Read": func(args []byte) (any, error) {
			return handle(args, func(req *ReadRequest) (*ReadResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				data, err := impl.Read(p, req.Offset, req.Length)
				if err != nil {
					return nil, err
				}
				return &ReadResponse{Data: data}, nil
			})
		},
		"Write": func(args []byte) (any, error) {
			return handle(args, func(req *WriteRequest) (*WriteResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				if err := impl.Write(p, req.Offset, req.Data); err != nil {
					return nil, err
				}
				return &WriteResponse{}, nil
			})
		},
	}

	return rpc.NewSkeleton(StorageInterface, handlers, addr)
}

// NewCommandSkeleton builds a skeleton serving the storage command
// interface at addr.
func NewCommandSkeleton(impl Command, addr string) (*rpc.Skeleton, error) {
	handlers := map[string]rpc.Handler{
		"Create": func(args []byte) (any, error) {
			return handle(args, func(req *CreateRequest) (*CreateResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				created, err := impl.Create(p)
				if err != nil {
					return nil, err
				}
				return &CreateResponse{Created: created}, nil
			})
		},
		"Delete": func(args []byte) (any, error) {
			return handle(args, func(req *CommandDeleteRequest) (*CommandDeleteResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				deleted, err := impl.Delete(p)
				if err != nil {
					return nil, err
				}
				return &CommandDeleteResponse{Deleted: deleted}, nil
			})
		},
		"Copy": func(args []byte) (any, error) {
			return handle(args, func(req *CopyRequest) (*CopyResponse, error) {
				p, err := parsePath(req.Path)
				if err != nil {
					return nil, err
				}
				if req.Source == "" {
					return nil, fmt.Errorf("copy with empty source endpoint: %w", rpc.ErrInvalidArgument)
				}
				copied, err := impl.Copy(p, req.Source)
				if err != nil {
					return nil, err
				}
				return &CopyResponse{Copied: copied}, nil
			})
		},
	}

	return rpc.NewSkeleton(CommandInterface, handlers, addr)
}

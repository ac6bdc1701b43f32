package proto

import (
	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/rpc"
)

// Typed stubs. Each wraps the generic rpc.Stub with the method set of
// one remote interface; all of them satisfy the corresponding Go
// interface, so local and remote implementations are interchangeable.

// ServiceStub calls a naming server's client service.
type ServiceStub struct {
	stub *rpc.Stub
}

// NewServiceStub targets the naming service at addr.
func NewServiceStub(addr string) (*ServiceStub, error) {
	stub, err := rpc.NewStub(ServiceInterface, addr)
	if err != nil {
		return nil, err
	}
	return &ServiceStub{stub: stub}, nil
}

func (s *ServiceStub) Lock(path fspath.Path, exclusive bool) error {
	return s.stub.Call("Lock", &LockRequest{Path: path.String(), Exclusive: exclusive}, nil)
}

func (s *ServiceStub) Unlock(path fspath.Path, exclusive bool) error {
	return s.stub.Call("Unlock", &UnlockRequest{Path: path.String(), Exclusive: exclusive}, nil)
}

func (s *ServiceStub) IsDirectory(path fspath.Path) (bool, error) {
	var resp IsDirectoryResponse
	if err := s.stub.Call("IsDirectory", &IsDirectoryRequest{Path: path.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Directory, nil
}

func (s *ServiceStub) List(dir fspath.Path) ([]string, error) {
	var resp ListResponse
	if err := s.stub.Call("List", &ListRequest{Path: dir.String()}, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (s *ServiceStub) CreateFile(path fspath.Path) (bool, error) {
	var resp CreateFileResponse
	if err := s.stub.Call("CreateFile", &CreateFileRequest{Path: path.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

func (s *ServiceStub) CreateDirectory(path fspath.Path) (bool, error) {
	var resp CreateDirectoryResponse
	if err := s.stub.Call("CreateDirectory", &CreateDirectoryRequest{Path: path.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

func (s *ServiceStub) Delete(path fspath.Path) (bool, error) {
	var resp DeleteResponse
	if err := s.stub.Call("Delete", &DeleteRequest{Path: path.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

func (s *ServiceStub) GetStorage(path fspath.Path) (StorageID, error) {
	var resp GetStorageResponse
	if err := s.stub.Call("GetStorage", &GetStorageRequest{Path: path.String()}, &resp); err != nil {
		return StorageID{}, err
	}
	return resp.Storage, nil
}

// Equal reports whether two service stubs target the same endpoint.
func (s *ServiceStub) Equal(other *ServiceStub) bool {
	return other != nil && s.stub.Equal(other.stub)
}

func (s *ServiceStub) String() string { return s.stub.String() }

// RegistrationStub calls a naming server's registration service.
type RegistrationStub struct {
	stub *rpc.Stub
}

// NewRegistrationStub targets the registration service at addr.
func NewRegistrationStub(addr string) (*RegistrationStub, error) {
	stub, err := rpc.NewStub(RegistrationInterface, addr)
	if err != nil {
		return nil, err
	}
	return &RegistrationStub{stub: stub}, nil
}

func (s *RegistrationStub) Register(id StorageID, files []fspath.Path) ([]fspath.Path, error) {
	req := &RegisterRequest{
		DataAddr:    id.Data,
		CommandAddr: id.Command,
		Files:       pathStrings(files),
	}
	var resp RegisterResponse
	if err := s.stub.Call("Register", req, &resp); err != nil {
		return nil, err
	}
	return parsePaths(resp.Duplicates)
}

func (s *RegistrationStub) String() string { return s.stub.String() }

// StorageStub calls a storage server's data service.
type StorageStub struct {
	stub *rpc.Stub
}

// NewStorageStub targets the storage data service at addr.
func NewStorageStub(addr string) (*StorageStub, error) {
	stub, err := rpc.NewStub(StorageInterface, addr)
	if err != nil {
		return nil, err
	}
	return &StorageStub{stub: stub}, nil
}

// MustStorageStub is NewStorageStub for endpoints known to be valid,
// such as identities handed out by the naming server. It panics on
// error.
func MustStorageStub(addr string) *StorageStub {
	stub, err := NewStorageStub(addr)
	if err != nil {
		panic(err)
	}
	return stub
}

func (s *StorageStub) Size(path fspath.Path) (int64, error) {
	var resp SizeResponse
	if err := s.stub.Call("Size", &SizeRequest{Path: path.String()}, &resp); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

func (s *StorageStub) Read(path fspath.Path, offset int64, length int32) ([]byte, error) {
	var resp ReadResponse
	req := &ReadRequest{Path: path.String(), Offset: offset, Length: length}
	if err := s.stub.Call("Read", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *StorageStub) Write(path fspath.Path, offset int64, data []byte) error {
	req := &WriteRequest{Path: path.String(), Offset: offset, Data: data}
	return s.stub.Call("Write", req, nil)
}

// Equal reports whether two storage stubs target the same endpoint.
func (s *StorageStub) Equal(other *StorageStub) bool {
	return other != nil && s.stub.Equal(other.stub)
}

func (s *StorageStub) String() string { return s.stub.String() }

// CommandStub calls a storage server's command service.
type CommandStub struct {
	stub *rpc.Stub
}

// NewCommandStub targets the storage command service at addr.
func NewCommandStub(addr string) (*CommandStub, error) {
	stub, err := rpc.NewStub(CommandInterface, addr)
	if err != nil {
		return nil, err
	}
	return &CommandStub{stub: stub}, nil
}

func (s *CommandStub) Create(path fspath.Path) (bool, error) {
	var resp CreateResponse
	if err := s.stub.Call("Create", &CreateRequest{Path: path.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

func (s *CommandStub) Delete(path fspath.Path) (bool, error) {
	var resp CommandDeleteResponse
	if err := s.stub.Call("Delete", &CommandDeleteRequest{Path: path.String()}, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

func (s *CommandStub) Copy(path fspath.Path, source string) (bool, error) {
	var resp CopyResponse
	req := &CopyRequest{Path: path.String(), Source: source}
	if err := s.stub.Call("Copy", req, &resp); err != nil {
		return false, err
	}
	return resp.Copied, nil
}

// Equal reports whether two command stubs target the same endpoint.
func (s *CommandStub) Equal(other *CommandStub) bool {
	return other != nil && s.stub.Equal(other.stub)
}

func (s *CommandStub) String() string { return s.stub.String() }

package proto

import "github.com/cubbit/meshfs/pkg/rpc"

// Interface descriptions shared by skeletons and stubs. The parameter
// type descriptors are matched verbatim against incoming requests, so
// they are part of the wire contract.

// ServiceInterface describes the naming server's client service.
var ServiceInterface = rpc.Interface{
	Name: "naming.Service",
	Methods: []rpc.Method{
		{Name: "Lock", ParamTypes: []string{"fspath.Path", "bool"}},
		{Name: "Unlock", ParamTypes: []string{"fspath.Path", "bool"}},
		{Name: "IsDirectory", ParamTypes: []string{"fspath.Path"}},
		{Name: "List", ParamTypes: []string{"fspath.Path"}},
		{Name: "CreateFile", ParamTypes: []string{"fspath.Path"}},
		{Name: "CreateDirectory", ParamTypes: []string{"fspath.Path"}},
		{Name: "Delete", ParamTypes: []string{"fspath.Path"}},
		{Name: "GetStorage", ParamTypes: []string{"fspath.Path"}},
	},
}

// RegistrationInterface describes the naming server's registration
// service.
var RegistrationInterface = rpc.Interface{
	Name: "naming.Registration",
	Methods: []rpc.Method{
		{Name: "Register", ParamTypes: []string{"proto.StorageID", "[]fspath.Path"}},
	},
}

// StorageInterface describes a storage server's data service.
var StorageInterface = rpc.Interface{
	Name: "storage.Storage",
	Methods: []rpc.Method{
		{Name: "Size", ParamTypes: []string{"fspath.Path"}},
		{Name: "Read", ParamTypes: []string{"fspath.Path", "int64", "int32"}},
		{Name: "Write", ParamTypes: []string{"fspath.Path", "int64", "[]byte"}},
	},
}

// CommandInterface describes a storage server's command service.
var CommandInterface = rpc.Interface{
	Name: "storage.Command",
	Methods: []rpc.Method{
		{Name: "Create", ParamTypes: []string{"fspath.Path"}},
		{Name: "Delete", ParamTypes: []string{"fspath.Path"}},
		{Name: "Copy", ParamTypes: []string{"fspath.Path", "string"}},
	},
}

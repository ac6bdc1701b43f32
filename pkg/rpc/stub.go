package rpc

import (
	"fmt"
	"net"
	"time"
)

// Stub is the client half of the RPC substrate. Each call dials the
// server, sends one framed request, reads one framed reply, and closes
// the connection. A remote error is rebuilt locally with its original
// kind; transport failures surface as ErrRPC.
//
// Stubs are cheap values safe for concurrent use: all state is
// immutable after construction.
type Stub struct {
	iface          Interface
	addr           string
	connectTimeout time.Duration
	callTimeout    time.Duration
}

// NewStub builds a stub for the given interface, targeting the server
// at addr. Like skeleton construction, it fails deterministically on
// an invalid interface description.
func NewStub(iface Interface, addr string) (*Stub, error) {
	if err := iface.Validate(); err != nil {
		return nil, err
	}
	if addr == "" {
		return nil, fmt.Errorf("stub for %s has no server address: %w", iface.Name, ErrInvalidArgument)
	}

	return &Stub{
		iface:          iface,
		addr:           addr,
		connectTimeout: 10 * time.Second,
		callTimeout:    60 * time.Second,
	}, nil
}

// Call invokes a remote method. args is the XDR-encodable argument
// struct, result the struct to decode the reply into (nil for methods
// without a return value worth decoding).
func (s *Stub) Call(method string, args any, result any) error {
	m, ok := s.iface.Lookup(method)
	if !ok {
		return fmt.Errorf("interface %s has no method %s: %w", s.iface.Name, method, ErrInvalidArgument)
	}

	body, err := EncodeBody(args)
	if err != nil {
		return fmt.Errorf("%s.%s: %v: %w", s.iface.Name, method, err, ErrRPC)
	}

	conn, err := net.DialTimeout("tcp", s.addr, s.connectTimeout)
	if err != nil {
		return fmt.Errorf("%s.%s: dial %s: %v: %w", s.iface.Name, method, s.addr, err, ErrRPC)
	}
	defer conn.Close()

	if s.callTimeout > 0 {
		conn.SetDeadline(time.Now().Add(s.callTimeout))
	}

	req := Request{Method: method, ParamTypes: m.ParamTypes, Args: body}
	if err := writeFrame(conn, &req); err != nil {
		return fmt.Errorf("%s.%s: %v: %w", s.iface.Name, method, err, ErrRPC)
	}

	var reply Reply
	if err := readFrame(conn, &reply); err != nil {
		return fmt.Errorf("%s.%s: %v: %w", s.iface.Name, method, err, ErrRPC)
	}

	if reply.Status != statusOK {
		return FromKind(reply.ErrKind, reply.ErrMsg)
	}
	if result == nil {
		return nil
	}
	if err := DecodeBody(reply.Result, result); err != nil {
		return fmt.Errorf("%s.%s: %v: %w", s.iface.Name, method, err, ErrRPC)
	}
	return nil
}

// Addr returns the endpoint this stub targets.
func (s *Stub) Addr() string {
	return s.addr
}

// Equal reports whether two stubs target the same interface at the
// same endpoint.
func (s *Stub) Equal(other *Stub) bool {
	if other == nil {
		return false
	}
	return s.iface.Name == other.iface.Name && s.addr == other.addr
}

// String identifies the stub by interface and endpoint.
func (s *Stub) String() string {
	return fmt.Sprintf("%s@%s", s.iface.Name, s.addr)
}

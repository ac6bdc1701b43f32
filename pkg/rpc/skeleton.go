package rpc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cubbit/meshfs/internal/logger"
)

// Handler serves one method of a remote interface. It receives the
// XDR-encoded argument struct and returns the result struct to encode,
// or an error from the taxonomy in errors.go.
type Handler func(args []byte) (result any, err error)

// Skeleton is the server half of the RPC substrate: a multithreaded
// TCP server that accepts connections from stubs, reads one framed
// request per connection, dispatches it to a handler, and writes one
// framed reply.
//
// A skeleton may be started and stopped repeatedly, but never started
// twice without an intervening stop. Stop waits for in-flight requests
// to drain and then invokes the Stopped hook exactly once.
type Skeleton struct {
	iface    Interface
	handlers map[string]Handler
	addr     string

	// ListenError is consulted when the accept loop fails at the top
	// level. Returning true resumes the loop; returning false (the
	// default when nil) shuts the skeleton down with that error.
	ListenError func(error) bool

	// ServiceError observes per-request failures. It does not control
	// the accept loop.
	ServiceError func(error)

	// Stopped is invoked exactly once per start, after the listener is
	// closed and all workers have drained. The cause is nil for an
	// explicit stop.
	Stopped func(error)

	// ReadTimeout and WriteTimeout bound a single request exchange.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	running  bool
	stopping bool
	stopOnce *sync.Once
	wg       sync.WaitGroup
}

// NewSkeleton builds a skeleton serving the given interface.
//
// Construction fails if the interface description is invalid, if a
// declared method has no handler, or if a handler is supplied for an
// undeclared method. This is the point where a broken remote contract
// is caught, before any socket is opened.
//
// The address may name a fixed port, or be empty (or end in ":0") to
// bind an ephemeral one; Addr reports the bound address after Start.
func NewSkeleton(iface Interface, handlers map[string]Handler, addr string) (*Skeleton, error) {
	if err := iface.Validate(); err != nil {
		return nil, err
	}
	for _, m := range iface.Methods {
		if handlers[m.Name] == nil {
			return nil, fmt.Errorf("interface %s: method %s has no handler: %w", iface.Name, m.Name, ErrInvalidArgument)
		}
	}
	for name := range handlers {
		if _, ok := iface.Lookup(name); !ok {
			return nil, fmt.Errorf("interface %s: handler %s is not declared: %w", iface.Name, name, ErrInvalidArgument)
		}
	}

	if addr == "" {
		addr = ":0"
	}

	return &Skeleton{
		iface:        iface,
		handlers:     handlers,
		addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, nil
}

// Start binds the listening socket and begins accepting connections.
// It fails with ErrInvalidState if the skeleton is already running.
func (s *Skeleton) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("skeleton %s already started: %w", s.iface.Name, ErrInvalidState)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("skeleton %s: %v: %w", s.iface.Name, err, ErrRPC)
	}

	s.listener = listener
	s.running = true
	s.stopping = false
	s.stopOnce = &sync.Once{}

	logger.Debug("%s skeleton listening on %s", s.iface.Name, listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Stop closes the listener, waits for in-flight requests to complete,
// and invokes the Stopped hook. Stopping a skeleton that is not
// running is a no-op.
func (s *Skeleton) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	listener := s.listener
	s.mu.Unlock()

	listener.Close()
	s.wg.Wait()

	s.finish(nil)
}

// Addr returns the address the listener is bound to, or the configured
// address if the skeleton has not been started.
func (s *Skeleton) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Interface returns the remote interface this skeleton serves.
func (s *Skeleton) Interface() Interface {
	return s.iface
}

// finish transitions to the stopped state and fires the hook once.
func (s *Skeleton) finish(cause error) {
	s.mu.Lock()
	once := s.stopOnce
	s.running = false
	s.listener = nil
	s.mu.Unlock()

	if once == nil {
		return
	}
	once.Do(func() {
		if s.Stopped != nil {
			s.Stopped(cause)
		}
	})
}

func (s *Skeleton) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping || errors.Is(err, net.ErrClosed) {
				return
			}

			if s.ListenError != nil && s.ListenError(err) {
				continue
			}

			// Fatal listen error: drain workers and report the cause.
			logger.Error("%s skeleton accept failed: %v", s.iface.Name, err)
			listener.Close()
			go func() {
				s.wg.Wait()
				s.finish(err)
			}()
			return
		}

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn handles one request/reply exchange and closes the
// connection.
func (s *Skeleton) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	reqID := uuid.NewString()

	if s.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	var req Request
	if err := readFrame(conn, &req); err != nil {
		s.reportServiceError(fmt.Errorf("request %s: %v: %w", reqID, err, ErrRPC))
		return
	}

	logger.Debug("%s skeleton request %s: %s from %s", s.iface.Name, reqID, req.Method, conn.RemoteAddr())

	reply := s.dispatch(reqID, &req)

	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	if err := writeFrame(conn, reply); err != nil {
		s.reportServiceError(fmt.Errorf("request %s: %v: %w", reqID, err, ErrRPC))
	}
}

func (s *Skeleton) dispatch(reqID string, req *Request) (reply *Reply) {
	// A handler panic must not take down the listener; it surfaces to
	// the caller as an RPC failure.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("request %s: handler %s panicked: %v: %w", reqID, req.Method, r, ErrRPC)
			s.reportServiceError(err)
			reply = errorReply(err)
		}
	}()

	method, ok := s.iface.Lookup(req.Method)
	if !ok {
		err := fmt.Errorf("interface %s has no method %s: %w", s.iface.Name, req.Method, ErrRPC)
		s.reportServiceError(err)
		return errorReply(err)
	}
	if !sameTypes(method.ParamTypes, req.ParamTypes) {
		err := fmt.Errorf("method %s: parameter types %v do not match declaration %v: %w",
			req.Method, req.ParamTypes, method.ParamTypes, ErrRPC)
		s.reportServiceError(err)
		return errorReply(err)
	}

	result, err := s.handlers[req.Method](req.Args)
	if err != nil {
		return errorReply(err)
	}

	reply, err = successReply(result)
	if err != nil {
		err = fmt.Errorf("request %s: encode %s result: %v: %w", reqID, req.Method, err, ErrRPC)
		s.reportServiceError(err)
		return errorReply(err)
	}
	return reply
}

func (s *Skeleton) reportServiceError(err error) {
	logger.Debug("%s skeleton: %v", s.iface.Name, err)
	if s.ServiceError != nil {
		s.ServiceError(err)
	}
}

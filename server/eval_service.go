// Package server provides Rill's network surfaces: a CBOR-framed eval
// service over TCP and an LSP server over stdio.
package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("rill.server")

// EvalServer accepts TCP connections and evaluates frames of source text
// against per-client sessions.
type EvalServer struct {
	store *SessionStore

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewEvalServer creates an eval server with an empty session store.
func NewEvalServer() *EvalServer {
	return &EvalServer{store: NewSessionStore()}
}

// Sessions exposes the session store for inspection.
func (s *EvalServer) Sessions() *SessionStore {
	return s.store
}

// Listen binds addr and returns the bound address (useful with :0).
func (s *EvalServer) Listen(addr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	return listener.Addr(), nil
}

// Serve runs the accept loop until Close. Listen must have succeeded.
func (s *EvalServer) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	log.Infof("eval service listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting connections.
func (s *EvalServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// handleConn processes one connection: a sequence of request frames, each
// answered with one response frame. A malformed frame ends the
// connection; evaluation failures are reported in-band.
func (s *EvalServer) handleConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log.Debugf("connection from %s", remote)

	for {
		payload, err := ReadFrame(conn)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Errorf("read from %s: %v", remote, err)
			return
		}

		req, err := UnmarshalRequest(payload)
		if err != nil {
			log.Errorf("decode from %s: %v", remote, err)
			return
		}

		resp := s.evaluate(req)

		out, err := MarshalResponse(resp)
		if err != nil {
			log.Errorf("encode response for %s: %v", remote, err)
			return
		}
		if err := WriteFrame(conn, out); err != nil {
			log.Errorf("write to %s: %v", remote, err)
			return
		}
	}
}

// evaluate routes a request to its session.
func (s *EvalServer) evaluate(req *EvalRequest) *EvalResponse {
	session, err := s.store.Resolve(req.Session)
	if err != nil {
		return &EvalResponse{
			Session: req.Session,
			Errors:  []string{err.Error()},
		}
	}

	resp := session.Eval(req.Source)
	if len(resp.Errors) > 0 {
		log.Debugf("session %s: eval failed: %v", session.ID, resp.Errors)
	}
	return resp
}

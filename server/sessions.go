package server

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rill-lang/rill/compiler"
	"github.com/rill-lang/rill/pkg/bytecode"
	"github.com/rill-lang/rill/vm"
)

// putsMu serializes redirection of the shared puts writer while a session
// evaluation is in flight.
var putsMu sync.Mutex

// Session is one client workspace: its own constants pool, globals slab
// and global symbol table, threaded through every evaluation exactly as
// the REPL threads its state.
type Session struct {
	ID string

	worker      *Worker
	constants   []vm.Object
	globals     []vm.Object
	symbolTable *bytecode.SymbolTable
}

// newSession creates a session with the builtin registry bound.
func newSession() *Session {
	symbolTable := bytecode.NewSymbolTable()
	for i, b := range vm.Builtins {
		symbolTable.DefineBuiltin(i, b.Name)
	}

	return &Session{
		ID:          uuid.NewString(),
		worker:      NewWorker(),
		constants:   []vm.Object{},
		globals:     make([]vm.Object, bytecode.GlobalsSize),
		symbolTable: symbolTable,
	}
}

// Eval compiles and runs source in this session, capturing puts output.
// All evaluations for one session execute on its worker goroutine.
func (s *Session) Eval(source string) *EvalResponse {
	resp := &EvalResponse{Session: s.ID}

	result, err := s.worker.Do(func() interface{} {
		return s.eval(source)
	})
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
		return resp
	}

	return result.(*EvalResponse)
}

func (s *Session) eval(source string) *EvalResponse {
	resp := &EvalResponse{Session: s.ID}

	program, err := compiler.Parse(source)
	if err != nil {
		resp.Errors = append(resp.Errors, err.Error())
		return resp
	}

	c := bytecode.NewCompilerWithState(s.symbolTable, s.constants)
	if err := c.Compile(program); err != nil {
		resp.Errors = append(resp.Errors, err.Error())
		return resp
	}
	bc := c.Bytecode()
	s.constants = bc.Constants

	var output bytes.Buffer
	putsMu.Lock()
	oldWriter := vm.PutsWriter
	vm.PutsWriter = &output

	machine := bytecode.NewVMWithGlobals(bc, s.globals)
	runErr := machine.Run()

	vm.PutsWriter = oldWriter
	putsMu.Unlock()

	resp.Output = output.String()
	if runErr != nil {
		resp.Errors = append(resp.Errors, runErr.Error())
		return resp
	}

	resp.Value = machine.LastPopped().Inspect()
	return resp
}

// Close stops the session's worker.
func (s *Session) Close() {
	s.worker.Stop()
}

// SessionStore manages live sessions by ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a new session.
func (st *SessionStore) Create() *Session {
	session := newSession()

	st.mu.Lock()
	st.sessions[session.ID] = session
	st.mu.Unlock()

	return session
}

// Get retrieves a session by ID.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	session, ok := st.sessions[id]
	return session, ok
}

// Resolve returns the session for id, creating a fresh one when id is
// empty. Unknown IDs are an error so clients notice expired sessions.
func (st *SessionStore) Resolve(id string) (*Session, error) {
	if id == "" {
		return st.Create(), nil
	}
	session, ok := st.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown session %s", id)
	}
	return session, nil
}

// Destroy removes a session and stops its worker.
func (st *SessionStore) Destroy(id string) {
	st.mu.Lock()
	session, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		session.Close()
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

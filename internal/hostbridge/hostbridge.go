// Package hostbridge exposes spec.md §6's foreign-boundary operations
// (compile, run_to_syscall_or_n, push/pop) as a JSON-over-WebSocket
// protocol, so a remote game host can drive registered VMs without linking
// a C ABI. Grounded on the teacher's internal/network WebSocketServer/
// WebSocketConn connection-handling shape, rewritten around one shared
// engine.Engine instead of a generic client pub/sub registry.
package hostbridge

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"grimoire/internal/engine"
)

// Server accepts WebSocket connections and dispatches each incoming
// message as one engine operation.
type Server struct {
	Engine   *engine.Engine
	Upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	http    *http.Server
}

type client struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewServer returns a Server driving the given engine. If eng is nil, a
// fresh, empty engine is created.
func NewServer(eng *engine.Engine) *Server {
	if eng == nil {
		eng = engine.New()
	}
	return &Server{
		Engine: eng,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[string]*client{},
	}
}

// request is the JSON-over-WebSocket envelope. Op selects which engine
// operation to perform; the remaining fields are interpreted per Op.
type request struct {
	Op     string  `json:"op"`
	Src    string  `json:"src,omitempty"`
	ID     int64   `json:"id,omitempty"`
	Max    int     `json:"max,omitempty"`
	IntVal int32   `json:"int_value,omitempty"`
	DblVal float64 `json:"double_value,omitempty"`
}

// response is the JSON reply. Only the fields relevant to the request's Op
// are populated.
type response struct {
	ID       int64   `json:"id,omitempty"`
	Error    string  `json:"error,omitempty"`
	Executed int     `json:"executed,omitempty"`
	Status   int     `json:"status,omitempty"`
	OK       bool    `json:"ok,omitempty"`
	IntVal   int32   `json:"int_value,omitempty"`
	DblVal   float64 `json:"double_value,omitempty"`
}

// ListenAndServe starts the HTTP server hosting the WebSocket endpoint at
// path "/" on addr, blocking until it stops (matching http.Server's
// ListenAndServe contract).
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: http.HandlerFunc(s.handle),
	}
	return s.http.ListenAndServe()
}

// Stop closes every connected client and shuts down the HTTP server.
func (s *Server) Stop() error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = map[string]*client{}
	s.mu.Unlock()

	if s.http != nil {
		return s.http.Close()
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{id: fmt.Sprintf("hb_%d", time.Now().UnixNano()), conn: conn}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		c.close()
	}()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		c.mu.Lock()
		err := c.conn.WriteJSON(resp)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req request) response {
	switch req.Op {
	case "init":
		s.Engine.Init()
		return response{OK: true}

	case "compile":
		res := s.Engine.Compile(req.Src)
		return response{ID: res.ID, Error: res.Error}

	case "free":
		s.Engine.Free(engine.CompileResult{ID: req.ID})
		return response{OK: true}

	case "run_to_syscall_or_n":
		executed, status := s.Engine.RunToSyscallOrN(req.ID, req.Max)
		return response{Executed: executed, Status: status}

	case "push_int":
		return response{OK: s.Engine.PushInt(req.ID, req.IntVal)}

	case "push_double":
		return response{OK: s.Engine.PushDouble(req.ID, req.DblVal)}

	case "pop_int":
		var v int32
		ok := s.Engine.PopInt(req.ID, &v)
		return response{OK: ok, IntVal: v}

	case "pop_double":
		var v float64
		ok := s.Engine.PopDouble(req.ID, &v)
		return response{OK: ok, DblVal: v}

	default:
		return response{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MJE43/lightgrid/internal/grid"
	"github.com/MJE43/lightgrid/internal/puzzle"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 4096
)

// Socket message types
const (
	wsTypeState   = "state"
	wsTypeRotated = "rotated"
	wsTypeReset   = "reset"
	wsTypeError   = "error"
	wsTypeClosed  = "closed"
)

// socket is one client following one session at a time. A reset moves it on
// to the replacement session.
type socket struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	id      uuid.UUID
	updates <-chan puzzle.View
	cancel  func()
}

// handleSessionSocket upgrades to a WebSocket that pushes every change of the
// session and accepts rotate, reset and get commands.
func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	// Fail before upgrading so the client gets a JSON error.
	initial, err := s.manager.Get(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws_upgrade_failed session_id=%s err=%v", id, err)
		return
	}
	defer conn.Close()

	c := &socket{server: s, conn: conn}
	if err := c.follow(id); err != nil {
		c.sendError(r, err)
		return
	}
	defer c.stop()

	s.logger.Printf("ws_connected session_id=%s remote_addr=%s request_id=%s", id, r.RemoteAddr, middleware.GetReqID(r.Context()))
	if err := c.send(wsOutbound{Type: wsTypeState, Session: &initial}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go c.keepAlive(done)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("ws_read_failed session_id=%s err=%v", c.current(), err)
			}
			return
		}
		if !c.handle(r, msg) {
			return
		}
	}
}

// handle runs one command and reports whether the socket should stay open.
func (c *socket) handle(r *http.Request, msg wsInbound) bool {
	ctx := r.Context()
	m := c.server.manager

	switch msg.Type {
	case "get":
		v, err := m.Get(c.current())
		if err != nil {
			c.sendError(r, err)
			return true
		}
		return c.send(wsOutbound{Type: wsTypeState, Session: &v}) == nil

	case "rotate":
		if ferr := ValidateRotateRequest(msg.Payload); ferr != nil {
			c.sendError(r, ferr)
			return true
		}
		id, updates := c.subscription()
		v, err := m.RotateFrom(ctx, id, grid.P(*msg.Payload.X, *msg.Payload.Y), updates)
		if err != nil {
			c.sendError(r, err)
			return true
		}
		return c.send(wsOutbound{Type: wsTypeRotated, Session: &v}) == nil

	case "reset":
		return c.reset(ctx, r)

	default:
		c.sendError(r, invalid("type", "unknown message type %q", msg.Type))
		return true
	}
}

func (c *socket) reset(ctx context.Context, r *http.Request) bool {
	old := c.detach()
	v, err := c.server.manager.Reset(ctx, old)
	if err != nil {
		c.attach(old)
		c.sendError(r, err)
		return true
	}
	if err := c.follow(v.ID); err != nil {
		c.sendError(r, err)
		return false
	}
	c.server.logSession(r, "reset", v)
	return c.send(wsOutbound{Type: wsTypeReset, Session: &v}) == nil
}

// follow subscribes to id, dropping any previous subscription.
func (c *socket) follow(id uuid.UUID) error {
	ch, cancel, err := c.server.manager.Watch(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	prev := c.cancel
	c.id, c.updates, c.cancel = id, ch, cancel
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
	go c.forward(id, ch)
	return nil
}

// forward pushes updates until the subscription ends. When the followed
// session goes away the client is told and the socket closed.
func (c *socket) forward(id uuid.UUID, ch <-chan puzzle.View) {
	for v := range ch {
		if err := c.send(wsOutbound{Type: wsTypeState, Session: &v}); err != nil {
			return
		}
	}
	if c.current() != id {
		return
	}
	_ = c.send(wsOutbound{Type: wsTypeClosed})
	_ = c.conn.Close()
}

func (c *socket) current() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// subscription returns the followed session and the channel its updates
// arrive on.
func (c *socket) subscription() (uuid.UUID, <-chan puzzle.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.updates
}

// detach stops treating the current session as followed without
// unsubscribing, so its closing channel does not close the socket.
func (c *socket) detach() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.id
	c.id = uuid.Nil
	return id
}

func (c *socket) attach(id uuid.UUID) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *socket) stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.id, c.updates, c.cancel = uuid.Nil, nil, nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *socket) send(msg wsOutbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *socket) sendError(r *http.Request, err error) {
	var engineErr EngineError
	if ferr, ok := err.(*FieldError); ok {
		engineErr = NewError(ErrTypeValidation, "Validation failed: "+ferr.Message).
			WithContext("field", ferr.Field).
			Build()
	} else {
		status, errType := classify(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "Internal server error"
			c.server.logger.Printf("ws_command_failed session_id=%s err=%v", c.current(), err)
		}
		engineErr = NewError(errType, message).WithContext("status", status).Build()
	}
	engineErr.RequestID = middleware.GetReqID(r.Context())
	_ = c.send(wsOutbound{Type: wsTypeError, Error: &engineErr})
}

func (c *socket) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

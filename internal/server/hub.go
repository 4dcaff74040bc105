package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type connState int

const (
	stateUnauthenticated connState = iota
	stateJoined
	stateClosed
)

// Conn is one client connection. Only its reader goroutine mutates state,
// userID and sessionID; the hub reads them after registration.
type Conn struct {
	id        uuid.UUID
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	state     connState
	userID    int64
	sessionID int64
}

func newConn(ws *websocket.Conn, buffer int) *Conn {
	return &Conn{
		id:   uuid.New(),
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. A full or closed connection drops the frame.
func (c *Conn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		zap.L().Warn("send queue full, dropping message", zap.String("conn", c.id.String()), zap.Int64("user_id", c.userID))
		return false
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("write failed", zap.String("conn", c.id.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Hub is the connection table and broadcast router. Connections are
// indexed per session so a broadcast only touches that session's members.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]*Conn
	sessions map[int64]map[*Conn]struct{}
	users    map[int64]*Conn
}

func NewHub() *Hub {
	return &Hub{
		conns:    map[uuid.UUID]*Conn{},
		sessions: map[int64]map[*Conn]struct{}{},
		users:    map[int64]*Conn{},
	}
}

// Register binds c to a user and session. A previous connection of the same
// user is detached and returned so the caller can close it.
func (h *Hub) Register(c *Conn, userID, sessionID int64) (previous *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.users[userID]; ok && prev != c {
		h.removeLocked(prev)
		previous = prev
	}
	c.userID = userID
	c.sessionID = sessionID
	c.state = stateJoined
	h.conns[c.id] = c
	h.users[userID] = c
	members, ok := h.sessions[sessionID]
	if !ok {
		members = map[*Conn]struct{}{}
		h.sessions[sessionID] = members
	}
	members[c] = struct{}{}
	return previous
}

// Unregister removes c. It reports whether c was still the user's current
// connection, which is false for superseded or unknown connections.
func (h *Hub) Unregister(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return false
	}
	h.removeLocked(c)
	return true
}

func (h *Hub) removeLocked(c *Conn) {
	delete(h.conns, c.id)
	if cur, ok := h.users[c.userID]; ok && cur == c {
		delete(h.users, c.userID)
	}
	if members, ok := h.sessions[c.sessionID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
}

// Broadcast delivers msg to every connection of the session except
// excludeUserID (0 excludes nobody). Delivery is at most once.
func (h *Hub) Broadcast(sessionID int64, msg any, excludeUserID int64) {
	b, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("marshal broadcast", zap.Int64("session_id", sessionID), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		if excludeUserID != 0 && c.userID == excludeUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(b)
	}
}

// SendTo delivers msg to the user's current connection if it belongs to
// the session. It reports whether the message was queued.
func (h *Hub) SendTo(sessionID, userID int64, msg any) bool {
	h.mu.RLock()
	c, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok || c.sessionID != sessionID {
		return false
	}
	return send(c, msg)
}

func (h *Hub) IsOnline(sessionID, userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.users[userID]
	return ok && c.sessionID == sessionID
}

// OnlineUserIDs lists users with a live connection in the session.
func (h *Hub) OnlineUserIDs(sessionID int64) map[int64]struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[int64]struct{}, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		out[c.userID] = struct{}{}
	}
	return out
}

func send(c *Conn, msg any) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("marshal message", zap.Int64("user_id", c.userID), zap.Error(err))
		return false
	}
	return c.enqueue(b)
}

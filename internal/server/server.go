package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/multiplayer-trader/internal/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	DefaultSession string
	ChatHistory    int
	ActivityFeed   int
	SendBuffer     int
	AllowedOrigin  string
}

func (o Options) withDefaults() Options {
	if o.DefaultSession == "" {
		o.DefaultSession = store.DefaultSessionName
	}
	if o.ChatHistory <= 0 {
		o.ChatHistory = 50
	}
	if o.ActivityFeed <= 0 {
		o.ActivityFeed = 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.AllowedOrigin == "" {
		o.AllowedOrigin = "*"
	}
	return o
}

type GameServer struct {
	store    store.Store
	locks    *store.PlayerLocks
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewGameServer(st store.Store, opts Options) *GameServer {
	opts = opts.withDefaults()
	gs := &GameServer{
		store: st,
		locks: store.NewPlayerLocks(),
		hub:   NewHub(),
		opts:  opts,
		now:   time.Now,
	}
	gs.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == opts.AllowedOrigin
		},
	}
	return gs
}

func (gs *GameServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := gs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	c := newConn(ws, gs.opts.SendBuffer)
	zap.L().Debug("connection opened", zap.String("conn", c.id.String()), zap.String("remote", r.RemoteAddr))
	go c.writeLoop()
	go gs.readLoop(c)
}

func (gs *GameServer) readLoop(c *Conn) {
	defer func() {
		c.Close()
		gs.handleClose(c)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Info("connection read error", zap.String("conn", c.id.String()), zap.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			zap.L().Debug("malformed frame", zap.String("conn", c.id.String()), zap.Error(err))
			send(c, errorMsg("Invalid message format"))
			continue
		}
		gs.dispatch(context.Background(), c, msg)
	}
}

// dispatch routes one inbound message according to the connection state.
// A panic in a handler is contained to that message.
func (gs *GameServer) dispatch(ctx context.Context, c *Conn, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("handler panic", zap.String("type", msg.Type), zap.Int64("user_id", c.userID), zap.Any("panic", rec))
			send(c, errorMsg("Internal error"))
		}
	}()

	if c.state != stateJoined {
		if msg.Type != msgJoin {
			zap.L().Debug("message before join dropped", zap.String("type", msg.Type))
			return
		}
		gs.handleJoin(ctx, c, msg)
		return
	}

	switch msg.Type {
	case msgJoin:
		zap.L().Debug("repeated join ignored", zap.Int64("user_id", c.userID))
	case msgChat:
		gs.handleChat(ctx, c, msg)
	case msgGameAction:
		gs.handleGameAction(ctx, c, msg)
	case msgTradeOffer:
		gs.handleTradeOffer(ctx, c, msg)
	case msgTradeResponse:
		gs.handleTradeResponse(ctx, c, msg)
	case msgBuyFromMarket:
		gs.handleBuyFromMarket(ctx, c, msg)
	default:
		zap.L().Info("unknown message type", zap.String("type", msg.Type), zap.Int64("user_id", c.userID))
	}
}

func (gs *GameServer) handleClose(c *Conn) {
	if c.state != stateJoined {
		return
	}
	c.state = stateClosed

	unlock := gs.locks.Lock(presenceSession, c.userID)
	defer unlock()
	if !gs.hub.Unregister(c) {
		// superseded by a newer connection of the same user
		return
	}
	ctx := context.Background()
	if err := gs.store.SetUserOnline(ctx, c.userID, false); err != nil {
		zap.L().Warn("mark offline", zap.Int64("user_id", c.userID), zap.Error(err))
	}
	zap.L().Info("player left", zap.Int64("user_id", c.userID), zap.Int64("session_id", c.sessionID))
	gs.broadcastLeft(ctx, c.sessionID, c.userID)
}

func (gs *GameServer) broadcastLeft(ctx context.Context, sessionID, userID int64) {
	gs.hub.Broadcast(sessionID, PlayerLeftMsg{
		Type:          "player_left",
		UserID:        userID,
		OnlinePlayers: gs.SessionPlayers(ctx, sessionID),
	}, userID)
}

// SessionPlayers is the online roster: session members with a live
// connection in that session.
func (gs *GameServer) SessionPlayers(ctx context.Context, sessionID int64) []store.User {
	members, err := gs.store.GetSessionPlayers(ctx, sessionID)
	if err != nil {
		zap.L().Warn("session players", zap.Int64("session_id", sessionID), zap.Error(err))
		return []store.User{}
	}
	online := gs.hub.OnlineUserIDs(sessionID)
	out := make([]store.User, 0, len(online))
	for _, u := range members {
		if _, ok := online[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

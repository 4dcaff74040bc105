package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/multiplayer-trader/internal/game"
)

type playerKey struct {
	userID    int64
	sessionID int64
}

// MemStore keeps everything in process memory. Values handed out are
// copies, so callers can never mutate stored state in place.
type MemStore struct {
	mu sync.RWMutex

	users        map[int64]*User
	sessions     map[int64]*Session
	playerStates map[playerKey]game.PlayerState
	members      map[int64][]int64
	listings     map[int64]*MarketListing
	tradeOffers  map[int64]*TradeOffer
	chatMessages map[int64][]ChatMessage
	activities   map[int64][]GameActivity
	maxPlayers   int
	nextUser     int64
	nextSession  int64
	nextListing  int64
	nextTrade    int64
	nextMessage  int64
	nextActivity int64
	now          func() time.Time
}

// NewMemStore creates a store with the default session pre-created.
func NewMemStore(defaultSession string, maxPlayers int) *MemStore {
	if defaultSession == "" {
		defaultSession = DefaultSessionName
	}
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	s := &MemStore{
		users:        map[int64]*User{},
		sessions:     map[int64]*Session{},
		playerStates: map[playerKey]game.PlayerState{},
		members:      map[int64][]int64{},
		listings:     map[int64]*MarketListing{},
		tradeOffers:  map[int64]*TradeOffer{},
		chatMessages: map[int64][]ChatMessage{},
		activities:   map[int64][]GameActivity{},
		maxPlayers:   maxPlayers,
		now:          time.Now,
	}
	s.createSessionLocked(defaultSession)
	return s
}

func (s *MemStore) GetUser(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u := s.userByNameLocked(username); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemStore) userByNameLocked(username string) *User {
	for _, u := range s.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (s *MemStore) CreateUser(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userByNameLocked(username) != nil {
		return nil, fmt.Errorf("user %q: %w", username, ErrAlreadyExists)
	}
	s.nextUser++
	u := &User{ID: s.nextUser, Username: username, IsOnline: true, LastSeen: s.now()}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *MemStore) SetUserOnline(_ context.Context, id int64, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	u.IsOnline = online
	u.LastSeen = s.now()
	return nil
}

func (s *MemStore) GetSession(_ context.Context, id int64) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	cp := *sess
	return &cp, nil
}

func (s *MemStore) GetSessionByName(_ context.Context, name string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess := s.sessionByNameLocked(name); sess != nil {
		cp := *sess
		return &cp, nil
	}
	return nil, fmt.Errorf("session %q: %w", name, ErrNotFound)
}

func (s *MemStore) sessionByNameLocked(name string) *Session {
	for _, sess := range s.sessions {
		if sess.Name == name {
			return sess
		}
	}
	return nil
}

// GetOrCreateSession is idempotent by name.
func (s *MemStore) GetOrCreateSession(_ context.Context, name string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionByNameLocked(name)
	if sess == nil {
		sess = s.createSessionLocked(name)
	}
	cp := *sess
	return &cp, nil
}

func (s *MemStore) createSessionLocked(name string) *Session {
	s.nextSession++
	sess := &Session{ID: s.nextSession, Name: name, MaxPlayers: s.maxPlayers, CreatedAt: s.now()}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *MemStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) GetPlayerState(_ context.Context, userID, sessionID int64) (game.PlayerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.playerStates[playerKey{userID, sessionID}]
	if !ok {
		return game.PlayerState{}, fmt.Errorf("player state %d/%d: %w", userID, sessionID, ErrNotFound)
	}
	return st.Clone(), nil
}

func (s *MemStore) CreatePlayerState(_ context.Context, userID, sessionID int64) (game.PlayerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := playerKey{userID, sessionID}
	if _, ok := s.playerStates[key]; ok {
		return game.PlayerState{}, fmt.Errorf("player state %d/%d: %w", userID, sessionID, ErrAlreadyExists)
	}
	st := game.NewPlayerState(userID, sessionID)
	s.playerStates[key] = st
	s.members[sessionID] = append(s.members[sessionID], userID)
	return st.Clone(), nil
}

func (s *MemStore) ReplacePlayerState(_ context.Context, state game.PlayerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := playerKey{state.UserID, state.SessionID}
	if _, ok := s.playerStates[key]; !ok {
		return fmt.Errorf("player state %d/%d: %w", state.UserID, state.SessionID, ErrNotFound)
	}
	s.playerStates[key] = state.Clone()
	return nil
}

// GetSessionPlayers returns every user holding a state in the session,
// ordered by id.
func (s *MemStore) GetSessionPlayers(_ context.Context, sessionID int64) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.members[sessionID]
	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) CreateListing(_ context.Context, l MarketListing) (*MarketListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListing++
	l.ID = s.nextListing
	l.CreatedAt = s.now()
	l.Materials = copyCounts(l.Materials)
	l.Seller = nil
	s.listings[l.ID] = &l
	return s.listingViewLocked(&l), nil
}

func (s *MemStore) GetListing(_ context.Context, id int64) (*MarketListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	return s.listingViewLocked(l), nil
}

func (s *MemStore) DeleteListing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[id]; !ok {
		return fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	delete(s.listings, id)
	return nil
}

// GetMarketListings returns the session's listings, newest first.
func (s *MemStore) GetMarketListings(_ context.Context, sessionID int64) ([]MarketListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []MarketListing{}
	for _, l := range s.listings {
		if l.SessionID == sessionID {
			out = append(out, *s.listingViewLocked(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (s *MemStore) listingViewLocked(l *MarketListing) *MarketListing {
	cp := *l
	cp.Materials = copyCounts(l.Materials)
	if u, ok := s.users[l.SellerID]; ok {
		seller := *u
		cp.Seller = &seller
	}
	return &cp
}

func (s *MemStore) CreateTradeOffer(_ context.Context, o TradeOffer) (*TradeOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTrade++
	o.ID = s.nextTrade
	o.CreatedAt = s.now()
	o.Status = TradePending
	o.OfferItems = copyCounts(o.OfferItems)
	o.RequestItems = copyCounts(o.RequestItems)
	s.tradeOffers[o.ID] = &o
	return copyOffer(&o), nil
}

func (s *MemStore) GetTradeOffer(_ context.Context, id int64) (*TradeOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.tradeOffers[id]
	if !ok {
		return nil, fmt.Errorf("trade offer %d: %w", id, ErrNotFound)
	}
	return copyOffer(o), nil
}

// SetTradeOfferStatus only allows pending -> accepted|declined.
func (s *MemStore) SetTradeOfferStatus(_ context.Context, id int64, status TradeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.tradeOffers[id]
	if !ok {
		return fmt.Errorf("trade offer %d: %w", id, ErrNotFound)
	}
	if o.Status != TradePending || (status != TradeAccepted && status != TradeDeclined) {
		return fmt.Errorf("trade offer %d %s -> %s: %w", id, o.Status, status, ErrInvalidTransition)
	}
	o.Status = status
	return nil
}

func (s *MemStore) GetTradeOffersForUser(_ context.Context, userID, sessionID int64) ([]TradeOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []TradeOffer{}
	for _, o := range s.tradeOffers {
		if o.SessionID == sessionID && (o.FromUserID == userID || o.ToUserID == userID) {
			out = append(out, *copyOffer(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyOffer(o *TradeOffer) *TradeOffer {
	cp := *o
	cp.OfferItems = copyCounts(o.OfferItems)
	cp.RequestItems = copyCounts(o.RequestItems)
	return &cp
}

func (s *MemStore) CreateChatMessage(_ context.Context, m ChatMessage) (*ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessage++
	m.ID = s.nextMessage
	m.CreatedAt = s.now()
	m.User = nil
	s.chatMessages[m.SessionID] = append(s.chatMessages[m.SessionID], m)
	m.User = s.userLocked(m.UserID)
	return &m, nil
}

// GetChatMessages returns the last limit messages in chronological order.
func (s *MemStore) GetChatMessages(_ context.Context, sessionID int64, limit int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.chatMessages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]ChatMessage, len(all))
	for i, m := range all {
		m.User = s.userLocked(m.UserID)
		out[i] = m
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })
	return out, nil
}

func (s *MemStore) CreateActivity(_ context.Context, a GameActivity) (*GameActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextActivity++
	a.ID = s.nextActivity
	a.CreatedAt = s.now()
	a.User = nil
	s.activities[a.SessionID] = append(s.activities[a.SessionID], a)
	a.User = s.userLocked(a.UserID)
	return &a, nil
}

// GetRecentActivities returns at most limit activities, newest first.
func (s *MemStore) GetRecentActivities(_ context.Context, sessionID int64, limit int) ([]GameActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.activities[sessionID]
	out := make([]GameActivity, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		a := all[i]
		a.User = s.userLocked(a.UserID)
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) userLocked(id int64) *User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// newer orders by creation time, falling back to id for equal timestamps.
func newer(at time.Time, id int64, bt time.Time, bid int64) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id > bid
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

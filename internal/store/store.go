package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/multiplayer-trader/internal/game"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
)

const (
	DefaultSessionName = "Alpha-7"
	DefaultMaxPlayers  = 20
)

type User struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type Session struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	MaxPlayers int       `json:"maxPlayers"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MarketListing struct {
	ID        int64          `json:"id"`
	SellerID  int64          `json:"sellerId"`
	SessionID int64          `json:"sessionId"`
	ItemKey   string         `json:"itemKey"`
	ItemName  string         `json:"itemName"`
	ItemValue int            `json:"itemValue"`
	Price     int            `json:"price"`
	Materials map[string]int `json:"materials"`
	CreatedAt time.Time      `json:"createdAt"`
	Seller    *User          `json:"seller,omitempty"`
}

type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeDeclined TradeStatus = "declined"
)

type TradeOffer struct {
	ID           int64          `json:"id"`
	FromUserID   int64          `json:"fromUserId"`
	ToUserID     int64          `json:"toUserId"`
	SessionID    int64          `json:"sessionId"`
	OfferItems   map[string]int `json:"offerItems"`
	RequestItems map[string]int `json:"requestItems"`
	Status       TradeStatus    `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	SessionID int64     `json:"sessionId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}

type GameActivity struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"userId"`
	SessionID   int64             `json:"sessionId"`
	Type        game.ActivityType `json:"type"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"createdAt"`
	User        *User             `json:"user,omitempty"`
}

// Store is the authoritative game state. Player states are read and
// replaced whole; callers serialize read-modify-write cycles with
// PlayerLocks.
type Store interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username string) (*User, error)
	SetUserOnline(ctx context.Context, id int64, online bool) error

	GetSession(ctx context.Context, id int64) (*Session, error)
	GetSessionByName(ctx context.Context, name string) (*Session, error)
	GetOrCreateSession(ctx context.Context, name string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)

	GetPlayerState(ctx context.Context, userID, sessionID int64) (game.PlayerState, error)
	CreatePlayerState(ctx context.Context, userID, sessionID int64) (game.PlayerState, error)
	ReplacePlayerState(ctx context.Context, state game.PlayerState) error
	GetSessionPlayers(ctx context.Context, sessionID int64) ([]User, error)

	CreateListing(ctx context.Context, l MarketListing) (*MarketListing, error)
	GetListing(ctx context.Context, id int64) (*MarketListing, error)
	DeleteListing(ctx context.Context, id int64) error
	GetMarketListings(ctx context.Context, sessionID int64) ([]MarketListing, error)

	CreateTradeOffer(ctx context.Context, o TradeOffer) (*TradeOffer, error)
	GetTradeOffer(ctx context.Context, id int64) (*TradeOffer, error)
	SetTradeOfferStatus(ctx context.Context, id int64, status TradeStatus) error
	GetTradeOffersForUser(ctx context.Context, userID, sessionID int64) ([]TradeOffer, error)

	CreateChatMessage(ctx context.Context, m ChatMessage) (*ChatMessage, error)
	GetChatMessages(ctx context.Context, sessionID int64, limit int) ([]ChatMessage, error)

	CreateActivity(ctx context.Context, a GameActivity) (*GameActivity, error)
	GetRecentActivities(ctx context.Context, sessionID int64, limit int) ([]GameActivity, error)
}

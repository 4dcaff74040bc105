package server

import (
	"encoding/json"

	"github.com/example/multiplayer-trader/internal/game"
	"github.com/example/multiplayer-trader/internal/store"
)

// Inbound message types.
const (
	msgJoin          = "join"
	msgChat          = "chat_message"
	msgGameAction    = "game_action"
	msgTradeOffer    = "trade_offer"
	msgTradeResponse = "trade_response"
	msgBuyFromMarket = "buy_from_market"
)

// Message is the flat inbound frame: a type tag plus whichever fields that
// type uses.
type Message struct {
	Type         string          `json:"type"`
	Username     string          `json:"username,omitempty"`
	SessionName  string          `json:"sessionName,omitempty"`
	Content      string          `json:"content,omitempty"`
	Action       string          `json:"action,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ToUserID     int64           `json:"toUserId,omitempty"`
	OfferItems   map[string]int  `json:"offerItems,omitempty"`
	RequestItems map[string]int  `json:"requestItems,omitempty"`
	ListingID    int64           `json:"listingId,omitempty"`
	OfferID      int64           `json:"offerId,omitempty"`
	Accept       bool            `json:"accept,omitempty"`
}

type JoinedMsg struct {
	Type             string                `json:"type"`
	User             *store.User           `json:"user"`
	Session          *store.Session        `json:"session"`
	PlayerState      game.PlayerState      `json:"playerState"`
	OnlinePlayers    []store.User          `json:"onlinePlayers"`
	ChatMessages     []store.ChatMessage   `json:"chatMessages"`
	MarketListings   []store.MarketListing `json:"marketListings"`
	RecentActivities []store.GameActivity  `json:"recentActivities"`
	TradeOffers      []store.TradeOffer    `json:"tradeOffers"`
	Materials        []game.Material       `json:"materials"`
}

type PlayerJoinedMsg struct {
	Type          string       `json:"type"`
	User          *store.User  `json:"user"`
	OnlinePlayers []store.User `json:"onlinePlayers"`
}

type PlayerLeftMsg struct {
	Type          string       `json:"type"`
	UserID        int64        `json:"userId"`
	OnlinePlayers []store.User `json:"onlinePlayers"`
}

type ChatMsg struct {
	Type    string             `json:"type"`
	Message *store.ChatMessage `json:"message"`
}

type StateUpdateMsg struct {
	Type        string           `json:"type"`
	PlayerState game.PlayerState `json:"playerState"`
}

type MarketUpdateMsg struct {
	Type           string                `json:"type"`
	MarketListings []store.MarketListing `json:"marketListings"`
}

type ActivityMsg struct {
	Type     string              `json:"type"`
	Activity *store.GameActivity `json:"activity"`
}

type TradeOfferMsg struct {
	Type     string            `json:"type"`
	Offer    *store.TradeOffer `json:"offer"`
	FromUser *store.User       `json:"fromUser,omitempty"`
}

type ItemSoldMsg struct {
	Type     string      `json:"type"`
	ItemName string      `json:"itemName"`
	Price    int         `json:"price"`
	Buyer    *store.User `json:"buyer"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMsg(text string) ErrorMsg {
	return ErrorMsg{Type: "error", Message: text}
}

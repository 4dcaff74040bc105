package server

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/example/multiplayer-trader/internal/game"
	"github.com/example/multiplayer-trader/internal/store"
	"go.uber.org/zap"
)

const (
	maxUsernameLen = 32
	maxChatLen     = 500
)

// membershipKey is never assigned to a user. Its lock serializes the
// capacity check and player state creation for one session.
const membershipKey int64 = 0

// presenceSession is never assigned to a session. Locking (presenceSession,
// userID) orders a user's join against the close of their previous
// connection so online status and player_left cannot go stale.
const presenceSession int64 = 0

func (gs *GameServer) handleJoin(ctx context.Context, c *Conn, msg Message) {
	username := strings.TrimSpace(msg.Username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		send(c, errorMsg("username must be 1-32 characters"))
		return
	}
	sessionName := strings.TrimSpace(msg.SessionName)
	if sessionName == "" {
		sessionName = gs.opts.DefaultSession
	}

	user, err := gs.resolveUser(ctx, username)
	if err != nil {
		zap.L().Error("resolve user", zap.String("username", username), zap.Error(err))
		send(c, errorMsg("could not join"))
		return
	}
	session, err := gs.store.GetOrCreateSession(ctx, sessionName)
	if err != nil {
		zap.L().Error("resolve session", zap.String("session", sessionName), zap.Error(err))
		send(c, errorMsg("could not join"))
		return
	}

	state, err := gs.ensurePlayerState(ctx, user.ID, session)
	if errors.Is(err, errSessionFull) {
		send(c, errorMsg("session is full"))
		return
	}
	if err != nil {
		zap.L().Error("player state", zap.Int64("user_id", user.ID), zap.Int64("session_id", session.ID), zap.Error(err))
		send(c, errorMsg("could not join"))
		return
	}

	unlock := gs.locks.Lock(presenceSession, user.ID)
	defer unlock()

	if err := gs.store.SetUserOnline(ctx, user.ID, true); err != nil {
		zap.L().Warn("mark online", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if u, err := gs.store.GetUser(ctx, user.ID); err == nil {
		user = u
	}

	if prev := gs.hub.Register(c, user.ID, session.ID); prev != nil {
		zap.L().Info("connection superseded", zap.Int64("user_id", user.ID), zap.String("conn", prev.id.String()))
		prev.Close()
		if prev.sessionID != session.ID {
			gs.broadcastLeft(ctx, prev.sessionID, user.ID)
		}
	}
	zap.L().Info("player joined", zap.String("username", user.Username), zap.Int64("user_id", user.ID), zap.String("session", session.Name))

	roster := gs.SessionPlayers(ctx, session.ID)
	send(c, gs.snapshot(ctx, user, session, state, roster))
	gs.hub.Broadcast(session.ID, PlayerJoinedMsg{
		Type:          "player_joined",
		User:          user,
		OnlinePlayers: roster,
	}, user.ID)
}

func (gs *GameServer) resolveUser(ctx context.Context, username string) (*store.User, error) {
	user, err := gs.store.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	user, err = gs.store.CreateUser(ctx, username)
	if errors.Is(err, store.ErrAlreadyExists) {
		return gs.store.GetUserByUsername(ctx, username)
	}
	return user, err
}

var errSessionFull = errors.New("session is full")

func (gs *GameServer) ensurePlayerState(ctx context.Context, userID int64, session *store.Session) (game.PlayerState, error) {
	unlock := gs.locks.Lock(session.ID, membershipKey)
	defer unlock()

	state, err := gs.store.GetPlayerState(ctx, userID, session.ID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return game.PlayerState{}, err
	}
	members, err := gs.store.GetSessionPlayers(ctx, session.ID)
	if err != nil {
		return game.PlayerState{}, err
	}
	if session.MaxPlayers > 0 && len(members) >= session.MaxPlayers {
		return game.PlayerState{}, errSessionFull
	}
	return gs.store.CreatePlayerState(ctx, userID, session.ID)
}

func (gs *GameServer) snapshot(ctx context.Context, user *store.User, session *store.Session, state game.PlayerState, roster []store.User) JoinedMsg {
	out := JoinedMsg{
		Type:          "joined",
		User:          user,
		Session:       session,
		PlayerState:   state,
		OnlinePlayers: roster,
		Materials:     game.Catalog(),
	}
	var err error
	if out.ChatMessages, err = gs.store.GetChatMessages(ctx, session.ID, gs.opts.ChatHistory); err != nil {
		zap.L().Warn("chat history", zap.Int64("session_id", session.ID), zap.Error(err))
	}
	if out.MarketListings, err = gs.store.GetMarketListings(ctx, session.ID); err != nil {
		zap.L().Warn("market listings", zap.Int64("session_id", session.ID), zap.Error(err))
	}
	if out.RecentActivities, err = gs.store.GetRecentActivities(ctx, session.ID, gs.opts.ActivityFeed); err != nil {
		zap.L().Warn("activities", zap.Int64("session_id", session.ID), zap.Error(err))
	}
	if out.TradeOffers, err = gs.store.GetTradeOffersForUser(ctx, user.ID, session.ID); err != nil {
		zap.L().Warn("trade offers", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return out
}

func (gs *GameServer) handleChat(ctx context.Context, c *Conn, msg Message) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}
	if utf8.RuneCountInString(content) > maxChatLen {
		send(c, errorMsg("message is too long"))
		return
	}
	m, err := gs.store.CreateChatMessage(ctx, store.ChatMessage{
		UserID:    c.userID,
		SessionID: c.sessionID,
		Message:   content,
	})
	if err != nil {
		zap.L().Error("create chat message", zap.Int64("user_id", c.userID), zap.Error(err))
		return
	}
	gs.hub.Broadcast(c.sessionID, ChatMsg{Type: "new_chat_message", Message: m}, 0)
}

func (gs *GameServer) handleGameAction(ctx context.Context, c *Conn, msg Message) {
	action, err := game.DecodeAction(msg.Action, msg.Data)
	if errors.Is(err, game.ErrUnknownAction) {
		zap.L().Info("unknown action ignored", zap.String("action", msg.Action), zap.Int64("user_id", c.userID))
		return
	}
	if err != nil {
		zap.L().Info("invalid action payload", zap.String("action", msg.Action), zap.Int64("user_id", c.userID), zap.Error(err))
		send(c, errorMsg("invalid action payload"))
		return
	}

	state, activity, listing, err := gs.applyAction(ctx, c.userID, c.sessionID, action)
	if err != nil {
		zap.L().Warn("game action dropped", zap.String("action", msg.Action), zap.Int64("user_id", c.userID), zap.Error(err))
		return
	}

	send(c, StateUpdateMsg{Type: "state_update", PlayerState: state})
	if listing != nil {
		gs.broadcastMarket(ctx, c.sessionID)
	}
	if activity != nil {
		gs.hub.Broadcast(c.sessionID, ActivityMsg{Type: "new_activity", Activity: activity}, 0)
	}
}

// applyAction runs one read-modify-write cycle under the player's lock.
func (gs *GameServer) applyAction(ctx context.Context, userID, sessionID int64, action game.Action) (game.PlayerState, *store.GameActivity, *store.MarketListing, error) {
	unlock := gs.locks.Lock(sessionID, userID)
	defer unlock()

	current, err := gs.store.GetPlayerState(ctx, userID, sessionID)
	if err != nil {
		return game.PlayerState{}, nil, nil, err
	}
	out := game.Apply(current, action, gs.now())
	if !out.Applied {
		return current, nil, nil, nil
	}
	if err := gs.store.ReplacePlayerState(ctx, out.State); err != nil {
		return game.PlayerState{}, nil, nil, err
	}

	var listing *store.MarketListing
	if out.Listing != nil {
		listing, err = gs.store.CreateListing(ctx, store.MarketListing{
			SellerID:  userID,
			SessionID: sessionID,
			ItemKey:   out.Listing.ItemKey,
			ItemName:  out.Listing.ItemName,
			ItemValue: out.Listing.ItemValue,
			Price:     out.Listing.Price,
			Materials: out.Listing.Materials,
		})
		if err != nil {
			return out.State, nil, nil, err
		}
	}
	return out.State, gs.recordActivity(ctx, userID, sessionID, out.Activity), listing, nil
}

func (gs *GameServer) recordActivity(ctx context.Context, userID, sessionID int64, draft *game.ActivityDraft) *store.GameActivity {
	if draft == nil {
		return nil
	}
	a, err := gs.store.CreateActivity(ctx, store.GameActivity{
		UserID:      userID,
		SessionID:   sessionID,
		Type:        draft.Type,
		Description: draft.Description,
	})
	if err != nil {
		zap.L().Error("create activity", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	return a
}

func (gs *GameServer) broadcastMarket(ctx context.Context, sessionID int64) {
	listings, err := gs.store.GetMarketListings(ctx, sessionID)
	if err != nil {
		zap.L().Error("market listings", zap.Int64("session_id", sessionID), zap.Error(err))
		return
	}
	gs.hub.Broadcast(sessionID, MarketUpdateMsg{Type: "market_update", MarketListings: listings}, 0)
}

func (gs *GameServer) handleBuyFromMarket(ctx context.Context, c *Conn, msg Message) {
	res, err := gs.purchase(ctx, c.userID, c.sessionID, msg.ListingID)
	if err != nil {
		zap.L().Warn("purchase dropped", zap.Int64("listing_id", msg.ListingID), zap.Int64("user_id", c.userID), zap.Error(err))
		return
	}
	send(c, StateUpdateMsg{Type: "state_update", PlayerState: res.buyer})
	if res.listing == nil {
		return
	}

	if res.seller.UserID != c.userID {
		buyer, _ := gs.store.GetUser(ctx, c.userID)
		gs.hub.SendTo(c.sessionID, res.seller.UserID, ItemSoldMsg{
			Type:     "item_sold",
			ItemName: res.listing.ItemName,
			Price:    res.listing.Price,
			Buyer:    buyer,
		})
		gs.hub.SendTo(c.sessionID, res.seller.UserID, StateUpdateMsg{Type: "state_update", PlayerState: res.seller})
	}
	gs.broadcastMarket(ctx, c.sessionID)
	if res.activity != nil {
		gs.hub.Broadcast(c.sessionID, ActivityMsg{Type: "new_activity", Activity: res.activity}, 0)
	}
}

type purchaseResult struct {
	buyer    game.PlayerState
	seller   game.PlayerState
	listing  *store.MarketListing
	activity *store.GameActivity
}

// purchase settles a listing with buyer and seller locked together. A
// missing listing or insufficient funds returns the buyer's unchanged
// state and a nil listing.
func (gs *GameServer) purchase(ctx context.Context, buyerID, sessionID, listingID int64) (purchaseResult, error) {
	var res purchaseResult
	listing, err := gs.store.GetListing(ctx, listingID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return res, err
	}
	if listing == nil || listing.SessionID != sessionID {
		res.buyer, err = gs.store.GetPlayerState(ctx, buyerID, sessionID)
		return res, err
	}

	unlock := gs.locks.Lock(sessionID, buyerID, listing.SellerID)
	defer unlock()

	if res.buyer, err = gs.store.GetPlayerState(ctx, buyerID, sessionID); err != nil {
		return res, err
	}
	// re-read under the seller's lock; a concurrent buyer may have won
	listing, err = gs.store.GetListing(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	seller, err := gs.store.GetPlayerState(ctx, listing.SellerID, sessionID)
	if err != nil {
		return res, err
	}

	out := game.Purchase(res.buyer, seller, game.Offer{
		ItemKey:  listing.ItemKey,
		ItemName: listing.ItemName,
		Price:    listing.Price,
	})
	if !out.Applied {
		return res, nil
	}
	if err := gs.store.DeleteListing(ctx, listing.ID); err != nil {
		return res, err
	}
	if err := gs.store.ReplacePlayerState(ctx, out.Buyer); err != nil {
		return res, err
	}
	if out.Seller.UserID != out.Buyer.UserID {
		if err := gs.store.ReplacePlayerState(ctx, out.Seller); err != nil {
			return res, err
		}
	}
	res.buyer = out.Buyer
	res.seller = out.Seller
	res.listing = listing
	res.activity = gs.recordActivity(ctx, buyerID, sessionID, out.Activity)
	return res, nil
}

func (gs *GameServer) handleTradeOffer(ctx context.Context, c *Conn, msg Message) {
	if msg.ToUserID == 0 || msg.ToUserID == c.userID {
		send(c, errorMsg("invalid trade target"))
		return
	}
	if len(msg.OfferItems) == 0 || !positiveCounts(msg.OfferItems) || !positiveCounts(msg.RequestItems) {
		send(c, errorMsg("invalid trade items"))
		return
	}
	if !gs.hub.IsOnline(c.sessionID, msg.ToUserID) {
		send(c, errorMsg("trade target is not online"))
		return
	}
	state, err := gs.store.GetPlayerState(ctx, c.userID, c.sessionID)
	if err != nil {
		zap.L().Warn("trade offer dropped", zap.Int64("user_id", c.userID), zap.Error(err))
		return
	}
	if !game.Holds(state, msg.OfferItems) {
		send(c, errorMsg("you do not have the offered items"))
		return
	}

	offer, err := gs.store.CreateTradeOffer(ctx, store.TradeOffer{
		FromUserID:   c.userID,
		ToUserID:     msg.ToUserID,
		SessionID:    c.sessionID,
		OfferItems:   msg.OfferItems,
		RequestItems: msg.RequestItems,
	})
	if err != nil {
		zap.L().Error("create trade offer", zap.Int64("user_id", c.userID), zap.Error(err))
		return
	}
	from, _ := gs.store.GetUser(ctx, c.userID)
	gs.hub.SendTo(c.sessionID, msg.ToUserID, TradeOfferMsg{Type: "trade_offer_received", Offer: offer, FromUser: from})
	send(c, TradeOfferMsg{Type: "trade_offer_sent", Offer: offer})
}

func (gs *GameServer) handleTradeResponse(ctx context.Context, c *Conn, msg Message) {
	offer, err := gs.store.GetTradeOffer(ctx, msg.OfferID)
	if err != nil || offer.SessionID != c.sessionID || offer.ToUserID != c.userID || offer.Status != store.TradePending {
		send(c, errorMsg("trade offer not available"))
		return
	}

	if !msg.Accept {
		if err := gs.store.SetTradeOfferStatus(ctx, offer.ID, store.TradeDeclined); err != nil {
			send(c, errorMsg("trade offer not available"))
			return
		}
		offer.Status = store.TradeDeclined
		gs.notifyTradeResolved(c, offer)
		return
	}

	from, to, activity, err := gs.settleTrade(ctx, offer)
	if errors.Is(err, errTradeUnavailable) {
		send(c, errorMsg("trade can no longer be completed"))
		return
	}
	if err != nil {
		zap.L().Error("settle trade", zap.Int64("offer_id", offer.ID), zap.Error(err))
		return
	}
	offer.Status = store.TradeAccepted

	send(c, StateUpdateMsg{Type: "state_update", PlayerState: to})
	gs.hub.SendTo(c.sessionID, offer.FromUserID, StateUpdateMsg{Type: "state_update", PlayerState: from})
	gs.notifyTradeResolved(c, offer)
	if activity != nil {
		gs.hub.Broadcast(c.sessionID, ActivityMsg{Type: "new_activity", Activity: activity}, 0)
	}
}

func (gs *GameServer) notifyTradeResolved(c *Conn, offer *store.TradeOffer) {
	resolved := TradeOfferMsg{Type: "trade_offer_resolved", Offer: offer}
	send(c, resolved)
	gs.hub.SendTo(c.sessionID, offer.FromUserID, resolved)
}

var errTradeUnavailable = errors.New("trade unavailable")

func (gs *GameServer) settleTrade(ctx context.Context, offer *store.TradeOffer) (game.PlayerState, game.PlayerState, *store.GameActivity, error) {
	var zero game.PlayerState
	unlock := gs.locks.Lock(offer.SessionID, offer.FromUserID, offer.ToUserID)
	defer unlock()

	current, err := gs.store.GetTradeOffer(ctx, offer.ID)
	if err != nil {
		return zero, zero, nil, err
	}
	if current.Status != store.TradePending {
		return zero, zero, nil, errTradeUnavailable
	}
	from, err := gs.store.GetPlayerState(ctx, offer.FromUserID, offer.SessionID)
	if err != nil {
		return zero, zero, nil, err
	}
	to, err := gs.store.GetPlayerState(ctx, offer.ToUserID, offer.SessionID)
	if err != nil {
		return zero, zero, nil, err
	}

	out := game.SettleTrade(from, to, current.OfferItems, current.RequestItems)
	if !out.Applied {
		return zero, zero, nil, errTradeUnavailable
	}
	if err := gs.store.SetTradeOfferStatus(ctx, offer.ID, store.TradeAccepted); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return zero, zero, nil, errTradeUnavailable
		}
		return zero, zero, nil, err
	}
	if err := gs.store.ReplacePlayerState(ctx, out.From); err != nil {
		return zero, zero, nil, err
	}
	if err := gs.store.ReplacePlayerState(ctx, out.To); err != nil {
		return zero, zero, nil, err
	}
	return out.From, out.To, gs.recordActivity(ctx, offer.ToUserID, offer.SessionID, out.Activity), nil
}

func positiveCounts(items map[string]int) bool {
	for key, qty := range items {
		if key == "" || qty <= 0 {
			return false
		}
	}
	return true
}

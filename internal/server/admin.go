package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/example/multiplayer-trader/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type sessionSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	MaxPlayers   int    `json:"maxPlayers"`
	PlayerCount  int    `json:"playerCount"`
	OnlineCount  int    `json:"onlineCount"`
	ListingCount int    `json:"listingCount"`
}

type sessionDetail struct {
	sessionSummary
	Players        []store.User          `json:"players"`
	OnlinePlayers  []store.User          `json:"onlinePlayers"`
	MarketListings []store.MarketListing `json:"marketListings"`
}

func (gs *GameServer) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := gs.store.ListSessions(r.Context())
	if err != nil {
		zap.L().Error("list sessions", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp := make([]sessionSummary, 0, len(sessions))
	for i := range sessions {
		d, err := gs.describeSession(r, &sessions[i])
		if err != nil {
			zap.L().Error("describe session", zap.String("session", sessions[i].Name), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		resp = append(resp, d.sessionSummary)
	}
	// sort for stable output
	sort.Slice(resp, func(i, j int) bool { return resp[i].ID < resp[j].ID })
	writeJSON(w, http.StatusOK, resp)
}

func (gs *GameServer) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	session, err := gs.store.GetSessionByName(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		zap.L().Error("get session", zap.String("session", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	d, err := gs.describeSession(r, session)
	if err != nil {
		zap.L().Error("describe session", zap.String("session", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (gs *GameServer) describeSession(r *http.Request, s *store.Session) (sessionDetail, error) {
	members, err := gs.store.GetSessionPlayers(r.Context(), s.ID)
	if err != nil {
		return sessionDetail{}, err
	}
	listings, err := gs.store.GetMarketListings(r.Context(), s.ID)
	if err != nil {
		return sessionDetail{}, err
	}
	online := gs.SessionPlayers(r.Context(), s.ID)
	return sessionDetail{
		sessionSummary: sessionSummary{
			ID:           s.ID,
			Name:         s.Name,
			MaxPlayers:   s.MaxPlayers,
			PlayerCount:  len(members),
			OnlineCount:  len(online),
			ListingCount: len(listings),
		},
		Players:        members,
		OnlinePlayers:  online,
		MarketListings: listings,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

package game

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	StartingMoney      = 10
	StartingClickPower = 1
)

type DiscoveredItem struct {
	Name       string         `json:"name"`
	Value      int            `json:"value"`
	Materials  map[string]int `json:"materials"`
	Discovered time.Time      `json:"discovered"`
}

// PlayerState is the per (user, session) game state. It is always replaced
// as a whole; use Clone before mutating a value read from a store.
type PlayerState struct {
	UserID            int64                     `json:"userId"`
	SessionID         int64                     `json:"sessionId"`
	Money             int                       `json:"money"`
	ClickPower        int                       `json:"clickPower"`
	Materials         map[string]int            `json:"materials"`
	UnlockedMaterials []string                  `json:"unlockedMaterials"`
	DiscoveredItems   map[string]DiscoveredItem `json:"discoveredItems"`
	CraftedItems      map[string]int            `json:"craftedItems"`
	TotalDiscoveries  int                       `json:"totalDiscoveries"`
}

func NewPlayerState(userID, sessionID int64) PlayerState {
	return PlayerState{
		UserID:            userID,
		SessionID:         sessionID,
		Money:             StartingMoney,
		ClickPower:        StartingClickPower,
		Materials:         map[string]int{},
		UnlockedMaterials: append([]string(nil), StarterMaterials...),
		DiscoveredItems:   map[string]DiscoveredItem{},
		CraftedItems:      map[string]int{},
	}
}

func (s PlayerState) Clone() PlayerState {
	out := s
	out.Materials = copyCounts(s.Materials)
	out.CraftedItems = copyCounts(s.CraftedItems)
	out.UnlockedMaterials = append([]string(nil), s.UnlockedMaterials...)
	out.DiscoveredItems = make(map[string]DiscoveredItem, len(s.DiscoveredItems))
	for k, v := range s.DiscoveredItems {
		v.Materials = copyCounts(v.Materials)
		out.DiscoveredItems[k] = v
	}
	return out
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RecipeKey encodes a material selection as "name:qty" pairs sorted by
// material name, so equal selections always collide. Zero quantities are
// dropped.
func RecipeKey(selection map[string]int) string {
	names := make([]string, 0, len(selection))
	for name, qty := range selection {
		if qty == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ":" + strconv.Itoa(selection[name])
	}
	return strings.Join(parts, ",")
}

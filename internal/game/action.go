package game

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid action payload")
)

const (
	ActionClickMoney   = "click_money"
	ActionUpgradeClick = "upgrade_click"
	ActionBuyMaterial  = "buy_material"
	ActionCraftItem    = "craft_item"
	ActionSellToMarket = "sell_to_market"
)

// Action is one validated game_action variant.
type Action interface {
	Name() string
	validate() error
}

type ClickMoney struct{}

type UpgradeClick struct{}

type BuyMaterial struct {
	Material string `json:"material"`
}

type CraftItem struct {
	SelectedMaterials map[string]int `json:"selectedMaterials"`
	ItemName          string         `json:"itemName"`
	ItemValue         int            `json:"itemValue"`
}

// SellToMarket lists one crafted item. Name, value and materials are only
// used when the seller has no discovery record for the key (items bought
// from the market).
type SellToMarket struct {
	ItemKey   string         `json:"itemKey"`
	ItemName  string         `json:"itemName"`
	ItemValue int            `json:"itemValue"`
	Materials map[string]int `json:"materials"`
	Price     int            `json:"price"`
}

func (ClickMoney) Name() string   { return ActionClickMoney }
func (UpgradeClick) Name() string { return ActionUpgradeClick }
func (BuyMaterial) Name() string  { return ActionBuyMaterial }
func (CraftItem) Name() string    { return ActionCraftItem }
func (SellToMarket) Name() string { return ActionSellToMarket }

func (ClickMoney) validate() error   { return nil }
func (UpgradeClick) validate() error { return nil }

func (a BuyMaterial) validate() error {
	if strings.TrimSpace(a.Material) == "" {
		return fmt.Errorf("%w: material is required", ErrInvalidPayload)
	}
	return nil
}

func (a CraftItem) validate() error {
	if len(a.SelectedMaterials) == 0 {
		return fmt.Errorf("%w: selectedMaterials is required", ErrInvalidPayload)
	}
	for name, qty := range a.SelectedMaterials {
		if name == "" || qty <= 0 {
			return fmt.Errorf("%w: bad quantity for %q", ErrInvalidPayload, name)
		}
	}
	if strings.TrimSpace(a.ItemName) == "" {
		return fmt.Errorf("%w: itemName is required", ErrInvalidPayload)
	}
	if a.ItemValue < 0 {
		return fmt.Errorf("%w: itemValue must not be negative", ErrInvalidPayload)
	}
	return nil
}

func (a SellToMarket) validate() error {
	if a.ItemKey == "" {
		return fmt.Errorf("%w: itemKey is required", ErrInvalidPayload)
	}
	if a.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidPayload)
	}
	return nil
}

// DecodeAction turns a game_action name and its raw data into a typed
// Action. Unknown names yield ErrUnknownAction, shape mismatches
// ErrInvalidPayload.
func DecodeAction(name string, data json.RawMessage) (Action, error) {
	var a Action
	switch name {
	case ActionClickMoney:
		return ClickMoney{}, nil
	case ActionUpgradeClick:
		return UpgradeClick{}, nil
	case ActionBuyMaterial:
		var v BuyMaterial
		if err := decodeData(data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionCraftItem:
		var v CraftItem
		if err := decodeData(data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionSellToMarket:
		var v SellToMarket
		if err := decodeData(data, &v); err != nil {
			return nil, err
		}
		a = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeData(data json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

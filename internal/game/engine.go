package game

import (
	"fmt"
	"math"
	"time"
)

type ActivityType string

const (
	ActivityDiscovery ActivityType = "discovery"
	ActivitySale      ActivityType = "sale"
	ActivityPurchase  ActivityType = "purchase"
	ActivityTrade     ActivityType = "trade"
)

type ActivityDraft struct {
	Type        ActivityType
	Description string
}

type ListingDraft struct {
	ItemKey   string
	ItemName  string
	ItemValue int
	Price     int
	Materials map[string]int
}

// Outcome is the result of Apply. When Applied is false State equals the
// input state.
type Outcome struct {
	State    PlayerState
	Applied  bool
	Activity *ActivityDraft
	Listing  *ListingDraft
}

// UpgradeCost is floor(10 * 1.5^(p-1)) for the current click power p.
func UpgradeCost(clickPower int) int {
	return int(math.Floor(10 * math.Pow(1.5, float64(clickPower-1))))
}

// Apply computes the next state for a single action. It never mutates the
// given state.
func Apply(state PlayerState, action Action, now time.Time) Outcome {
	noop := Outcome{State: state}
	next := state.Clone()

	switch a := action.(type) {
	case ClickMoney:
		next.Money += next.ClickPower
	case UpgradeClick:
		cost := UpgradeCost(next.ClickPower)
		if next.Money < cost {
			return noop
		}
		next.Money -= cost
		next.ClickPower++
	case BuyMaterial:
		m, ok := LookupMaterial(a.Material)
		if !ok || next.Money < m.Price {
			return noop
		}
		next.Money -= m.Price
		next.Materials[m.Name]++
		applyUnlocks(&next)
	case CraftItem:
		return craft(state, next, a, now)
	case SellToMarket:
		return sell(state, next, a)
	default:
		return noop
	}
	return Outcome{State: next, Applied: true}
}

func craft(state, next PlayerState, a CraftItem, now time.Time) Outcome {
	for name, qty := range a.SelectedMaterials {
		if qty <= 0 || next.Materials[name] < qty {
			return Outcome{State: state}
		}
	}
	for name, qty := range a.SelectedMaterials {
		next.Materials[name] -= qty
		if next.Materials[name] == 0 {
			delete(next.Materials, name)
		}
	}

	out := Outcome{Applied: true}
	key := RecipeKey(a.SelectedMaterials)
	if _, seen := next.DiscoveredItems[key]; !seen {
		next.DiscoveredItems[key] = DiscoveredItem{
			Name:       a.ItemName,
			Value:      a.ItemValue,
			Materials:  copyCounts(a.SelectedMaterials),
			Discovered: now,
		}
		out.Activity = &ActivityDraft{
			Type:        ActivityDiscovery,
			Description: "discovered " + a.ItemName,
		}
	}
	next.CraftedItems[key]++
	next.TotalDiscoveries = len(next.DiscoveredItems)
	applyUnlocks(&next)

	out.State = next
	return out
}

func sell(state, next PlayerState, a SellToMarket) Outcome {
	if next.CraftedItems[a.ItemKey] < 1 {
		return Outcome{State: state}
	}
	next.CraftedItems[a.ItemKey]--

	listing := &ListingDraft{
		ItemKey:   a.ItemKey,
		ItemName:  a.ItemName,
		ItemValue: a.ItemValue,
		Price:     a.Price,
		Materials: copyCounts(a.Materials),
	}
	if item, ok := next.DiscoveredItems[a.ItemKey]; ok {
		listing.ItemName = item.Name
		listing.ItemValue = item.Value
		listing.Materials = copyCounts(item.Materials)
	}
	if listing.ItemName == "" {
		listing.ItemName = a.ItemKey
	}

	return Outcome{
		State:   next,
		Applied: true,
		Listing: listing,
		Activity: &ActivityDraft{
			Type:        ActivitySale,
			Description: fmt.Sprintf("listed %s for $%d", listing.ItemName, listing.Price),
		},
	}
}

// Offer is the part of a market listing needed to settle a purchase.
type Offer struct {
	ItemKey  string
	ItemName string
	Price    int
}

type PurchaseOutcome struct {
	Buyer    PlayerState
	Seller   PlayerState
	Applied  bool
	Activity *ActivityDraft
}

// Purchase moves one listed item from the market to the buyer and credits
// the seller. A buyer purchasing their own listing pays themselves.
func Purchase(buyer, seller PlayerState, offer Offer) PurchaseOutcome {
	if buyer.Money < offer.Price {
		return PurchaseOutcome{Buyer: buyer, Seller: seller}
	}
	nextBuyer := buyer.Clone()
	nextBuyer.Money -= offer.Price
	nextBuyer.CraftedItems[offer.ItemKey]++

	var nextSeller PlayerState
	if buyer.UserID == seller.UserID {
		nextBuyer.Money += offer.Price
		nextSeller = nextBuyer
	} else {
		nextSeller = seller.Clone()
		nextSeller.Money += offer.Price
	}

	return PurchaseOutcome{
		Buyer:   nextBuyer,
		Seller:  nextSeller,
		Applied: true,
		Activity: &ActivityDraft{
			Type:        ActivityPurchase,
			Description: fmt.Sprintf("bought %s for $%d", offer.ItemName, offer.Price),
		},
	}
}

type TradeOutcome struct {
	From     PlayerState
	To       PlayerState
	Applied  bool
	Activity *ActivityDraft
}

// Holds reports whether the state owns at least the given crafted items.
func Holds(state PlayerState, items map[string]int) bool {
	for key, qty := range items {
		if qty < 0 || state.CraftedItems[key] < qty {
			return false
		}
	}
	return true
}

// SettleTrade swaps offered items (from -> to) against requested items
// (to -> from). Both sides must still hold what they give.
func SettleTrade(from, to PlayerState, offerItems, requestItems map[string]int) TradeOutcome {
	if from.UserID == to.UserID || !Holds(from, offerItems) || !Holds(to, requestItems) {
		return TradeOutcome{From: from, To: to}
	}
	nextFrom := from.Clone()
	nextTo := to.Clone()
	moveItems(nextFrom.CraftedItems, nextTo.CraftedItems, offerItems)
	moveItems(nextTo.CraftedItems, nextFrom.CraftedItems, requestItems)

	return TradeOutcome{
		From:    nextFrom,
		To:      nextTo,
		Applied: true,
		Activity: &ActivityDraft{
			Type:        ActivityTrade,
			Description: fmt.Sprintf("traded %d item(s) for %d item(s)", countItems(offerItems), countItems(requestItems)),
		},
	}
}

func moveItems(src, dst map[string]int, items map[string]int) {
	for key, qty := range items {
		if qty == 0 {
			continue
		}
		src[key] -= qty
		dst[key] += qty
	}
}

func countItems(items map[string]int) int {
	n := 0
	for _, qty := range items {
		n += qty
	}
	return n
}

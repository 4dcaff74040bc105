package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestUpgradeCost(t *testing.T) {
	tests := []struct {
		power int
		cost  int
	}{
		{1, 10},
		{2, 15},
		{3, 22},
		{4, 33},
		{5, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.cost, UpgradeCost(tt.power), "power %d", tt.power)
	}
}

func TestApply_ClickThenUpgrade(t *testing.T) {
	s := NewPlayerState(1, 1)

	out := Apply(s, ClickMoney{}, now)
	require.True(t, out.Applied)
	assert.Equal(t, 11, out.State.Money)

	out = Apply(out.State, UpgradeClick{}, now)
	require.True(t, out.Applied)
	assert.Equal(t, 1, out.State.Money)
	assert.Equal(t, 2, out.State.ClickPower)

	out = Apply(out.State, UpgradeClick{}, now)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, out.State.Money)
	assert.Equal(t, 2, out.State.ClickPower)
}

func TestApply_BuyMaterialNeverNegative(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Money = 20

	prev := s.Money
	for i := 0; i < 10; i++ {
		out := Apply(s, BuyMaterial{Material: "oxygen"}, now)
		if out.Applied {
			assert.Equal(t, prev-4, out.State.Money)
		} else {
			assert.Equal(t, prev, out.State.Money)
		}
		assert.GreaterOrEqual(t, out.State.Money, 0)
		s = out.State
		prev = s.Money
	}
	assert.Equal(t, 0, s.Money)
	assert.Equal(t, 5, s.Materials["oxygen"])
}

func TestApply_BuyUnknownMaterial(t *testing.T) {
	s := NewPlayerState(1, 1)
	out := Apply(s, BuyMaterial{Material: "unobtainium"}, now)
	assert.False(t, out.Applied)
	assert.Equal(t, StartingMoney, out.State.Money)
	assert.Empty(t, out.State.Materials)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Materials["hydrogen"] = 2
	s.Materials["oxygen"] = 1

	out := Apply(s, CraftItem{
		SelectedMaterials: map[string]int{"hydrogen": 2, "oxygen": 1},
		ItemName:          "Pure Water",
		ItemValue:         10,
	}, now)
	require.True(t, out.Applied)
	assert.Equal(t, 2, s.Materials["hydrogen"])
	assert.Empty(t, s.CraftedItems)
	assert.Empty(t, s.DiscoveredItems)
}

func TestApply_CraftIsOrderIndependent(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Materials = map[string]int{"hydrogen": 4, "oxygen": 2}

	first := Apply(s, CraftItem{
		SelectedMaterials: map[string]int{"hydrogen": 2, "oxygen": 1},
		ItemName:          "Pure Water",
		ItemValue:         10,
	}, now)
	require.True(t, first.Applied)
	require.NotNil(t, first.Activity)
	assert.Equal(t, ActivityDiscovery, first.Activity.Type)

	second := Apply(first.State, CraftItem{
		SelectedMaterials: map[string]int{"oxygen": 1, "hydrogen": 2},
		ItemName:          "Something Else",
		ItemValue:         999,
	}, now.Add(time.Minute))
	require.True(t, second.Applied)
	assert.Nil(t, second.Activity)

	key := "hydrogen:2,oxygen:1"
	st := second.State
	assert.Equal(t, 2, st.CraftedItems[key])
	assert.Len(t, st.DiscoveredItems, 1)
	assert.Equal(t, 1, st.TotalDiscoveries)
	assert.Equal(t, "Pure Water", st.DiscoveredItems[key].Name)
	assert.Equal(t, now, st.DiscoveredItems[key].Discovered)
	assert.Empty(t, st.Materials)
}

func TestApply_CraftInsufficientMaterials(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Materials = map[string]int{"hydrogen": 1}

	out := Apply(s, CraftItem{
		SelectedMaterials: map[string]int{"hydrogen": 2},
		ItemName:          "Gas",
	}, now)
	assert.False(t, out.Applied)
	assert.Equal(t, 1, out.State.Materials["hydrogen"])
	assert.Empty(t, out.State.CraftedItems)
}

func TestApply_TotalDiscoveriesTracksDistinctKeys(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Materials = map[string]int{"hydrogen": 10, "carbon": 10}

	selections := []map[string]int{
		{"hydrogen": 1},
		{"carbon": 1},
		{"hydrogen": 1},
		{"carbon": 1, "hydrogen": 1},
		{"hydrogen": 1, "carbon": 1},
	}
	for _, sel := range selections {
		out := Apply(s, CraftItem{SelectedMaterials: sel, ItemName: "x"}, now)
		require.True(t, out.Applied)
		s = out.State
		assert.Equal(t, len(s.DiscoveredItems), s.TotalDiscoveries)
	}
	assert.Equal(t, 3, s.TotalDiscoveries)
}

func TestApply_SellToMarket(t *testing.T) {
	s := NewPlayerState(1, 1)
	key := "hydrogen:2,oxygen:1"
	s.CraftedItems[key] = 1
	s.DiscoveredItems[key] = DiscoveredItem{Name: "Pure Water", Value: 12, Materials: map[string]int{"hydrogen": 2, "oxygen": 1}}

	out := Apply(s, SellToMarket{ItemKey: key, ItemName: "ignored", Price: 50}, now)
	require.True(t, out.Applied)
	require.NotNil(t, out.Listing)
	assert.Equal(t, 0, out.State.CraftedItems[key])
	assert.Equal(t, "Pure Water", out.Listing.ItemName)
	assert.Equal(t, 12, out.Listing.ItemValue)
	assert.Equal(t, 50, out.Listing.Price)
	assert.Equal(t, StartingMoney, out.State.Money)
	require.NotNil(t, out.Activity)
	assert.Equal(t, ActivitySale, out.Activity.Type)
	assert.Equal(t, "listed Pure Water for $50", out.Activity.Description)

	again := Apply(out.State, SellToMarket{ItemKey: key, Price: 50}, now)
	assert.False(t, again.Applied)
	assert.Nil(t, again.Listing)
}

func TestPurchase(t *testing.T) {
	key := "gold:1"
	buyer := NewPlayerState(2, 1)
	buyer.Money = 100
	seller := NewPlayerState(1, 1)

	out := Purchase(buyer, seller, Offer{ItemKey: key, ItemName: "Nugget", Price: 50})
	require.True(t, out.Applied)
	assert.Equal(t, 50, out.Buyer.Money)
	assert.Equal(t, 1, out.Buyer.CraftedItems[key])
	assert.Equal(t, StartingMoney+50, out.Seller.Money)
	assert.Equal(t, ActivityPurchase, out.Activity.Type)

	poor := NewPlayerState(3, 1)
	out = Purchase(poor, seller, Offer{ItemKey: key, Price: 50})
	assert.False(t, out.Applied)
	assert.Equal(t, StartingMoney, out.Buyer.Money)
	assert.Equal(t, StartingMoney, out.Seller.Money)
}

func TestPurchase_OwnListing(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Money = 40

	out := Purchase(s, s, Offer{ItemKey: "k", Price: 30})
	require.True(t, out.Applied)
	assert.Equal(t, 40, out.Buyer.Money)
	assert.Equal(t, 1, out.Buyer.CraftedItems["k"])
	assert.Equal(t, out.Buyer, out.Seller)
}

func TestSettleTrade(t *testing.T) {
	from := NewPlayerState(1, 1)
	from.CraftedItems["a"] = 2
	to := NewPlayerState(2, 1)
	to.CraftedItems["b"] = 1

	out := SettleTrade(from, to, map[string]int{"a": 2}, map[string]int{"b": 1})
	require.True(t, out.Applied)
	assert.Equal(t, 0, out.From.CraftedItems["a"])
	assert.Equal(t, 1, out.From.CraftedItems["b"])
	assert.Equal(t, 2, out.To.CraftedItems["a"])
	assert.Equal(t, 0, out.To.CraftedItems["b"])
	assert.Equal(t, ActivityTrade, out.Activity.Type)

	again := SettleTrade(out.From, out.To, map[string]int{"a": 2}, map[string]int{"b": 1})
	assert.False(t, again.Applied)
}

func TestUnlocks(t *testing.T) {
	s := NewPlayerState(1, 1)
	s.Money = 1000
	for i := 0; i < 5; i++ {
		s = Apply(s, BuyMaterial{Material: "hydrogen"}, now).State
	}
	assert.Contains(t, s.UnlockedMaterials, "sodium")
	assert.NotContains(t, s.UnlockedMaterials, "iron")
	assert.Equal(t, StarterMaterials, s.UnlockedMaterials[:3])
}

func TestRecipeKey(t *testing.T) {
	assert.Equal(t, "carbon:1,iron:2", RecipeKey(map[string]int{"iron": 2, "carbon": 1}))
	assert.Equal(t, "carbon:1", RecipeKey(map[string]int{"iron": 0, "carbon": 1}))
	assert.Equal(t, "", RecipeKey(nil))
}

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		data    string
		want    Action
		wantErr error
	}{
		{name: "click", action: "click_money", want: ClickMoney{}},
		{name: "upgrade ignores data", action: "upgrade_click", data: `{"x":1}`, want: UpgradeClick{}},
		{name: "buy", action: "buy_material", data: `{"material":"iron"}`, want: BuyMaterial{Material: "iron"}},
		{name: "buy missing data", action: "buy_material", wantErr: ErrInvalidPayload},
		{name: "buy wrong type", action: "buy_material", data: `{"material":5}`, wantErr: ErrInvalidPayload},
		{name: "craft empty", action: "craft_item", data: `{"selectedMaterials":{},"itemName":"x"}`, wantErr: ErrInvalidPayload},
		{name: "craft zero qty", action: "craft_item", data: `{"selectedMaterials":{"iron":0},"itemName":"x"}`, wantErr: ErrInvalidPayload},
		{name: "craft no name", action: "craft_item", data: `{"selectedMaterials":{"iron":1}}`, wantErr: ErrInvalidPayload},
		{
			name:   "craft",
			action: "craft_item",
			data:   `{"selectedMaterials":{"iron":1},"itemName":"Bar","itemValue":70}`,
			want:   CraftItem{SelectedMaterials: map[string]int{"iron": 1}, ItemName: "Bar", ItemValue: 70},
		},
		{name: "sell no price", action: "sell_to_market", data: `{"itemKey":"iron:1"}`, wantErr: ErrInvalidPayload},
		{name: "unknown", action: "teleport", wantErr: ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction(tt.action, json.RawMessage(tt.data))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_Ordering(t *testing.T) {
	all := Catalog()
	require.Len(t, all, len(catalog))
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Tier != cur.Tier {
			assert.Less(t, prev.Tier, cur.Tier)
			continue
		}
		if prev.Price != cur.Price {
			assert.Less(t, prev.Price, cur.Price)
			continue
		}
		assert.Less(t, prev.Name, cur.Name)
	}
	for _, name := range StarterMaterials {
		m, ok := LookupMaterial(name)
		require.True(t, ok)
		assert.Contains(t, all, m)
	}
}

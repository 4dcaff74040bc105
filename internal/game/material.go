package game

import "sort"

type Material struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Tier  int    `json:"tier"`
}

var catalog = map[string]Material{
	"hydrogen":      {Name: "hydrogen", Price: 3, Tier: 1},
	"helium":        {Name: "helium", Price: 5, Tier: 1},
	"lithium":       {Name: "lithium", Price: 8, Tier: 1},
	"carbon":        {Name: "carbon", Price: 4, Tier: 1},
	"nitrogen":      {Name: "nitrogen", Price: 6, Tier: 1},
	"oxygen":        {Name: "oxygen", Price: 4, Tier: 1},
	"fluorine":      {Name: "fluorine", Price: 10, Tier: 1},
	"sodium":        {Name: "sodium", Price: 15, Tier: 2},
	"magnesium":     {Name: "magnesium", Price: 20, Tier: 2},
	"aluminum":      {Name: "aluminum", Price: 25, Tier: 2},
	"silicon":       {Name: "silicon", Price: 30, Tier: 2},
	"phosphorus":    {Name: "phosphorus", Price: 35, Tier: 2},
	"sulfur":        {Name: "sulfur", Price: 28, Tier: 2},
	"chlorine":      {Name: "chlorine", Price: 32, Tier: 2},
	"potassium":     {Name: "potassium", Price: 45, Tier: 3},
	"calcium":       {Name: "calcium", Price: 50, Tier: 3},
	"iron":          {Name: "iron", Price: 60, Tier: 3},
	"copper":        {Name: "copper", Price: 70, Tier: 3},
	"zinc":          {Name: "zinc", Price: 80, Tier: 3},
	"silver":        {Name: "silver", Price: 150, Tier: 4},
	"gold":          {Name: "gold", Price: 300, Tier: 4},
	"mercury":       {Name: "mercury", Price: 200, Tier: 4},
	"lead":          {Name: "lead", Price: 120, Tier: 4},
	"uranium":       {Name: "uranium", Price: 500, Tier: 4},
	"water":         {Name: "water", Price: 50, Tier: 5},
	"oil":           {Name: "oil", Price: 100, Tier: 5},
	"acid":          {Name: "acid", Price: 150, Tier: 5},
	"crystal":       {Name: "crystal", Price: 400, Tier: 5},
	"plasma":        {Name: "plasma", Price: 800, Tier: 5},
	"antimatter":    {Name: "antimatter", Price: 2000, Tier: 6},
	"darkMatter":    {Name: "darkMatter", Price: 3000, Tier: 6},
	"quantumFoam":   {Name: "quantumFoam", Price: 5000, Tier: 6},
	"strangeMatter": {Name: "strangeMatter", Price: 4000, Tier: 6},
	"neutronium":    {Name: "neutronium", Price: 6000, Tier: 6},
	"photons":       {Name: "photons", Price: 1000, Tier: 7},
	"gravitons":     {Name: "gravitons", Price: 8000, Tier: 7},
	"tachyons":      {Name: "tachyons", Price: 10000, Tier: 7},
	"quarks":        {Name: "quarks", Price: 7000, Tier: 7},
	"bosons":        {Name: "bosons", Price: 9000, Tier: 7},
	"neutrinos":     {Name: "neutrinos", Price: 12000, Tier: 7},
}

// StarterMaterials are unlocked for every new player state.
var StarterMaterials = []string{"hydrogen", "carbon", "oxygen"}

func LookupMaterial(name string) (Material, bool) {
	m, ok := catalog[name]
	return m, ok
}

// Catalog returns all materials ordered by tier, then price.
func Catalog() []Material {
	out := make([]Material, 0, len(catalog))
	for _, m := range catalog {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type unlockTier struct {
	minMaterials   int
	minDiscoveries int
	materials      []string
}

// Thresholds are checked against the materials currently held and the
// number of distinct discoveries.
var unlockTiers = []unlockTier{
	{minMaterials: 5, materials: []string{"helium", "lithium", "nitrogen", "fluorine", "sodium", "magnesium", "aluminum"}},
	{minMaterials: 20, materials: []string{"silicon", "phosphorus", "sulfur", "chlorine", "iron", "copper"}},
	{minMaterials: 50, materials: []string{"potassium", "calcium", "zinc", "silver", "gold"}},
	{minMaterials: 100, materials: []string{"mercury", "lead", "uranium", "water", "oil", "acid"}},
	{minDiscoveries: 20, materials: []string{"crystal", "plasma"}},
	{minDiscoveries: 50, materials: []string{"antimatter", "darkMatter"}},
	{minDiscoveries: 100, materials: []string{"quantumFoam", "strangeMatter", "neutronium", "photons", "gravitons", "tachyons", "quarks", "bosons", "neutrinos"}},
}

func applyUnlocks(s *PlayerState) {
	held := 0
	for _, n := range s.Materials {
		held += n
	}
	have := make(map[string]struct{}, len(s.UnlockedMaterials))
	for _, m := range s.UnlockedMaterials {
		have[m] = struct{}{}
	}
	for _, tier := range unlockTiers {
		if tier.minMaterials > 0 && held < tier.minMaterials {
			continue
		}
		if tier.minDiscoveries > 0 && s.TotalDiscoveries < tier.minDiscoveries {
			continue
		}
		for _, m := range tier.materials {
			if _, ok := have[m]; ok {
				continue
			}
			have[m] = struct{}{}
			s.UnlockedMaterials = append(s.UnlockedMaterials, m)
		}
	}
}

package comparator

import "strings"

// Store describes a retailer quoted by the generator.
type Store struct {
	ID               string
	Name             string
	PriceVariation   float64
	StockProbability float64
	DeliveryMin      int
	DeliveryMax      int
}

// Stores is the fixed retailer catalog, in quoting order.
var Stores = []Store{
	{ID: "amazon-es", Name: "Amazon España", PriceVariation: 0.95, StockProbability: 0.95, DeliveryMin: 1, DeliveryMax: 3},
	{ID: "nike-official", Name: "Nike Official Store", PriceVariation: 1.0, StockProbability: 0.90, DeliveryMin: 2, DeliveryMax: 5},
	{ID: "adidas-official", Name: "Adidas Official Store", PriceVariation: 1.0, StockProbability: 0.90, DeliveryMin: 2, DeliveryMax: 5},
	{ID: "zalando", Name: "Zalando", PriceVariation: 0.98, StockProbability: 0.85, DeliveryMin: 3, DeliveryMax: 7},
	{ID: "elcorteingles", Name: "El Corte Inglés", PriceVariation: 1.05, StockProbability: 0.80, DeliveryMin: 2, DeliveryMax: 4},
	{ID: "sprinter", Name: "Sprinter", PriceVariation: 1.02, StockProbability: 0.75, DeliveryMin: 3, DeliveryMax: 6},
}

var (
	footwearCategories = map[string]bool{"shoes": true, "sneakers": true, "deportivos": true}
	clothingCategories = map[string]bool{"clothing": true, "ropa": true}

	// stores without a clothing catalog
	clothingExcluded = map[string]bool{"nike-official": true}
)

// StoresForCategory returns the stores that quote products of category.
// Unknown categories are quoted by every store.
func StoresForCategory(category string) []Store {
	c := strings.ToLower(category)
	switch {
	case footwearCategories[c]:
		return Stores
	case clothingCategories[c]:
		out := make([]Store, 0, len(Stores))
		for _, s := range Stores {
			if !clothingExcluded[s.ID] {
				out = append(out, s)
			}
		}
		return out
	default:
		return Stores
	}
}

package comparator

import "time"

const Currency = "EUR"

// StoreQuote is one store's offer for a comparator product.
type StoreQuote struct {
	StoreID            string    `json:"storeId" bson:"storeId"`
	StoreName          string    `json:"storeName" bson:"storeName"`
	Price              float64   `json:"price" bson:"price"`
	PreviousPrice      *float64  `json:"previousPrice" bson:"previousPrice"`
	DiscountPercentage int       `json:"discountPercentage" bson:"discountPercentage"`
	Currency           string    `json:"currency" bson:"currency"`
	InStock            bool      `json:"inStock" bson:"inStock"`
	StockQuantity      int       `json:"stockQuantity" bson:"stockQuantity"`
	DeliveryDays       int       `json:"deliveryDays" bson:"deliveryDays"`
	Rating             float64   `json:"rating" bson:"rating"`
	ReviewCount        int       `json:"reviewCount" bson:"reviewCount"`
	LastUpdated        time.Time `json:"lastUpdated" bson:"lastUpdated"`
	URL                string    `json:"url" bson:"url"`
}

type Product struct {
	ProductID       string       `json:"productId" bson:"productId"`
	Name            string       `json:"name" bson:"name"`
	Brand           string       `json:"brand" bson:"brand"`
	Category        string       `json:"category" bson:"category"`
	Description     string       `json:"description" bson:"description"`
	ImageURL        string       `json:"imageUrl" bson:"imageUrl"`
	BasePrice       float64      `json:"basePrice" bson:"basePrice"`
	StorePrices     []StoreQuote `json:"storePrices" bson:"storePrices"`
	LowestPrice     float64      `json:"lowestPrice" bson:"lowestPrice"`
	HighestPrice    float64      `json:"highestPrice" bson:"highestPrice"`
	AveragePrice    float64      `json:"averagePrice" bson:"averagePrice"`
	AvailableStores int          `json:"availableStores" bson:"availableStores"`
	TotalStores     int          `json:"totalStores" bson:"totalStores"`
	CreatedAt       time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// HistoryEntry is one store quote snapshot; entries are never updated.
type HistoryEntry struct {
	ProductID string    `json:"productId" bson:"productId"`
	StoreID   string    `json:"storeId" bson:"storeId"`
	Price     float64   `json:"price" bson:"price"`
	InStock   bool      `json:"inStock" bson:"inStock"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type CreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Brand       string   `json:"brand" binding:"required"`
	Category    string   `json:"category" binding:"required"`
	BasePrice   *float64 `json:"basePrice" binding:"required,gt=0"`
	SKU         string   `json:"sku" binding:"omitempty,max=64"`
	Description string   `json:"description" binding:"omitempty,max=2000"`
	ImageURL    string   `json:"imageUrl" binding:"omitempty,url"`
}

type ListFilter struct {
	Category string `json:"category,omitempty"`
	Brand    string `json:"brand,omitempty"`
}

// Aggregates summarise the in-stock quotes of a product.
type Aggregates struct {
	Lowest    float64 `json:"lowestPrice"`
	Highest   float64 `json:"highestPrice"`
	Average   float64 `json:"averagePrice"`
	Available int     `json:"availableStores"`
	Total     int     `json:"totalStores"`
}

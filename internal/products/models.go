package products

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	OutOfStock StockStatus = "out_of_stock"
)

// Product is the canonical record of a marketplace product, keyed by ExternalID.
type Product struct {
	ExternalID   string           `json:"external_id" bson:"external_id"`
	Title        string           `json:"title" bson:"title"`
	Brand        string           `json:"brand" bson:"brand"`
	Category     string           `json:"category" bson:"category"`
	CurrentPrice *decimal.Decimal `json:"current_price" bson:"current_price"` // nullable
	Currency     string           `json:"currency" bson:"currency"`
	Marketplace  string           `json:"marketplace" bson:"marketplace"`
	Rating       *decimal.Decimal `json:"rating" bson:"rating"` // nullable, 0-5
	ReviewCount  int              `json:"review_count" bson:"review_count"`
	StockStatus  StockStatus      `json:"stock_status" bson:"stock_status"`
	ImageURL     string           `json:"image_url" bson:"image_url"`
	LastUpdated  time.Time        `json:"last_updated" bson:"last_updated"`
	URL          string           `json:"url" bson:"url"`
}

type PriceHistory struct {
	ProductID   string          `json:"product_id" bson:"product_id"`
	Price       decimal.Decimal `json:"price" bson:"price"`
	Currency    string          `json:"currency" bson:"currency"`
	Timestamp   time.Time       `json:"timestamp" bson:"timestamp"`
	Marketplace string          `json:"marketplace" bson:"marketplace"`
}

// Review is written by other services; this one only reads it.
type Review struct {
	ProductID        string    `json:"product_id" bson:"product_id"`
	Marketplace      string    `json:"marketplace,omitempty" bson:"marketplace,omitempty"`
	Author           string    `json:"author,omitempty" bson:"author,omitempty"`
	Rating           float64   `json:"rating" bson:"rating"`
	Title            string    `json:"title,omitempty" bson:"title,omitempty"`
	Text             string    `json:"text,omitempty" bson:"text,omitempty"`
	Date             time.Time `json:"date" bson:"date"`
	VerifiedPurchase bool      `json:"verified_purchase" bson:"verified_purchase"`
	Sentiment        string    `json:"sentiment,omitempty" bson:"sentiment,omitempty"`
	SentimentScore   float64   `json:"sentiment_score,omitempty" bson:"sentiment_score,omitempty"`
}

// TrackedProduct is a row of the externally managed tracked_products table.
type TrackedProduct struct {
	ExternalID  string
	Marketplace string
}

type ListFilter struct {
	Marketplace string `json:"marketplace,omitempty"`
	Category    string `json:"category,omitempty"`
	Limit       int64  `json:"limit"`
}

type Stats struct {
	TotalProducts     int64    `json:"total_products"`
	TotalPriceRecords int64    `json:"total_price_records"`
	TotalReviews      int64    `json:"total_reviews"`
	Marketplaces      []string `json:"marketplaces"`
	Categories        []string `json:"categories"`
}

// Detail is a product with its recent history and reviews.
type Detail struct {
	Product      Product        `json:"product"`
	PriceHistory []PriceHistory `json:"price_history"`
	Reviews      []Review       `json:"reviews"`
}

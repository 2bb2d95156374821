package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valeevte/pricewatch/internal/apperr"
)

const (
	CollectionProducts     = "products"
	CollectionPriceHistory = "price_history"
	CollectionReviews      = "reviews"

	DefaultListLimit = 20
	MaxListLimit     = 100
	HistoryLimit     = 30
	ReviewLimit      = 10
)

// Repository stores canonical products, their price history and reads reviews.
type Repository struct {
	products *mongo.Collection
	history  *mongo.Collection
	reviews  *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		products: db.Collection(CollectionProducts),
		history:  db.Collection(CollectionPriceHistory),
		reviews:  db.Collection(CollectionReviews),
	}
}

// EnsureIndexes creates the indexes the queries below rely on.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "external_id", Value: 1}, {Key: "marketplace", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "marketplace", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "last_updated", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("products indexes: %w", err)
	}
	if _, err := r.history.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("price_history indexes: %w", err)
	}
	if _, err := r.reviews.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "date", Value: -1}},
	}); err != nil {
		return fmt.Errorf("reviews indexes: %w", err)
	}
	return nil
}

// Upsert replaces the stored fields of p.ExternalID or inserts it.
func (r *Repository) Upsert(ctx context.Context, p *Product) error {
	_, err := r.products.UpdateOne(ctx,
		bson.M{"external_id": p.ExternalID},
		bson.M{
			"$set":         p,
			"$setOnInsert": bson.M{"first_seen": p.LastUpdated},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return apperr.FromStore("upsert product", fmt.Errorf("upsert %s: %w", p.ExternalID, err))
	}
	return nil
}

func (r *Repository) AppendHistory(ctx context.Context, e PriceHistory) error {
	if _, err := r.history.InsertOne(ctx, e); err != nil {
		return apperr.FromStore("append price history", fmt.Errorf("append history %s: %w", e.ProductID, err))
	}
	return nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Product, error) {
	query := bson.M{}
	if f.Marketplace != "" {
		query["marketplace"] = f.Marketplace
	}
	if f.Category != "" {
		query["category"] = f.Category
	}

	opts := options.Find().
		SetLimit(f.Limit).
		SetSort(bson.D{{Key: "last_updated", Value: -1}})

	cur, err := r.products.Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	out := make([]Product, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	return out, nil
}

// Get returns the product with its most recent history and reviews.
func (r *Repository) Get(ctx context.Context, externalID string) (*Detail, error) {
	var p Product
	err := r.products.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, apperr.FromStore("database unavailable", err)
	}

	history := make([]PriceHistory, 0)
	cur, err := r.history.Find(ctx, bson.M{"product_id": externalID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(HistoryLimit))
	if err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	if err := cur.All(ctx, &history); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}

	reviews := make([]Review, 0)
	cur, err = r.reviews.Find(ctx, bson.M{"product_id": externalID},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(ReviewLimit))
	if err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}

	return &Detail{Product: p, PriceHistory: history, Reviews: reviews}, nil
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var (
		s   Stats
		err error
	)
	if s.TotalProducts, err = r.products.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	if s.TotalPriceRecords, err = r.history.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	if s.TotalReviews, err = r.reviews.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	if s.Marketplaces, err = r.distinct(ctx, "marketplace"); err != nil {
		return nil, err
	}
	if s.Categories, err = r.distinct(ctx, "category"); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) distinct(ctx context.Context, field string) ([]string, error) {
	values, err := r.products.Distinct(ctx, field, bson.M{})
	if err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// NewHistoryEntry snapshots the current price of p. It reports false when p
// has no price.
func NewHistoryEntry(p *Product, at time.Time) (PriceHistory, bool) {
	if p.CurrentPrice == nil {
		return PriceHistory{}, false
	}
	return PriceHistory{
		ProductID:   p.ExternalID,
		Price:       *p.CurrentPrice,
		Currency:    p.Currency,
		Timestamp:   at,
		Marketplace: p.Marketplace,
	}, true
}

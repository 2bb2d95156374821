package comparator

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
	CollectionProducts = "comparator_products"
	CollectionHistory  = "comparator_price_history"
)

type MongoRepository struct {
	products *mongo.Collection
	history  *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		products: db.Collection(CollectionProducts),
		history:  db.Collection(CollectionHistory),
	}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "productId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "brand", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("comparator_products indexes: %w", err)
	}
	if _, err := r.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "productId", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		return fmt.Errorf("comparator_price_history indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Insert(ctx context.Context, p *Product) error {
	if _, err := r.products.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("product already exists", err)
		}
		return apperr.FromStore("database unavailable", err)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, f ListFilter) ([]Product, error) {
	query := bson.M{}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Brand != "" {
		query["brand"] = f.Brand
	}

	cur, err := r.products.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	out := make([]Product, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	return out, nil
}

func (r *MongoRepository) Get(ctx context.Context, productID string) (*Product, error) {
	var p Product
	if err := r.products.FindOne(ctx, bson.M{"productId": productID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, apperr.FromStore("database unavailable", err)
	}
	return &p, nil
}

func (r *MongoRepository) UpdateQuotes(ctx context.Context, productID string, quotes []StoreQuote, agg Aggregates, at time.Time) error {
	res, err := r.products.UpdateOne(ctx, bson.M{"productId": productID}, bson.M{"$set": bson.M{
		"storePrices":     quotes,
		"lowestPrice":     agg.Lowest,
		"highestPrice":    agg.Highest,
		"averagePrice":    agg.Average,
		"availableStores": agg.Available,
		"totalStores":     agg.Total,
		"updatedAt":       at,
	}})
	if err != nil {
		return apperr.FromStore("database unavailable", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}

// Delete removes the product, then its history.
func (r *MongoRepository) Delete(ctx context.Context, productID string) error {
	res, err := r.products.DeleteOne(ctx, bson.M{"productId": productID})
	if err != nil {
		return apperr.FromStore("database unavailable", err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound("product not found")
	}
	if _, err := r.history.DeleteMany(ctx, bson.M{"productId": productID}); err != nil {
		return apperr.FromStore("database unavailable", fmt.Errorf("delete history of %s: %w", productID, err))
	}
	return nil
}

func (r *MongoRepository) AppendHistory(ctx context.Context, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, len(entries))
	for i := range entries {
		docs[i] = entries[i]
	}
	if _, err := r.history.InsertMany(ctx, docs); err != nil {
		return apperr.FromStore("database unavailable", err)
	}
	return nil
}

// History returns the history of productID, newest first.
func (r *MongoRepository) History(ctx context.Context, productID string) ([]HistoryEntry, error) {
	cur, err := r.history.Find(ctx, bson.M{"productId": productID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	out := make([]HistoryEntry, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.FromStore("database unavailable", err)
	}
	return out, nil
}

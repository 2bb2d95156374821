package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/valeevte/pricewatch/internal/apperr"
)

const CollectionScrapingLogs = "scraping_logs"

type cycleLog struct {
	RunID             string    `bson:"run_id"`
	Operation         string    `bson:"operation"`
	Trigger           string    `bson:"trigger"`
	Status            string    `bson:"status"`
	ProductsProcessed int       `bson:"products_processed"`
	SuccessCount      int       `bson:"success_count"`
	ErrorCount        int       `bson:"error_count"`
	DurationMS        int64     `bson:"duration_ms"`
	Timestamp         time.Time `bson:"timestamp"`
}

// CycleLogRepository appends cycle summaries to scraping_logs.
type CycleLogRepository struct {
	coll *mongo.Collection
}

func NewCycleLogRepository(db *mongo.Database) *CycleLogRepository {
	return &CycleLogRepository{coll: db.Collection(CollectionScrapingLogs)}
}

func (r *CycleLogRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}})
	if err != nil {
		return fmt.Errorf("scraping_logs indexes: %w", err)
	}
	return nil
}

func (r *CycleLogRepository) Record(ctx context.Context, s Summary) error {
	_, err := r.coll.InsertOne(ctx, cycleLog{
		RunID:             s.RunID.String(),
		Operation:         "price_update",
		Trigger:           string(s.Trigger),
		Status:            s.Status,
		ProductsProcessed: s.Processed,
		SuccessCount:      s.Succeeded,
		ErrorCount:        s.Failed,
		DurationMS:        s.Duration.Milliseconds(),
		Timestamp:         s.StartedAt,
	})
	return apperr.FromStore("record cycle", err)
}

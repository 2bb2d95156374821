package comparator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/apperr"
	"github.com/valeevte/pricewatch/internal/cache"
)

const listCacheNamespace = "comparator:list"

type Repository interface {
	Insert(ctx context.Context, p *Product) error
	List(ctx context.Context, f ListFilter) ([]Product, error)
	Get(ctx context.Context, productID string) (*Product, error)
	UpdateQuotes(ctx context.Context, productID string, quotes []StoreQuote, agg Aggregates, at time.Time) error
	Delete(ctx context.Context, productID string) error
	AppendHistory(ctx context.Context, entries []HistoryEntry) error
	History(ctx context.Context, productID string) ([]HistoryEntry, error)
}

type Service struct {
	repo      Repository
	generator *Generator
	cache     *cache.Cache
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, gen *Generator, c *cache.Cache, log *zap.Logger) *Service {
	return &Service{repo: repo, generator: gen, cache: c, logger: log, now: time.Now}
}

// Create quotes a new product and persists it with one history entry per
// store. Nothing is stored when no store has stock.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if req.BasePrice == nil || *req.BasePrice <= 0 {
		return nil, apperr.Validation("basePrice must be greater than 0")
	}

	quotes := s.generator.Generate(req.Name, *req.BasePrice, req.Category)
	agg, err := ComputeAggregates(quotes)
	if err != nil {
		return nil, noStock(err)
	}

	id := strings.TrimSpace(req.SKU)
	if id == "" {
		id = "PROD-" + uuid.NewString()
	}

	now := s.now()
	p := &Product{
		ProductID:   id,
		Name:        req.Name,
		Brand:       req.Brand,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		BasePrice:   *req.BasePrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyQuotes(p, quotes, agg)

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, id, quotes, now)
	s.cache.InvalidatePrefix(ctx, listCacheNamespace)

	s.logger.Info("comparator product created",
		zap.String("product_id", id),
		zap.Int("available_stores", agg.Available),
		zap.Float64("lowest_price", agg.Lowest),
	)
	return p, nil
}

// List returns products matching f, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Product, error) {
	key := cache.Key(listCacheNamespace, f)

	var out []Product
	if s.cache.GetJSON(ctx, key, &out) {
		return out, nil
	}

	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, out)
	return out, nil
}

func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	return s.repo.Get(ctx, productID)
}

// History returns every recorded quote of an existing product, newest first.
func (s *Service) History(ctx context.Context, productID string) ([]HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, productID)
}

// Refresh regenerates the quotes of an existing product.
func (s *Service) Refresh(ctx context.Context, productID string) (*Product, error) {
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	quotes := s.generator.Generate(p.Name, p.BasePrice, p.Category)
	agg, err := ComputeAggregates(quotes)
	if err != nil {
		return nil, noStock(err)
	}

	now := s.now()
	if err := s.repo.UpdateQuotes(ctx, productID, quotes, agg, now); err != nil {
		return nil, err
	}
	applyQuotes(p, quotes, agg)
	p.UpdatedAt = now

	s.recordHistory(ctx, productID, quotes, now)
	s.cache.InvalidatePrefix(ctx, listCacheNamespace)
	return p, nil
}

// Delete removes a product and its history.
func (s *Service) Delete(ctx context.Context, productID string) error {
	if err := s.repo.Delete(ctx, productID); err != nil {
		return err
	}
	s.cache.InvalidatePrefix(ctx, listCacheNamespace)
	s.logger.Info("comparator product deleted", zap.String("product_id", productID))
	return nil
}

// recordHistory never fails the request: the product write already happened.
func (s *Service) recordHistory(ctx context.Context, productID string, quotes []StoreQuote, at time.Time) {
	entries := make([]HistoryEntry, 0, len(quotes))
	for _, q := range quotes {
		entries = append(entries, HistoryEntry{
			ProductID: productID,
			StoreID:   q.StoreID,
			Price:     q.Price,
			InStock:   q.InStock,
			Timestamp: at,
		})
	}
	if err := s.repo.AppendHistory(ctx, entries); err != nil {
		s.logger.Error("comparator history not recorded", zap.String("product_id", productID), zap.Error(err))
	}
}

func applyQuotes(p *Product, quotes []StoreQuote, agg Aggregates) {
	p.StorePrices = quotes
	p.LowestPrice = agg.Lowest
	p.HighestPrice = agg.Highest
	p.AveragePrice = agg.Average
	p.AvailableStores = agg.Available
	p.TotalStores = agg.Total
}

func noStock(err error) error {
	if errors.Is(err, ErrNoStockAvailable) {
		return apperr.Unprocessable("no store has the product in stock", err)
	}
	return err
}

package comparator

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/apperr"
)

type memoryRepository struct {
	mu         sync.Mutex
	products   map[string]Product
	history    []HistoryEntry
	historyErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{products: map[string]Product{}}
}

func (m *memoryRepository) Insert(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ProductID]; ok {
		return apperr.Conflict("product already exists", nil)
	}
	m.products[p.ProductID] = *p
	return nil
}

func (m *memoryRepository) List(_ context.Context, f ListFilter) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Product, 0)
	for _, p := range m.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Brand != "" && p.Brand != f.Brand {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *memoryRepository) Get(_ context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product not found")
	}
	return &p, nil
}

func (m *memoryRepository) UpdateQuotes(_ context.Context, id string, quotes []StoreQuote, agg Aggregates, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return apperr.NotFound("product not found")
	}
	applyQuotes(&p, quotes, agg)
	p.UpdatedAt = at
	m.products[id] = p
	return nil
}

func (m *memoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return apperr.NotFound("product not found")
	}
	delete(m.products, id)
	m.history = slices.DeleteFunc(m.history, func(e HistoryEntry) bool { return e.ProductID == id })
	return nil
}

func (m *memoryRepository) AppendHistory(_ context.Context, entries []HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.history = append(m.history, entries...)
	return nil
}

func (m *memoryRepository) History(_ context.Context, id string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, 0)
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ProductID == id {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memoryRepository) historyCount(id string) int {
	n := 0
	for _, e := range m.history {
		if e.ProductID == id {
			n++
		}
	}
	return n
}

func newTestService(repo Repository, day func() time.Time) *Service {
	s := NewService(repo, NewGenerator().WithClock(day), nil, zap.NewNop())
	s.now = day
	return s
}

func price(v float64) *float64 { return &v }

func TestServiceCreate(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, fixedDay(2024, time.March, 15))

	p, err := svc.Create(context.Background(), CreateRequest{
		Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120), SKU: "NIKE-AM-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "NIKE-AM-1", p.ProductID)
	assert.Len(t, p.StorePrices, 6)
	assert.Equal(t, 113.45, p.LowestPrice)
	assert.Equal(t, 121.15, p.HighestPrice)
	assert.Equal(t, 117.38, p.AveragePrice)
	assert.Equal(t, 5, p.AvailableStores)
	assert.Equal(t, 6, p.TotalStores)
	assert.Equal(t, 6, repo.historyCount("NIKE-AM-1"))
}

func TestServiceCreateGeneratesID(t *testing.T) {
	svc := newTestService(newMemoryRepository(), fixedDay(2024, time.March, 15))

	p, err := svc.Create(context.Background(), CreateRequest{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120)})
	require.NoError(t, err)
	assert.Regexp(t, `^PROD-[0-9a-f-]{36}$`, p.ProductID)
}

func TestServiceCreateDuplicateSKU(t *testing.T) {
	svc := newTestService(newMemoryRepository(), fixedDay(2024, time.March, 15))
	req := CreateRequest{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120), SKU: "DUP"}

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), req)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestServiceCreateHistoryFailureKeepsProduct(t *testing.T) {
	repo := newMemoryRepository()
	repo.historyErr = errors.New("insert many failed")
	svc := newTestService(repo, fixedDay(2024, time.March, 15))

	p, err := svc.Create(context.Background(), CreateRequest{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120)})
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), p.ProductID)
	assert.NoError(t, err)
}

func TestServiceCreateRejectsNonPositivePrice(t *testing.T) {
	svc := newTestService(newMemoryRepository(), fixedDay(2024, time.March, 15))

	_, err := svc.Create(context.Background(), CreateRequest{Name: "x", Brand: "y", Category: "shoes", BasePrice: price(0)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestServiceRefresh(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, fixedDay(2024, time.March, 15))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120), SKU: "AM"})
	require.NoError(t, err)

	svc.generator.WithClock(fixedDay(2024, time.March, 16))
	svc.now = fixedDay(2024, time.March, 16)

	p, err := svc.Refresh(ctx, "AM")
	require.NoError(t, err)
	assert.Equal(t, 115.37, p.LowestPrice)
	assert.Equal(t, 123.72, p.HighestPrice)
	assert.Equal(t, 119.41, p.AveragePrice)
	assert.Equal(t, "adidas-official", p.StorePrices[1].StoreID)

	stored, err := repo.Get(ctx, "AM")
	require.NoError(t, err)
	assert.Equal(t, 115.37, stored.LowestPrice)
	assert.Equal(t, fixedDay(2024, time.March, 16)(), stored.UpdatedAt)
	assert.Equal(t, fixedDay(2024, time.March, 15)(), stored.CreatedAt)
	assert.Equal(t, 12, repo.historyCount("AM"))

	history, err := svc.History(ctx, "AM")
	require.NoError(t, err)
	require.Len(t, history, 12)
	assert.Equal(t, fixedDay(2024, time.March, 16)(), history[0].Timestamp)
}

func TestServiceRefreshSameDayIsIdempotent(t *testing.T) {
	svc := newTestService(newMemoryRepository(), fixedDay(2024, time.March, 15))
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequest{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120), SKU: "AM"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, "AM")
	require.NoError(t, err)
	assert.Equal(t, created.StorePrices, refreshed.StorePrices)
}

func TestServiceMissingProduct(t *testing.T) {
	svc := newTestService(newMemoryRepository(), fixedDay(2024, time.March, 15))
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.History(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.Delete(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestServiceDeleteRemovesHistory(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, fixedDay(2024, time.March, 15))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120), SKU: "AM"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "AM"))
	assert.Zero(t, repo.historyCount("AM"))
	_, err = svc.Get(ctx, "AM")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestServiceListFilters(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, fixedDay(2024, time.March, 15))
	ctx := context.Background()

	for _, req := range []CreateRequest{
		{Name: "Air Max", Brand: "Nike", Category: "shoes", BasePrice: price(120), SKU: "A"},
		{Name: "Ultraboost 22", Brand: "Adidas", Category: "shoes", BasePrice: price(180), SKU: "B"},
		{Name: "Tiro Pants", Brand: "Adidas", Category: "clothing", BasePrice: price(45), SKU: "C"},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, ListFilter{Brand: "Adidas"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.List(ctx, ListFilter{Category: "shoes", Brand: "Nike"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].ProductID)
}

func TestServiceNoStockPersistsNothing(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, fixedDay(2024, time.March, 15))

	// every clothing store draws a factor above its stock probability on this day
	_, err := svc.Create(context.Background(), CreateRequest{
		Name: "Sold Out 5532", Brand: "Generic", Category: "clothing", BasePrice: price(30),
	})
	assert.True(t, apperr.Is(err, apperr.KindUnprocessable))
	assert.ErrorIs(t, err, ErrNoStockAvailable)
	assert.Empty(t, repo.products)
	assert.Empty(t, repo.history)
}

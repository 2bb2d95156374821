// Package ingestion drives one pass over the tracked products: fetch,
// normalize, upsert and record price history.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/cache"
	"github.com/valeevte/pricewatch/internal/marketplace"
	"github.com/valeevte/pricewatch/internal/metrics"
	"github.com/valeevte/pricewatch/internal/products"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

const (
	outcomeSuccess       = "success"
	outcomeFetchFailed   = "fetch_failed"
	outcomeParseFailed   = "parse_failed"
	outcomeStoreFailed   = "store_failed"
	outcomeHistoryFailed = "history_failed"
)

const (
	DefaultPacing       = 3 * time.Second
	DefaultStoreTimeout = 10 * time.Second
)

type TrackedLister interface {
	ListActive(ctx context.Context, marketplace string) ([]products.TrackedProduct, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, externalID, country string) (marketplace.RawPayload, error)
}

type Normalizer interface {
	Normalize(raw []byte, externalID string) (*products.Product, error)
}

type ProductStore interface {
	Upsert(ctx context.Context, p *products.Product) error
	AppendHistory(ctx context.Context, e products.PriceHistory) error
}

type CycleRecorder interface {
	Record(ctx context.Context, s Summary) error
}

type Config struct {
	Marketplace  string
	Country      string
	Pacing       time.Duration
	StoreTimeout time.Duration
}

// Summary reports the outcome of one cycle.
type Summary struct {
	RunID     uuid.UUID     `json:"run_id"`
	Trigger   Trigger       `json:"trigger"`
	Status    string        `json:"status"`
	Processed int           `json:"products_processed"`
	Succeeded int           `json:"success_count"`
	Failed    int           `json:"error_count"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

type Orchestrator struct {
	cfg        Config
	tracked    TrackedLister
	fetcher    Fetcher
	normalizer Normalizer
	store      ProductStore
	recorder   CycleRecorder
	cache      *cache.Cache
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder persists every cycle summary.
func WithRecorder(r CycleRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithCache invalidates cached product aggregates after a cycle that wrote data.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(cfg Config, tracked TrackedLister, fetcher Fetcher, n Normalizer, store ProductStore, log *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Country == "" {
		cfg.Country = marketplace.DefaultCountry
	}

	o := &Orchestrator{
		cfg:        cfg,
		tracked:    tracked,
		fetcher:    fetcher,
		normalizer: n,
		store:      store,
		logger:     log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle processes every active tracked product once, sequentially and
// paced. A failing product is counted and skipped. The returned error is
// non-nil only when the tracked list could not be read or ctx ended early.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger Trigger) (Summary, error) {
	s := Summary{
		RunID:     uuid.New(),
		Trigger:   trigger,
		StartedAt: o.now(),
	}
	log := o.logger.With(zap.String("run_id", s.RunID.String()), zap.String("trigger", string(trigger)))
	log.Info("ingestion cycle started", zap.String("marketplace", o.cfg.Marketplace))

	var cycleErr error
	tracked, err := o.tracked.ListActive(ctx, o.cfg.Marketplace)
	if err != nil {
		cycleErr = fmt.Errorf("list tracked products: %w", err)
		log.Error("cannot list tracked products", zap.Error(err))
	}

	for i, tp := range tracked {
		if i > 0 {
			if err := sleep(ctx, o.cfg.Pacing); err != nil {
				cycleErr = err
				log.Warn("ingestion cycle interrupted", zap.Int("remaining", len(tracked)-i))
				break
			}
		}

		s.Processed++
		outcome := o.processProduct(ctx, log, tp)
		metrics.RecordProduct(outcome)
		if outcome == outcomeSuccess {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}

	s.Duration = o.now().Sub(s.StartedAt)
	s.Status = status(s, cycleErr)
	o.finish(ctx, log, s)
	return s, cycleErr
}

func (o *Orchestrator) processProduct(ctx context.Context, log *zap.Logger, tp products.TrackedProduct) string {
	log = log.With(zap.String("external_id", tp.ExternalID))

	raw, err := o.fetcher.Fetch(ctx, tp.ExternalID, o.cfg.Country)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var fe *marketplace.FetchError
		if errors.As(err, &fe) {
			fields = append(fields, zap.String("kind", fe.Kind.String()), zap.Int("status", fe.StatusCode))
		}
		log.Error("fetch failed", fields...)
		return outcomeFetchFailed
	}

	p, err := o.normalizer.Normalize(raw, tp.ExternalID)
	if err != nil {
		log.Error("normalize failed", zap.Error(err))
		return outcomeParseFailed
	}

	// A started write pair completes even if the cycle is being shut down.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StoreTimeout)
	defer cancel()

	if err := o.store.Upsert(storeCtx, p); err != nil {
		log.Error("upsert failed", zap.Error(err))
		return outcomeStoreFailed
	}

	entry, ok := products.NewHistoryEntry(p, o.now())
	if !ok {
		log.Warn("product has no price; history not recorded")
		return outcomeSuccess
	}
	if err := o.store.AppendHistory(storeCtx, entry); err != nil {
		log.Error("append history failed", zap.Error(err))
		return outcomeHistoryFailed
	}

	log.Info("product updated", zap.String("price", entry.Price.String()))
	return outcomeSuccess
}

func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, s Summary) {
	metrics.RecordCycle(string(s.Trigger), s.Status, s.Duration.Seconds())

	log.Info("ingestion cycle finished",
		zap.String("status", s.Status),
		zap.Int("processed", s.Processed),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Duration("duration", s.Duration),
	)

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StoreTimeout)
	defer cancel()

	if s.Succeeded > 0 {
		o.cache.InvalidatePrefix(bg, products.StatsCacheKey)
	}
	if o.recorder != nil {
		if err := o.recorder.Record(bg, s); err != nil {
			log.Warn("cycle log not recorded", zap.Error(err))
		}
	}
}

func status(s Summary, cycleErr error) string {
	switch {
	case cycleErr != nil && s.Succeeded == 0:
		return StatusFailed
	case s.Processed > 0 && s.Succeeded == 0:
		return StatusFailed
	case s.Failed > 0 || cycleErr != nil:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

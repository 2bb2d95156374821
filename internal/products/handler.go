package products

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/apperr"
	"github.com/valeevte/pricewatch/internal/cache"
)

// StatsCacheKey holds the cached /stats payload; ingestion invalidates it.
const StatsCacheKey = "products:stats"

// Reader is the read side used by the HTTP handlers.
type Reader interface {
	List(ctx context.Context, f ListFilter) ([]Product, error)
	Get(ctx context.Context, externalID string) (*Detail, error)
	Stats(ctx context.Context) (*Stats, error)
}

type Handler struct {
	repo   Reader
	cache  *cache.Cache
	logger *zap.Logger
}

// NewHandler builds the product handlers. cache may be nil.
func NewHandler(repo Reader, c *cache.Cache, log *zap.Logger) *Handler {
	return &Handler{repo: repo, cache: c, logger: log}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)
	r.GET("/stats", h.GetStats)
}

func (h *Handler) ListProducts(c *gin.Context) {
	limit := int64(DefaultListLimit)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxListLimit)
	}

	list, err := h.repo.List(c.Request.Context(), ListFilter{
		Marketplace: c.Query("marketplace"),
		Category:    c.Query("category"),
		Limit:       limit,
	})
	if err != nil {
		h.fail(c, "list products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "products": list})
}

func (h *Handler) GetProduct(c *gin.Context) {
	id := c.Param("id")
	d, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get product", err, zap.String("external_id", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"product":       d.Product,
		"price_history": d.PriceHistory,
		"reviews":       d.Reviews,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	var s Stats
	if !h.cache.GetJSON(ctx, StatsCacheKey, &s) {
		fresh, err := h.repo.Stats(ctx)
		if err != nil {
			h.fail(c, "get stats", err)
			return
		}
		s = *fresh
		h.cache.SetJSON(ctx, StatsCacheKey, s)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": s})
}

func (h *Handler) fail(c *gin.Context, op string, err error, fields ...zap.Field) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

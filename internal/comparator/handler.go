package comparator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/apperr"
)

type Catalog interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	List(ctx context.Context, f ListFilter) ([]Product, error)
	Get(ctx context.Context, productID string) (*Product, error)
	History(ctx context.Context, productID string) ([]HistoryEntry, error)
	Refresh(ctx context.Context, productID string) (*Product, error)
	Delete(ctx context.Context, productID string) error
}

type Handler struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewHandler(c Catalog, log *zap.Logger) *Handler {
	return &Handler{catalog: c, logger: log}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/comparator/products")
	g.POST("", h.CreateProduct)
	g.GET("", h.ListProducts)
	g.GET("/:id", h.GetProduct)
	g.GET("/:id/history", h.GetHistory)
	g.POST("/:id/refresh-prices", h.RefreshPrices)
	g.DELETE("/:id", h.DeleteProduct)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": bindingMessage(err)})
		return
	}

	p, err := h.catalog.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create comparator product", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "product created",
		"data": gin.H{
			"productId":       p.ProductID,
			"name":            p.Name,
			"lowestPrice":     p.LowestPrice,
			"availableStores": p.AvailableStores,
			"storePrices":     p.StorePrices,
		},
	})
}

func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.catalog.List(c.Request.Context(), ListFilter{
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
	})
	if err != nil {
		h.fail(c, "list comparator products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get comparator product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}

func (h *Handler) GetHistory(c *gin.Context) {
	entries, err := h.catalog.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get comparator history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(entries), "data": entries})
}

func (h *Handler) RefreshPrices(c *gin.Context) {
	id := c.Param("id")
	p, err := h.catalog.Refresh(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "refresh comparator prices", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "prices refreshed",
		"data":    gin.H{"productId": id, "storePrices": p.StorePrices},
	})
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "delete comparator product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "product deleted"})
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.String("product_id", c.Param("id")), zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "error": apperr.PublicMessage(err)})
}

// bindingMessage turns a binding failure into a client facing message naming
// the offending JSON field.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		name := jsonName(reflect.TypeOf(CreateRequest{}), fe.StructField())
		switch fe.Tag() {
		case "required":
			return "missing required field: " + name
		case "gt":
			return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		default:
			return "invalid field: " + name
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("invalid type for field: %s", typeErr.Field)
	}
	return "invalid JSON body"
}

func jsonName(t reflect.Type, field string) string {
	f, ok := t.FieldByName(field)
	if !ok {
		return field
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return field
	}
	return name
}

// Package server assembles the HTTP surface.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const ServiceName = "pricewatch"

// Routes is implemented by every handler that contributes endpoints.
type Routes interface {
	RegisterRoutes(r gin.IRouter)
}

type Config struct {
	Version      string
	AllowOrigins []string
	Debug        bool
}

// New builds the engine with the process-wide middleware, fallbacks and the
// given route groups.
func New(cfg Config, log *zap.Logger, routes ...Routes) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(Recovery(log), RequestLogger(log), CORS(cfg.AllowOrigins))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	r.GET("/", index(cfg.Version))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	for _, rt := range routes {
		rt.RegisterRoutes(r)
	}
	return r
}

func index(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": ServiceName,
			"version": version,
			"endpoints": gin.H{
				"health":        "/health",
				"metrics":       "/metrics",
				"products":      "/products",
				"product":       "/products/{externalId}",
				"stats":         "/stats",
				"update_prices": "POST /update-prices",
				"comparator":    "/comparator/products",
			},
		})
	}
}

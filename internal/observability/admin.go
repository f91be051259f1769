package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/ackwire/internal/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

// AdminConfig wires the admin HTTP surface of one node.
type AdminConfig struct {
	Node        string
	CorsOrigins []string
	Logger      zerolog.Logger
	// Ready reports whether the node accepts protocol connections.
	Ready func() bool
	// Stats is rendered under /stats when set.
	Stats func() any
	// StatsAuth guards /stats when set.
	StatsAuth auth.Validator
}

// NewAdminRouter returns a gin engine serving /health, /ready, /metrics and
// optionally /stats.
func NewAdminRouter(cfg AdminConfig) *gin.Engine {
	RegisterMetrics()
	started := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))
	r.Use(RequestMetricsMiddleware(cfg.Node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"service": cfg.Node,
			"version": version,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		ready := cfg.Ready == nil || cfg.Ready()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":   ready,
			"service": cfg.Node,
			"version": version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Stats != nil {
		handlers := []gin.HandlerFunc{}
		if cfg.StatsAuth != nil {
			handlers = append(handlers, RequireToken(cfg.StatsAuth))
		}
		handlers = append(handlers, func(c *gin.Context) {
			c.JSON(http.StatusOK, cfg.Stats())
		})
		r.GET("/stats", handlers...)
	}
	return r
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/feedback"
	"feedback-backend/internal/services/health"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/server/middleware"
	"feedback-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config   config.Config
	Feedback *feedback.Handler
	Health   *health.Service
}

// NewRouter constructs the gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsDevLike() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigins),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	if deps.Feedback != nil {
		var limit gin.HandlerFunc
		if deps.Config.RateLimitRPS > 0 && deps.Config.RateLimitBurst > 0 {
			limit = middleware.RateLimit(middleware.NewRateLimiter(nil), "ANALYZE", middleware.RateRule{
				Rate:  deps.Config.RateLimitRPS,
				Burst: deps.Config.RateLimitBurst,
			})
		}
		deps.Feedback.RegisterRoutes(api, limit)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

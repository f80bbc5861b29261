package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-status-monitor/config"
	"parking-status-monitor/internal/mw"
)

// NewRouter creates and configures a new Gin router around the handler's
// dependencies. Read endpoints sit behind the response cache; mutating ones
// do not.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limit := rate.Limit(10)
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, 5)

	cacheTTL := 30 * time.Second
	if cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Live view is always served fresh from memory; archived views are
		// cacheable.
		api.GET("/status", h.GetStatus)
		api.GET("/branches/:branch_id/zones", caching, h.GetZones)
		api.GET("/branches/:branch_id/history", caching, h.GetHistory)

		api.GET("/session", h.GetSession)
		api.POST("/session/login", h.Login)
		api.POST("/session/verify", h.VerifySession)
		api.DELETE("/session", h.Logout)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}

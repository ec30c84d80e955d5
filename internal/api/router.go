package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"bustrack-backend/config"
	"bustrack-backend/internal/auth"
	"bustrack-backend/internal/gps"
	"bustrack-backend/internal/mw"
	"bustrack-backend/internal/realtime"
	"bustrack-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(
	cfg *config.Config,
	s store.Store,
	dispatcher *realtime.Dispatcher,
	locations gps.LocationCache,
	verifier auth.CredentialVerifier,
) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, locations, dispatcher)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": dispatcher.Sessions().Len()})
	})

	// The websocket endpoint authenticates inside the dispatcher and must not
	// sit behind the HTTP rate limiter or response cache.
	r.GET("/ws", func(c *gin.Context) {
		realtime.ServeWS(dispatcher, c.Writer, c.Request)
	})

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(mw.Auth(verifier), rateLimiter)
	{
		api.POST("/gps/heartbeat",
			mw.RequireRoles(auth.RoleDriver),
			handler.PostHeartbeat)

		api.GET("/gps/location/:bus_id",
			mw.RequireRoles(auth.RolePlatformAdmin, auth.RoleCompanyAdmin, auth.RoleDriver, auth.RoleParent),
			handler.GetCurrentLocation)

		api.GET("/gps/locations/:bus_id",
			mw.RequireRoles(auth.RolePlatformAdmin, auth.RoleCompanyAdmin, auth.RoleDriver),
			caching,
			handler.GetRecentLocations)
	}

	return r
}

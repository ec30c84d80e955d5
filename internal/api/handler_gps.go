package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bustrack-backend/internal/gps"
	"bustrack-backend/internal/model"
)

// SampleIngester funnels a position sample through the broadcast pipeline.
type SampleIngester interface {
	IngestSample(ctx context.Context, sample gps.Sample)
}

// LocationStore is the slice of the data store the GPS handlers read from.
type LocationStore interface {
	RecentLocations(ctx context.Context, busID string, limit int) ([]model.BusLocation, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     LocationStore
	locations gps.LocationCache
	ingester  SampleIngester
}

// NewHandler creates a new API handler.
func NewHandler(s LocationStore, locations gps.LocationCache, ingester SampleIngester) *Handler {
	return &Handler{
		store:     s,
		locations: locations,
		ingester:  ingester,
	}
}

// heartbeatRequest is the REST equivalent of a websocket position report.
type heartbeatRequest struct {
	BusID     string     `json:"busId" binding:"required"`
	Latitude  *float64   `json:"latitude" binding:"required"`
	Longitude *float64   `json:"longitude" binding:"required"`
	Speed     *float64   `json:"speed"`
	Heading   *float64   `json:"heading"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

// PostHeartbeat handles POST /api/gps/heartbeat.
func (h *Handler) PostHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required GPS data"})
		return
	}

	sample := gps.Sample{
		BusID:     req.BusID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Heading:   req.Heading,
		Accuracy:  req.Accuracy,
	}
	if req.Speed != nil {
		sample.Speed = *req.Speed
	}
	if req.Timestamp != nil {
		sample.Timestamp = *req.Timestamp
	} else {
		sample.Timestamp = time.Now().UTC()
	}

	h.ingester.IngestSample(c.Request.Context(), sample)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// GetCurrentLocation handles GET /api/gps/location/:bus_id using the fast
// cache only; absence means no recent fix.
func (h *Handler) GetCurrentLocation(c *gin.Context) {
	busID := c.Param("bus_id")

	sample, err := h.locations.Get(c.Request.Context(), busID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to read location"})
		return
	}
	if sample == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no recent location"})
		return
	}
	c.JSON(http.StatusOK, sample)
}

// GetRecentLocations handles GET /api/gps/locations/:bus_id from the durable
// store of record.
func (h *Handler) GetRecentLocations(c *gin.Context) {
	busID := c.Param("bus_id")

	limit := 10
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 500 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	locations, err := h.store.RecentLocations(c.Request.Context(), busID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve locations"})
		return
	}
	c.JSON(http.StatusOK, locations)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bustrack-backend/internal/gps"
	"bustrack-backend/internal/model"
)

// recordingIngester captures ingested samples.
type recordingIngester struct {
	mu      sync.Mutex
	samples []gps.Sample
}

func (r *recordingIngester) IngestSample(_ context.Context, sample gps.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
}

// stubStore serves canned recent locations.
type stubStore struct {
	recent []model.BusLocation
	err    error
}

func (s *stubStore) RecentLocations(_ context.Context, _ string, limit int) ([]model.BusLocation, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.recent) {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func newTestHandler(t *testing.T) (*Handler, *recordingIngester, *gps.MemoryCache, *stubStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ingester := &recordingIngester{}
	cache := gps.NewMemoryCache(time.Minute)
	st := &stubStore{}
	h := NewHandler(st, cache, ingester)
	return h, ingester, cache, st
}

func performJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostHeartbeat(t *testing.T) {
	h, ingester, _, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/api/gps/heartbeat", h.PostHeartbeat)

	t.Run("valid heartbeat is accepted and ingested", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/api/gps/heartbeat", map[string]any{
			"busId":     "V1",
			"latitude":  5.60,
			"longitude": -0.18,
			"speed":     12,
		})
		assert.Equal(t, http.StatusAccepted, w.Code)

		require.Len(t, ingester.samples, 1)
		s := ingester.samples[0]
		assert.Equal(t, "V1", s.BusID)
		assert.Equal(t, 5.60, s.Latitude)
		assert.Equal(t, 12.0, s.Speed)
		assert.False(t, s.Timestamp.IsZero(), "missing timestamp should default to receipt time")
	})

	t.Run("missing coordinates are rejected", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/api/gps/heartbeat", map[string]any{
			"busId": "V1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Len(t, ingester.samples, 1, "rejected report must not be ingested")
	})

	t.Run("non-numeric coordinates are rejected", func(t *testing.T) {
		w := performJSON(r, http.MethodPost, "/api/gps/heartbeat", map[string]any{
			"busId":     "V1",
			"latitude":  "north",
			"longitude": -0.18,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetCurrentLocation(t *testing.T) {
	h, _, cache, _ := newTestHandler(t)
	r := gin.New()
	r.GET("/api/gps/location/:bus_id", h.GetCurrentLocation)

	t.Run("no recent fix yields 404", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/api/gps/location/V1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cached fix is returned", func(t *testing.T) {
		sample := gps.Sample{BusID: "V1", Latitude: 5.60, Longitude: -0.18, Speed: 12, Timestamp: time.Now().UTC()}
		require.NoError(t, cache.Put(context.Background(), sample, time.Minute))

		w := performJSON(r, http.MethodGet, "/api/gps/location/V1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var got gps.Sample
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "V1", got.BusID)
		assert.Equal(t, 5.60, got.Latitude)
	})
}

func TestGetRecentLocations(t *testing.T) {
	h, _, _, st := newTestHandler(t)
	r := gin.New()
	r.GET("/api/gps/locations/:bus_id", h.GetRecentLocations)

	now := time.Now().UTC()
	st.recent = []model.BusLocation{
		{ID: 2, BusID: "V1", Latitude: 5.61, Longitude: -0.19, RecordedAt: now},
		{ID: 1, BusID: "V1", Latitude: 5.60, Longitude: -0.18, RecordedAt: now.Add(-time.Minute)},
	}

	t.Run("returns the persisted trail", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/api/gps/locations/V1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var got []model.BusLocation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, 5.61, got[0].Latitude)
	})

	t.Run("limit is honored", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/api/gps/locations/V1?limit=1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var got []model.BusLocation
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Len(t, got, 1)
	})

	t.Run("invalid limit is rejected", func(t *testing.T) {
		w := performJSON(r, http.MethodGet, "/api/gps/locations/V1?limit=-3", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

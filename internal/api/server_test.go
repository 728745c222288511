package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"planesnearby/internal/adsbfi"
	"planesnearby/internal/coordinator"
	"planesnearby/internal/ha"

	"go.uber.org/zap"
)

// staticFetcher returns a fixed aircraft list.
type staticFetcher struct {
	aircraft []adsbfi.Aircraft
}

func (f *staticFetcher) NearbyAircraft(ctx context.Context, lat, lon, distanceNM float64) ([]adsbfi.Aircraft, error) {
	return f.aircraft, nil
}

func altitude(feet float64) adsbfi.Altitude {
	return adsbfi.Altitude{Feet: &feet}
}

func testCoordinator(t *testing.T, fetcher coordinator.Fetcher) *coordinator.Coordinator {
	t.Helper()

	mockHA := ha.NewMockClient()
	mockHA.Connect()
	mockHA.SetState("zone.home", "zoning", map[string]interface{}{
		"latitude":  47.62,
		"longitude": -122.35,
	})

	return coordinator.New(mockHA, fetcher,
		coordinator.Options{LocationEntityID: "zone.home", DistanceNM: 25},
		coordinator.Config{},
		zap.NewNop())
}

func TestHandleGetPlanes(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	fetcher := &staticFetcher{aircraft: []adsbfi.Aircraft{
		{Hex: "a1b2c3", Flight: "UAL123", AltBaro: altitude(35000)},
		{Hex: "d4e5f6", AltBaro: adsbfi.Altitude{Ground: true}},
	}}
	coord := testCoordinator(t, fetcher)
	if err := coord.Start(); err != nil {
		t.Fatalf("Failed to start coordinator: %v", err)
	}
	defer coord.Stop()

	server := NewServer(coord, logger, 8080)

	req := httptest.NewRequest(http.MethodGet, "/api/planes", nil)
	w := httptest.NewRecorder()

	server.handleGetPlanes(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var response PlanesResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Total != 2 {
		t.Errorf("Expected 2 planes, got %d", response.Total)
	}
	if response.Airborne != 1 {
		t.Errorf("Expected 1 airborne, got %d", response.Airborne)
	}
	if response.FetchedAt.IsZero() {
		t.Error("Expected fetched_at to be set")
	}
	if len(response.Planes) != 2 || response.Planes[0].Hex != "a1b2c3" {
		t.Errorf("Unexpected planes payload: %+v", response.Planes)
	}
}

func TestHandleGetPlanesEmpty(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	// Coordinator never started, so the snapshot is the zero value
	coord := testCoordinator(t, &staticFetcher{})
	server := NewServer(coord, logger, 8080)

	req := httptest.NewRequest(http.MethodGet, "/api/planes", nil)
	w := httptest.NewRecorder()

	server.handleGetPlanes(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	// The planes array must be [] rather than null
	if !strings.Contains(w.Body.String(), `"planes":[]`) {
		t.Errorf("Expected an empty planes array, got %s", w.Body.String())
	}
}

func TestHandleGetPlanesMethodNotAllowed(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	coord := testCoordinator(t, &staticFetcher{})
	server := NewServer(coord, logger, 8080)

	// Test POST method (should be rejected)
	req := httptest.NewRequest(http.MethodPost, "/api/planes", nil)
	w := httptest.NewRecorder()

	server.handleGetPlanes(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	coord := testCoordinator(t, &staticFetcher{})
	server := NewServer(coord, logger, 8080)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", response["status"])
	}
}

func TestHandleSitemap(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	coord := testCoordinator(t, &staticFetcher{})
	server := NewServer(coord, logger, 8080)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	server.handleSitemap(w, req)

	// The sitemap deliberately reports 404 with a helpful body
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/api/planes") {
		t.Error("Expected the sitemap to list /api/planes")
	}
}

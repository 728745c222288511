package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"planesnearby/internal/adsbfi"
	"planesnearby/internal/coordinator"
	"planesnearby/internal/ha"
	"planesnearby/internal/planes"
	"planesnearby/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testToken = "test_token_12345"
	testAddr  = "localhost:18124"

	testLat = 47.62
	testLon = -122.35
)

// adsbStub serves canned ADSB.fi responses and records every request path.
type adsbStub struct {
	mu       sync.Mutex
	aircraft []adsbfi.Aircraft
	status   int
	paths    []string
	server   *httptest.Server
}

func newADSBStub() *adsbStub {
	stub := &adsbStub{status: http.StatusOK}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()

		stub.paths = append(stub.paths, r.URL.Path)

		if stub.status != http.StatusOK {
			w.WriteHeader(stub.status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ac":    stub.aircraft,
			"total": len(stub.aircraft),
			"now":   time.Now().UnixMilli(),
		})
	}))
	return stub
}

func (s *adsbStub) set(aircraft []adsbfi.Aircraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aircraft = aircraft
}

func (s *adsbStub) setStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *adsbStub) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

func (s *adsbStub) pathList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func (s *adsbStub) hasPathPrefix(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (s *adsbStub) Close() {
	s.server.Close()
}

func fptr(v float64) *float64 { return &v }

// airborneAircraft builds a typical cruising position report.
func airborneAircraft(hex, flight string, dist float64) adsbfi.Aircraft {
	return adsbfi.Aircraft{
		Hex:         hex,
		Flight:      flight,
		Lat:         fptr(47.7),
		Lon:         fptr(-122.3),
		AltBaro:     adsbfi.Altitude{Feet: fptr(35000)},
		GroundSpeed: fptr(440),
		Squawk:      "1200",
		Emergency:   "none",
		Distance:    fptr(dist),
	}
}

// groundAircraft builds a report for an aircraft taxiing on the ground.
func groundAircraft(hex string) adsbfi.Aircraft {
	return adsbfi.Aircraft{
		Hex:      hex,
		Lat:      fptr(47.63),
		Lon:      fptr(-122.36),
		AltBaro:  adsbfi.Altitude{Ground: true},
		Distance: fptr(1.2),
	}
}

func setupTest(t *testing.T) (*testutil.MockHAServer, *ha.Client, *coordinator.Coordinator, *adsbStub, func()) {
	// Create logger
	logger, _ := zap.NewDevelopment()

	// Start mock HA server with a home zone that carries coordinates
	server := testutil.NewMockHAServer(testAddr, testToken)
	server.SetLocation("zone.home", testLat, testLon)

	err := server.Start()
	require.NoError(t, err)

	// Create and connect client
	client := ha.NewClient(fmt.Sprintf("ws://%s/api/websocket", testAddr), testToken, logger)
	err = client.Connect()
	require.NoError(t, err)

	// Stand in for the ADSB.fi opendata API
	stub := newADSBStub()
	fetcher := adsbfi.NewClient(adsbfi.Config{
		BaseURL:           stub.server.URL,
		RequestsPerSecond: 1000,
		Logger:            logger,
	})

	// Short interval so poll-cycle tests stay fast
	coord := coordinator.New(client, fetcher,
		coordinator.Options{LocationEntityID: "zone.home", DistanceNM: 25},
		coordinator.Config{UpdateInterval: 100 * time.Millisecond, FetchTimeout: 2 * time.Second},
		logger)

	// Cleanup function
	cleanup := func() {
		coord.Stop()
		client.Disconnect()
		server.Stop()
		stub.Close()
	}

	return server, client, coord, stub, cleanup
}

// TestBasicConnection tests basic connection and the initial fetch
func TestBasicConnection(t *testing.T) {
	server, client, coord, stub, cleanup := setupTest(t)
	defer cleanup()

	t.Run("connection status", func(t *testing.T) {
		assert.True(t, client.IsConnected())
	})

	t.Run("location entity visible", func(t *testing.T) {
		state := server.GetState("zone.home")
		require.NotNil(t, state)
		assert.Equal(t, testLat, state.Attributes["latitude"])
	})

	t.Run("initial fetch on start", func(t *testing.T) {
		stub.set([]adsbfi.Aircraft{
			airborneAircraft("a1b2c3", "UAL123", 12.3),
			airborneAircraft("d4e5f6", "ASA456", 18.7),
		})

		err := coord.Start()
		require.NoError(t, err)

		snap := coord.Snapshot()
		assert.Len(t, snap.Planes, 2)
		assert.False(t, snap.FetchedAt.IsZero())

		// The request must carry the configured location and radius
		assert.True(t, stub.hasPathPrefix("/lat/47.62/lon/-122.35/dist/25"),
			"request path should encode the configured location, got %v", stub.pathList())
	})
}

// TestPollingCycle tests that the coordinator keeps polling on its interval
func TestPollingCycle(t *testing.T) {
	_, _, coord, stub, cleanup := setupTest(t)
	defer cleanup()

	stub.set([]adsbfi.Aircraft{airborneAircraft("a1b2c3", "UAL123", 12.3)})

	err := coord.Start()
	require.NoError(t, err)

	// Initial fetch plus at least two interval polls
	time.Sleep(350 * time.Millisecond)

	count := stub.requestCount()
	assert.GreaterOrEqual(t, count, 3, "expected repeated polls, got %d requests", count)
}

// TestFetchErrorYieldsEmptySnapshot tests that upstream failure produces an
// empty list instead of a stale or missing snapshot
func TestFetchErrorYieldsEmptySnapshot(t *testing.T) {
	_, _, coord, stub, cleanup := setupTest(t)
	defer cleanup()

	stub.setStatus(http.StatusInternalServerError)

	err := coord.Start()
	require.NoError(t, err)

	snap := coord.Snapshot()
	require.NotNil(t, snap.Planes, "snapshot planes should be an empty list, not nil")
	assert.Len(t, snap.Planes, 0)
	assert.False(t, snap.FetchedAt.IsZero(), "failed cycles still stamp the snapshot")
}

// TestLocationMoveTriggersRefresh tests that moving the location entity
// causes an immediate re-poll at the new coordinates
func TestLocationMoveTriggersRefresh(t *testing.T) {
	server, _, coord, stub, cleanup := setupTest(t)
	defer cleanup()

	stub.set([]adsbfi.Aircraft{airborneAircraft("a1b2c3", "UAL123", 12.3)})

	err := coord.Start()
	require.NoError(t, err)

	// Move the observer
	server.SetState("zone.home", "home", map[string]interface{}{
		"latitude":  48.0,
		"longitude": -122.0,
	})

	// Wait for event propagation and the triggered refresh
	time.Sleep(300 * time.Millisecond)

	assert.True(t, stub.hasPathPrefix("/lat/48/lon/-122/dist/25"),
		"expected a poll at the new location, got %v", stub.pathList())
}

// TestSnapshotSubscription tests that listeners see every poll cycle
func TestSnapshotSubscription(t *testing.T) {
	_, _, coord, stub, cleanup := setupTest(t)
	defer cleanup()

	stub.set([]adsbfi.Aircraft{airborneAircraft("a1b2c3", "UAL123", 12.3)})

	notifyCount := 0
	var lastLen int
	var mu sync.Mutex

	unsubscribe := coord.Subscribe(func(snap planes.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		notifyCount++
		lastLen = len(snap.Planes)
	})
	defer unsubscribe()

	err := coord.Start()
	require.NoError(t, err)

	// Initial cycle plus interval polls
	time.Sleep(350 * time.Millisecond)

	mu.Lock()
	assert.GreaterOrEqual(t, notifyCount, 3)
	assert.Equal(t, 1, lastLen)
	mu.Unlock()
}

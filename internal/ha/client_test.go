package ha

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockHAServer creates a mock Home Assistant WebSocket server
func mockHAServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("Failed to upgrade connection: %v", err)
		}
		defer conn.Close()

		handler(conn)
	}))
}

// standardAuthFlow handles the standard authentication flow
func standardAuthFlow(t *testing.T, conn *websocket.Conn, token string) {
	// Send auth_required
	err := conn.WriteJSON(Message{Type: "auth_required"})
	require.NoError(t, err)

	// Receive auth message
	var authMsg AuthMessage
	err = conn.ReadJSON(&authMsg)
	require.NoError(t, err)
	assert.Equal(t, "auth", authMsg.Type)
	assert.Equal(t, token, authMsg.AccessToken)

	// Send auth_ok
	err = conn.WriteJSON(Message{Type: "auth_ok"})
	require.NoError(t, err)
}

// ackSubscribeEvents handles the subscribe_events sent right after connecting
func ackSubscribeEvents(conn *websocket.Conn) {
	var subMsg SubscribeEventsRequest
	conn.ReadJSON(&subMsg)
	success := true
	conn.WriteJSON(Message{
		ID:      subMsg.ID,
		Type:    "result",
		Success: &success,
	})
}

func TestClient_Connect(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	t.Run("successful connection", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)
			ackSubscribeEvents(conn)

			// Keep connection open
			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, token, logger)

		err := client.Connect()
		assert.NoError(t, err)
		assert.True(t, client.IsConnected())

		client.Disconnect()
	})

	t.Run("invalid token", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			// Send auth_required
			conn.WriteJSON(Message{Type: "auth_required"})

			// Receive auth message
			var authMsg AuthMessage
			conn.ReadJSON(&authMsg)

			// Send auth_invalid
			conn.WriteJSON(Message{Type: "auth_invalid"})
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, "wrong_token", logger)

		err := client.Connect()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "authentication failed")
		assert.False(t, client.IsConnected())
	})

	t.Run("already connected", func(t *testing.T) {
		server := mockHAServer(t, func(conn *websocket.Conn) {
			standardAuthFlow(t, conn, token)
			ackSubscribeEvents(conn)

			time.Sleep(100 * time.Millisecond)
		})
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		client := NewClient(url, token, logger)

		err := client.Connect()
		require.NoError(t, err)

		err = client.Connect()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already connected")

		client.Disconnect()
	})
}

func TestClient_GetState(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		ackSubscribeEvents(conn)

		// Handle get_states request
		var statesReq GetStatesRequest
		conn.ReadJSON(&statesReq)

		states := []*State{
			{
				EntityID: "zone.home",
				State:    "zoning",
				Attributes: map[string]interface{}{
					"latitude":  47.62,
					"longitude": -122.35,
				},
			},
		}

		statesJSON, _ := json.Marshal(states)
		success := true
		conn.WriteJSON(Message{
			ID:      statesReq.ID,
			Type:    "result",
			Success: &success,
			Result:  statesJSON,
		})

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, token, logger)

	err := client.Connect()
	require.NoError(t, err)
	defer client.Disconnect()

	state, err := client.GetState("zone.home")
	assert.NoError(t, err)
	assert.Equal(t, "zone.home", state.EntityID)

	lat, ok := state.Latitude()
	assert.True(t, ok)
	assert.Equal(t, 47.62, lat)

	lon, ok := state.Longitude()
	assert.True(t, ok)
	assert.Equal(t, -122.35, lon)
}

func TestClient_CallService(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		ackSubscribeEvents(conn)

		// Handle call_service request
		var serviceReq CallServiceRequest
		conn.ReadJSON(&serviceReq)

		assert.Equal(t, "notify", serviceReq.Domain)
		assert.Equal(t, "mobile_app_phone", serviceReq.Service)
		assert.Equal(t, "Aircraft emergency", serviceReq.ServiceData["title"])

		success := true
		conn.WriteJSON(Message{
			ID:      serviceReq.ID,
			Type:    "result",
			Success: &success,
		})

		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, token, logger)

	err := client.Connect()
	require.NoError(t, err)
	defer client.Disconnect()

	err = client.CallService("notify", "mobile_app_phone", map[string]interface{}{
		"title":   "Aircraft emergency",
		"message": "UAL123 is reporting general emergency",
	})
	assert.NoError(t, err)
}

func TestClient_SubscribeStateChanges(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	eventSent := make(chan struct{})
	server := mockHAServer(t, func(conn *websocket.Conn) {
		standardAuthFlow(t, conn, token)
		ackSubscribeEvents(conn)

		// Push a state_changed event for the watched entity
		eventData, _ := json.Marshal(StateChangedEvent{
			EntityID: "zone.home",
			OldState: &State{EntityID: "zone.home", Attributes: map[string]interface{}{"latitude": 47.0, "longitude": -122.0}},
			NewState: &State{EntityID: "zone.home", Attributes: map[string]interface{}{"latitude": 48.0, "longitude": -122.0}},
		})
		conn.WriteJSON(Message{
			Type: "event",
			Event: &Event{
				EventType: "state_changed",
				Data:      eventData,
			},
		})
		close(eventSent)

		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client := NewClient(url, token, logger)

	err := client.Connect()
	require.NoError(t, err)
	defer client.Disconnect()

	var mu sync.Mutex
	received := 0
	var newLat float64

	sub, err := client.SubscribeStateChanges("zone.home", func(entityID string, oldState, newState *State) {
		mu.Lock()
		defer mu.Unlock()
		received++
		newLat, _ = newState.Latitude()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	<-eventSent
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, received)
	assert.Equal(t, 48.0, newLat)
}

func TestClient_SetEntityState(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	token := "test_token"

	var mu sync.Mutex
	var postedPath, postedAuth string
	var postedBody map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/websocket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		standardAuthFlow(t, conn, token)
		ackSubscribeEvents(conn)
		time.Sleep(200 * time.Millisecond)
	})
	mux.HandleFunc("/api/states/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		postedPath = r.URL.Path
		postedAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &postedBody)
		mu.Unlock()

		w.WriteHeader(http.StatusCreated)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/websocket"
	client := NewClient(wsURL, token, logger)

	err := client.Connect()
	require.NoError(t, err)
	defer client.Disconnect()

	err = client.SetEntityState("sensor.planes_nearby", "3", map[string]interface{}{
		"friendly_name": "Planes Nearby",
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/states/sensor.planes_nearby", postedPath)
	assert.Equal(t, "Bearer "+token, postedAuth)
	assert.Equal(t, "3", postedBody["state"])

	attrs, ok := postedBody["attributes"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Planes Nearby", attrs["friendly_name"])
}

func TestRestBaseFromWS(t *testing.T) {
	cases := []struct {
		wsURL    string
		expected string
	}{
		{"ws://homeassistant.local:8123/api/websocket", "http://homeassistant.local:8123"},
		{"wss://ha.example.com/api/websocket", "https://ha.example.com"},
		{"ws://localhost:8123", "http://localhost:8123"},
	}

	for _, tc := range cases {
		t.Run(tc.wsURL, func(t *testing.T) {
			assert.Equal(t, tc.expected, restBaseFromWS(tc.wsURL))
		})
	}
}

func TestMockClient(t *testing.T) {
	mock := NewMockClient()

	t.Run("connection", func(t *testing.T) {
		assert.False(t, mock.IsConnected())

		err := mock.Connect()
		assert.NoError(t, err)
		assert.True(t, mock.IsConnected())

		err = mock.Connect()
		assert.Error(t, err)

		err = mock.Disconnect()
		assert.NoError(t, err)
		assert.False(t, mock.IsConnected())
	})

	t.Run("state management", func(t *testing.T) {
		mock.SetState("zone.home", "zoning", map[string]interface{}{
			"latitude": 47.62,
		})

		state, err := mock.GetState("zone.home")
		assert.NoError(t, err)
		assert.Equal(t, "zoning", state.State)

		_, err = mock.GetState("nonexistent")
		assert.Error(t, err)
	})

	t.Run("published states", func(t *testing.T) {
		mock.ClearRecorded()

		err := mock.SetEntityState("sensor.planes_nearby", "2", map[string]interface{}{
			"total_planes": 2,
		})
		assert.NoError(t, err)

		published := mock.LastPublished("sensor.planes_nearby")
		require.NotNil(t, published)
		assert.Equal(t, "2", published.State)

		// The publish is visible as a state too
		state, err := mock.GetState("sensor.planes_nearby")
		assert.NoError(t, err)
		assert.Equal(t, "2", state.State)
	})

	t.Run("subscriptions", func(t *testing.T) {
		callCount := 0
		handler := func(entityID string, oldState, newState *State) {
			callCount++
			assert.Equal(t, "zone.home", entityID)
			assert.Equal(t, "away", newState.State)
		}

		sub, err := mock.SubscribeStateChanges("zone.home", handler)
		assert.NoError(t, err)

		mock.SetState("zone.home", "away", nil)
		assert.Equal(t, 1, callCount)

		// Unsubscribed handlers stay quiet
		sub.Unsubscribe()
		mock.SetState("zone.home", "zoning", nil)
		assert.Equal(t, 1, callCount)
	})
}

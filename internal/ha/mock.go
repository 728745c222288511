package ha

import (
	"fmt"
	"sync"
	"time"
)

// MockClient implements HAClient for testing. It keeps entity states in
// memory and records every service call and published state for assertions.
type MockClient struct {
	states      map[string]*State
	statesMu    sync.RWMutex
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	nextSubIDMu sync.Mutex
	connected   bool
	connMu      sync.RWMutex

	serviceCalls []ServiceCall
	published    []PublishedState
	callsMu      sync.Mutex
}

// ServiceCall records a CallService invocation.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]interface{}
	Time    time.Time
}

// PublishedState records a SetEntityState invocation.
type PublishedState struct {
	EntityID   string
	State      string
	Attributes map[string]interface{}
	Time       time.Time
}

// mockSubscription implements Subscription for MockClient.
type mockSubscription struct {
	entityID string
	subID    int
	mock     *MockClient
}

func (s *mockSubscription) Unsubscribe() error {
	return s.mock.unsubscribe(s.entityID, s.subID)
}

// NewMockClient creates a new mock HA client.
func NewMockClient() *MockClient {
	return &MockClient{
		states:      make(map[string]*State),
		subscribers: make(map[string][]subscriberEntry),
	}
}

// Connect simulates connecting to Home Assistant.
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting.
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	m.connected = false

	m.subsMu.Lock()
	m.subscribers = make(map[string][]subscriberEntry)
	m.subsMu.Unlock()
	return nil
}

// IsConnected returns connection status.
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// GetState retrieves a mock state.
func (m *MockClient) GetState(entityID string) (*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	state, ok := m.states[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", entityID)
	}
	return state, nil
}

// GetAllStates retrieves all mock states.
func (m *MockClient) GetAllStates() ([]*State, error) {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	states := make([]*State, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, state)
	}
	return states, nil
}

// CallService records a service call.
func (m *MockClient) CallService(domain, service string, data map[string]interface{}) error {
	m.callsMu.Lock()
	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	m.callsMu.Unlock()
	return nil
}

// SetEntityState records the publish and updates the mock state, notifying
// subscribers the way a real state change would.
func (m *MockClient) SetEntityState(entityID, state string, attributes map[string]interface{}) error {
	m.callsMu.Lock()
	m.published = append(m.published, PublishedState{
		EntityID:   entityID,
		State:      state,
		Attributes: attributes,
		Time:       time.Now(),
	})
	m.callsMu.Unlock()

	m.SetState(entityID, state, attributes)
	return nil
}

// SubscribeStateChanges subscribes to state changes for an entity.
func (m *MockClient) SubscribeStateChanges(entityID string, handler StateChangeHandler) (Subscription, error) {
	m.nextSubIDMu.Lock()
	subID := m.nextSubID
	m.nextSubID++
	m.nextSubIDMu.Unlock()

	m.subsMu.Lock()
	m.subscribers[entityID] = append(m.subscribers[entityID], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	m.subsMu.Unlock()

	return &mockSubscription{
		entityID: entityID,
		subID:    subID,
		mock:     m,
	}, nil
}

// unsubscribe removes a specific subscription by entity ID and subscription ID
func (m *MockClient) unsubscribe(entityID string, subID int) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subscribers, ok := m.subscribers[entityID]
	if !ok {
		return nil // Already unsubscribed
	}

	for i, entry := range subscribers {
		if entry.subID == subID {
			m.subscribers[entityID] = append(subscribers[:i], subscribers[i+1:]...)
			if len(m.subscribers[entityID]) == 0 {
				delete(m.subscribers, entityID)
			}
			break
		}
	}

	return nil
}

// SetState sets a mock state and notifies subscribers (for test setup).
func (m *MockClient) SetState(entityID string, stateValue string, attributes map[string]interface{}) {
	m.statesMu.Lock()
	now := time.Now()
	oldState := m.states[entityID]

	newState := &State{
		EntityID:    entityID,
		State:       stateValue,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	m.states[entityID] = newState
	m.statesMu.Unlock()

	m.notifySubscribers(entityID, oldState, newState)
}

// RemoveState deletes an entity from the mock (for test setup).
func (m *MockClient) RemoveState(entityID string) {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()
	delete(m.states, entityID)
}

// GetServiceCalls returns all recorded service calls.
func (m *MockClient) GetServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// GetPublishedStates returns all recorded SetEntityState calls.
func (m *MockClient) GetPublishedStates() []PublishedState {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	published := make([]PublishedState, len(m.published))
	copy(published, m.published)
	return published
}

// LastPublished returns the most recent publish for an entity, or nil.
func (m *MockClient) LastPublished(entityID string) *PublishedState {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].EntityID == entityID {
			p := m.published[i]
			return &p
		}
	}
	return nil
}

// ClearRecorded clears the service call and publish history.
func (m *MockClient) ClearRecorded() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = nil
	m.published = nil
}

// notifySubscribers notifies all subscribers of a state change.
func (m *MockClient) notifySubscribers(entityID string, oldState, newState *State) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers[entityID]...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(entityID, oldState, newState)
	}
}

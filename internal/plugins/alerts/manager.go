// Package alerts sends Home Assistant notifications for aircraft in distress.
package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"planesnearby/internal/clock"
	"planesnearby/internal/coordinator"
	"planesnearby/internal/ha"
	"planesnearby/internal/planes"

	"go.uber.org/zap"
)

// AlertRateLimit is the minimum time between notifications for the same
// aircraft, so a plane squawking 7700 across many cycles alerts once.
const AlertRateLimit = 10 * time.Minute

// Manager watches snapshots for emergency squawks (7500/7600/7700) and
// ADS-B emergency states and raises one rate-limited notification per
// aircraft through a Home Assistant notify service.
type Manager struct {
	haClient      ha.HAClient
	coord         *coordinator.Coordinator
	logger        *zap.Logger
	readOnly      bool
	clock         clock.Clock
	notifyService string
	unsubscribe   func()

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

// NewManager creates a new alerts manager. notifyService is the full service
// id, e.g. "notify.mobile_app_phone".
func NewManager(haClient ha.HAClient, coord *coordinator.Coordinator, notifyService string, logger *zap.Logger, readOnly bool) *Manager {
	return &Manager{
		haClient:      haClient,
		coord:         coord,
		logger:        logger.Named("alerts"),
		readOnly:      readOnly,
		clock:         clock.NewRealClock(),
		notifyService: notifyService,
		lastAlert:     make(map[string]time.Time),
	}
}

// SetClock sets the clock implementation (useful for testing).
func (m *Manager) SetClock(c clock.Clock) {
	m.clock = c
}

// Start subscribes to coordinator snapshots.
func (m *Manager) Start() error {
	m.logger.Info("Starting alerts watcher", zap.String("notify_service", m.notifyService))

	m.handleSnapshot(m.coord.Snapshot())
	m.unsubscribe = m.coord.Subscribe(m.handleSnapshot)
	return nil
}

// Stop unsubscribes from the coordinator.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.logger.Info("Alerts watcher stopped")
}

// handleSnapshot raises a notification for each aircraft newly in distress.
func (m *Manager) handleSnapshot(snap planes.Snapshot) {
	for _, p := range snap.Planes {
		reason := p.EmergencyReason()
		if reason == "" {
			continue
		}

		if m.rateLimited(p.Hex) {
			m.logger.Debug("Emergency alert rate limited", zap.String("hex", p.Hex))
			continue
		}

		m.sendAlert(p, reason)
	}
}

// rateLimited reports whether an alert for this hex fired recently, and
// records the current time if not.
func (m *Manager) rateLimited(hex string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastAlert[hex]; ok && m.clock.Since(last) < AlertRateLimit {
		return true
	}
	m.lastAlert[hex] = m.clock.Now()
	return false
}

// sendAlert calls the configured notify service for one aircraft.
func (m *Manager) sendAlert(p planes.Plane, reason string) {
	message := fmt.Sprintf("%s is reporting %s", p.DisplayName(), reason)
	if p.Squawk != "" {
		message = fmt.Sprintf("%s (squawk %s)", message, p.Squawk)
	}
	if p.Distance != nil {
		message = fmt.Sprintf("%s, %.1f NM away", message, *p.Distance)
	}

	m.logger.Warn("Aircraft emergency detected",
		zap.String("hex", p.Hex),
		zap.String("reason", reason),
		zap.String("squawk", p.Squawk))

	if m.readOnly {
		m.logger.Info("READ-ONLY: Would send notification", zap.String("message", message))
		return
	}

	domain, service, err := splitService(m.notifyService)
	if err != nil {
		m.logger.Error("Invalid notify service", zap.Error(err))
		return
	}

	if err := m.haClient.CallService(domain, service, map[string]interface{}{
		"title":   "Aircraft emergency",
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to send notification", zap.Error(err))
	}
}

// splitService splits "notify.mobile_app_phone" into domain and service.
func splitService(id string) (string, string, error) {
	parts := strings.SplitN(id, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("service id %q is not domain.service", id)
	}
	return parts[0], parts[1], nil
}

// Package countsensor publishes the nearby-aircraft count sensor.
package countsensor

import (
	"strconv"

	"planesnearby/internal/coordinator"
	"planesnearby/internal/ha"
	"planesnearby/internal/planes"

	"go.uber.org/zap"
)

// SensorEntityID is the entity this plugin materializes in Home Assistant.
const SensorEntityID = "sensor.planes_nearby"

// Manager publishes sensor.planes_nearby on every coordinator snapshot:
// state is the count of airborne aircraft, attributes carry the total and
// the full normalized list.
type Manager struct {
	haClient    ha.HAClient
	coord       *coordinator.Coordinator
	logger      *zap.Logger
	readOnly    bool
	name        string
	unsubscribe func()
}

// NewManager creates a new count sensor manager. name becomes the entity's
// friendly name.
func NewManager(haClient ha.HAClient, coord *coordinator.Coordinator, name string, logger *zap.Logger, readOnly bool) *Manager {
	return &Manager{
		haClient: haClient,
		coord:    coord,
		logger:   logger.Named("countsensor"),
		readOnly: readOnly,
		name:     name,
	}
}

// Start publishes the current snapshot and subscribes to future ones.
func (m *Manager) Start() error {
	m.logger.Info("Starting count sensor", zap.String("entity_id", SensorEntityID))

	m.publish(m.coord.Snapshot())
	m.unsubscribe = m.coord.Subscribe(m.publish)
	return nil
}

// Stop unsubscribes from the coordinator.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.logger.Info("Count sensor stopped")
}

// publish pushes one snapshot into the sensor entity.
func (m *Manager) publish(snap planes.Snapshot) {
	airborne := snap.AirborneCount()

	attributes := map[string]interface{}{
		"friendly_name":       m.name,
		"icon":                "mdi:airplane",
		"unit_of_measurement": "planes",
		"total_planes":        len(snap.Planes),
		"planes":              snap.Planes,
	}

	if m.readOnly {
		m.logger.Info("READ-ONLY: Would publish count sensor",
			zap.Int("airborne", airborne),
			zap.Int("total", len(snap.Planes)))
		return
	}

	if err := m.haClient.SetEntityState(SensorEntityID, strconv.Itoa(airborne), attributes); err != nil {
		m.logger.Error("Failed to publish count sensor", zap.Error(err))
		return
	}

	m.logger.Debug("Published count sensor",
		zap.Int("airborne", airborne),
		zap.Int("total", len(snap.Planes)))
}

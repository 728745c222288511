// Package geomarkers maintains one map marker entity per aircraft.
package geomarkers

import (
	"fmt"
	"sync"

	"planesnearby/internal/coordinator"
	"planesnearby/internal/ha"
	"planesnearby/internal/planes"

	"go.uber.org/zap"
)

const (
	// EntityPrefix plus the ICAO hex id forms the marker entity id.
	EntityPrefix = "geo_location.planes_nearby_"

	// SourceLabel is shown in map views that group markers by source.
	SourceLabel = "planes_nearby"
)

// markerState tracks one hex ever seen: whether its entity is currently
// available and the last display name, so the entity keeps its name after
// the aircraft drops out of range.
type markerState struct {
	available bool
	name      string
}

// Manager maintains one geo_location entity per distinct aircraft hex seen
// so far: present aircraft get their position republished each snapshot,
// absent ones are marked unavailable.
type Manager struct {
	haClient    ha.HAClient
	coord       *coordinator.Coordinator
	logger      *zap.Logger
	readOnly    bool
	unsubscribe func()

	mu      sync.Mutex
	markers map[string]*markerState
}

// NewManager creates a new geo markers manager.
func NewManager(haClient ha.HAClient, coord *coordinator.Coordinator, logger *zap.Logger, readOnly bool) *Manager {
	return &Manager{
		haClient: haClient,
		coord:    coord,
		logger:   logger.Named("geomarkers"),
		readOnly: readOnly,
		markers:  make(map[string]*markerState),
	}
}

// Start publishes markers for the current snapshot and subscribes to
// future ones.
func (m *Manager) Start() error {
	m.logger.Info("Starting geo markers")

	m.handleSnapshot(m.coord.Snapshot())
	m.unsubscribe = m.coord.Subscribe(m.handleSnapshot)
	return nil
}

// Stop unsubscribes from the coordinator. Marker entities stay in Home
// Assistant in whatever availability they last had.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.logger.Info("Geo markers stopped")
}

// handleSnapshot reconciles the marker set against one snapshot.
func (m *Manager) handleSnapshot(snap planes.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range snap.Planes {
		marker, known := m.markers[p.Hex]
		if !known {
			marker = &markerState{}
			m.markers[p.Hex] = marker
			m.logger.Info("New aircraft marker",
				zap.String("hex", p.Hex),
				zap.String("name", p.DisplayName()))
		}
		marker.available = true
		marker.name = p.DisplayName()
		m.publishMarker(p)
	}

	// Aircraft that dropped out of the snapshot become unavailable, once.
	for hex, marker := range m.markers {
		if _, present := snap.Find(hex); present {
			continue
		}
		if !marker.available {
			continue
		}
		marker.available = false
		m.markUnavailable(hex, marker.name)
	}
}

// publishMarker pushes one aircraft into its geo_location entity. The state
// is the distance from the observer, matching how map cards sort markers.
func (m *Manager) publishMarker(p planes.Plane) {
	state := "unknown"
	if p.Distance != nil {
		state = fmt.Sprintf("%.1f", *p.Distance)
	}

	attributes := map[string]interface{}{
		"source":        SourceLabel,
		"icon":          "mdi:airplane",
		"friendly_name": p.DisplayName(),
		"hex":           p.Hex,
		"on_ground":     p.OnGround,
	}
	if p.Lat != nil {
		attributes["latitude"] = *p.Lat
	}
	if p.Lon != nil {
		attributes["longitude"] = *p.Lon
	}
	if p.Flight != "" {
		attributes["flight"] = p.Flight
	}
	if p.Model != "" {
		attributes["t"] = p.Model
		attributes["aircraft_type"] = p.Model
	}
	if p.Description != "" {
		attributes["description"] = p.Description
	}
	if p.AltBaro != nil {
		attributes["alt_baro"] = *p.AltBaro
	}
	if p.GroundSpeed != nil {
		attributes["ground_speed"] = *p.GroundSpeed
	}
	if p.TrueHeading != nil {
		attributes["true_heading"] = *p.TrueHeading
	}
	if p.Squawk != "" {
		attributes["squawk"] = p.Squawk
	}
	if p.Bearing != nil {
		attributes["bearing"] = *p.Bearing
	}

	if m.readOnly {
		m.logger.Info("READ-ONLY: Would publish marker",
			zap.String("hex", p.Hex),
			zap.String("state", state))
		return
	}

	if err := m.haClient.SetEntityState(EntityPrefix+p.Hex, state, attributes); err != nil {
		m.logger.Error("Failed to publish marker",
			zap.String("hex", p.Hex),
			zap.Error(err))
	}
}

// markUnavailable publishes the unavailable state for a marker whose
// aircraft left the snapshot.
func (m *Manager) markUnavailable(hex, name string) {
	m.logger.Debug("Aircraft left range", zap.String("hex", hex))

	attributes := map[string]interface{}{
		"source":        SourceLabel,
		"icon":          "mdi:airplane",
		"friendly_name": name,
		"hex":           hex,
	}

	if m.readOnly {
		m.logger.Info("READ-ONLY: Would mark marker unavailable", zap.String("hex", hex))
		return
	}

	if err := m.haClient.SetEntityState(EntityPrefix+hex, "unavailable", attributes); err != nil {
		m.logger.Error("Failed to mark marker unavailable",
			zap.String("hex", hex),
			zap.Error(err))
	}
}

// MarkerCount returns how many distinct aircraft have been seen so far.
func (m *Manager) MarkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

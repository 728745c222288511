// Package planes defines the canonical aircraft record and the pure
// normalization pass over raw ADSB.fi position reports.
package planes

import (
	"fmt"
	"time"
)

// Plane is the normalized view of one aircraft. The JSON tags are the
// attribute keys published to Home Assistant.
type Plane struct {
	Hex          string   `json:"hex"`
	Type         string   `json:"type,omitempty"`
	Flight       string   `json:"flight,omitempty"`
	Model        string   `json:"t,omitempty"`
	AircraftType string   `json:"aircraft_type,omitempty"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	AltBaro      *float64 `json:"alt_baro,omitempty"`
	OnGround     bool     `json:"on_ground"`
	GroundSpeed  *float64 `json:"ground_speed,omitempty"`
	TrueHeading  *float64 `json:"true_heading,omitempty"`
	NavModes     []string `json:"nav_modes"`
	Squawk       string   `json:"squawk,omitempty"`
	Emergency    string   `json:"emergency,omitempty"`
	Distance     *float64 `json:"distance,omitempty"`
	Bearing      *float64 `json:"bearing,omitempty"`
	Seen         *float64 `json:"seen,omitempty"`
	SeenPos      *float64 `json:"seen_pos,omitempty"`
	Messages     *int64   `json:"messages,omitempty"`
	RSSI         *float64 `json:"rssi,omitempty"`
}

// DisplayName returns "CALLSIGN (hex)" when a callsign is known, otherwise
// "Plane <hex>".
func (p Plane) DisplayName() string {
	if p.Flight != "" {
		return fmt.Sprintf("%s (%s)", p.Flight, p.Hex)
	}
	return fmt.Sprintf("Plane %s", p.Hex)
}

// emergencySquawks are the transponder codes for unlawful interference,
// radio failure, and general emergency.
var emergencySquawks = map[string]string{
	"7500": "hijack",
	"7600": "radio failure",
	"7700": "general emergency",
}

// EmergencyReason returns a human-readable reason if the aircraft is
// squawking an emergency code or broadcasting an ADS-B emergency state.
// The empty string means no emergency.
func (p Plane) EmergencyReason() string {
	if reason, ok := emergencySquawks[p.Squawk]; ok {
		return reason
	}
	if p.Emergency != "" && p.Emergency != "none" {
		return p.Emergency
	}
	return ""
}

// Snapshot is the result of one coordinator cycle: the normalized aircraft
// list and when it was fetched. An error-containing cycle produces an empty
// snapshot, never a nil one.
type Snapshot struct {
	Planes    []Plane   `json:"planes"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Find returns the plane with the given hex id, if present.
func (s Snapshot) Find(hex string) (Plane, bool) {
	for _, p := range s.Planes {
		if p.Hex == hex {
			return p, true
		}
	}
	return Plane{}, false
}

// AirborneCount returns the number of aircraft not on the ground.
func (s Snapshot) AirborneCount() int {
	count := 0
	for _, p := range s.Planes {
		if !p.OnGround {
			count++
		}
	}
	return count
}

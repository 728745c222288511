package planes

import (
	"strings"

	"planesnearby/internal/adsbfi"
)

// Normalize maps one raw ADSB.fi record to the canonical Plane. It is a pure
// field rename/derive pass:
//
//	flight  -> Flight (whitespace trimmed, empty means absent)
//	t       -> Model and AircraftType (published under both keys)
//	desc    -> Description
//	alt_baro == "ground" -> OnGround, altitude absent
//	gs      -> GroundSpeed
//	dst     -> Distance (nautical miles from the observer)
//	dir     -> Bearing (degrees from the observer)
func Normalize(ac adsbfi.Aircraft) Plane {
	navModes := ac.NavModes
	if navModes == nil {
		navModes = []string{}
	}

	return Plane{
		Hex:          ac.Hex,
		Type:         ac.Type,
		Flight:       strings.TrimSpace(ac.Flight),
		Model:        ac.Model,
		AircraftType: ac.Model,
		Description:  ac.Description,
		Category:     ac.Category,
		Lat:          ac.Lat,
		Lon:          ac.Lon,
		AltBaro:      ac.AltBaro.Feet,
		OnGround:     ac.AltBaro.Ground,
		GroundSpeed:  ac.GroundSpeed,
		TrueHeading:  ac.TrueHeading,
		NavModes:     navModes,
		Squawk:       ac.Squawk,
		Emergency:    ac.Emergency,
		Distance:     ac.Distance,
		Bearing:      ac.Bearing,
		Seen:         ac.Seen,
		SeenPos:      ac.SeenPos,
		Messages:     ac.Messages,
		RSSI:         ac.RSSI,
	}
}

// NormalizeAll maps a raw aircraft list, skipping records without a hex id
// since the hex is the entity key downstream.
func NormalizeAll(raw []adsbfi.Aircraft) []Plane {
	result := make([]Plane, 0, len(raw))
	for _, ac := range raw {
		if ac.Hex == "" {
			continue
		}
		result = append(result, Normalize(ac))
	}
	return result
}

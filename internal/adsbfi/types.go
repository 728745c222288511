package adsbfi

import (
	"fmt"
	"strconv"
)

// Aircraft is one raw position report from the ADSB.fi `ac` array.
// Optional numeric fields are pointers so missing values can be told apart
// from zero values after decoding.
type Aircraft struct {
	Hex         string   `json:"hex"`
	Type        string   `json:"type"`
	Flight      string   `json:"flight"`
	Model       string   `json:"t"`
	Description string   `json:"desc"`
	Category    string   `json:"category"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	AltBaro     Altitude `json:"alt_baro"`
	GroundSpeed *float64 `json:"gs"`
	TrueHeading *float64 `json:"true_heading"`
	NavModes    []string `json:"nav_modes"`
	Squawk      string   `json:"squawk"`
	Emergency   string   `json:"emergency"`
	Distance    *float64 `json:"dst"`
	Bearing     *float64 `json:"dir"`
	Seen        *float64 `json:"seen"`
	SeenPos     *float64 `json:"seen_pos"`
	Messages    *int64   `json:"messages"`
	RSSI        *float64 `json:"rssi"`
}

// Altitude is barometric altitude, which ADSB.fi reports either as a number
// of feet or as the literal string "ground".
type Altitude struct {
	Feet   *float64
	Ground bool
}

// UnmarshalJSON accepts a number, the string "ground", or null.
func (a *Altitude) UnmarshalJSON(b []byte) error {
	s := string(b)
	switch {
	case s == "null":
		return nil
	case s == `"ground"`:
		a.Ground = true
		return nil
	case len(s) > 0 && s[0] == '"':
		return fmt.Errorf("unexpected alt_baro value %s", s)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid alt_baro value %s: %w", s, err)
	}
	a.Feet = &f
	return nil
}

// MarshalJSON emits the same shape the API uses.
func (a Altitude) MarshalJSON() ([]byte, error) {
	if a.Ground {
		return []byte(`"ground"`), nil
	}
	if a.Feet == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(*a.Feet, 'f', -1, 64)), nil
}

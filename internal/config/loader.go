package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"planesnearby/internal/ha"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits a field.
const (
	DefaultName           = "Planes Nearby"
	DefaultDistanceNM     = 25.0
	DefaultUpdateInterval = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	MaxDistanceNM         = 250.0
)

// AlertsConfig controls the optional emergency-squawk notifications.
type AlertsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NotifyService string `yaml:"notify_service"`
}

// PlanesConfig is the planes_config.yaml structure. LocationEntityID is the
// only required setting; everything else has a default.
type PlanesConfig struct {
	Name                  string       `yaml:"name"`
	LocationEntityID      string       `yaml:"location_entity_id"`
	DistanceNM            float64      `yaml:"distance_nm"`
	UpdateIntervalSeconds int          `yaml:"update_interval_seconds"`
	RequestTimeoutSeconds int          `yaml:"request_timeout_seconds"`
	ADSBBaseURL           string       `yaml:"adsb_base_url"`
	Alerts                AlertsConfig `yaml:"alerts"`
}

// UpdateInterval returns the poll cadence.
func (c *PlanesConfig) UpdateInterval() time.Duration {
	if c.UpdateIntervalSeconds <= 0 {
		return DefaultUpdateInterval
	}
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout.
func (c *PlanesConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Loader manages configuration file loading and reloading.
type Loader struct {
	configDir    string
	logger       *zap.Logger
	planesConfig *PlanesConfig
}

// NewLoader creates a new configuration loader.
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// Load reads and parses planes_config.yaml, applying defaults and running
// the static validation. It does not touch the previously loaded config on
// failure, so a bad reload keeps the old options active.
func (l *Loader) Load() error {
	path := filepath.Join(l.configDir, "planes_config.yaml")
	l.logger.Debug("Loading planes config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read planes config: %w", err)
	}

	var config PlanesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse planes config: %w", err)
	}

	applyDefaults(&config)
	if err := Validate(&config); err != nil {
		return fmt.Errorf("invalid planes config: %w", err)
	}

	l.planesConfig = &config
	l.logger.Info("Planes config loaded",
		zap.String("location_entity", config.LocationEntityID),
		zap.Float64("distance_nm", config.DistanceNM))
	return nil
}

// Get returns the loaded configuration.
func (l *Loader) Get() *PlanesConfig {
	return l.planesConfig
}

func applyDefaults(c *PlanesConfig) {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.DistanceNM == 0 {
		c.DistanceNM = DefaultDistanceNM
	}
	if c.Alerts.NotifyService == "" {
		c.Alerts.NotifyService = "notify.notify"
	}
}

// Validate performs the static checks that don't need a HA connection.
func Validate(c *PlanesConfig) error {
	if c.LocationEntityID == "" {
		return fmt.Errorf("location_entity_id must be set")
	}
	if !strings.Contains(c.LocationEntityID, ".") {
		return fmt.Errorf("location_entity_id %q is not a valid entity id", c.LocationEntityID)
	}
	if c.DistanceNM <= 0 {
		return fmt.Errorf("distance_nm must be positive, got %v", c.DistanceNM)
	}
	if c.DistanceNM > MaxDistanceNM {
		return fmt.Errorf("distance_nm %v exceeds the API maximum of %v", c.DistanceNM, MaxDistanceNM)
	}
	return nil
}

// ValidateWithHA checks that the location entity exists in the running
// Home Assistant instance and carries latitude/longitude attributes.
func ValidateWithHA(c *PlanesConfig, client ha.HAClient) error {
	state, err := client.GetState(c.LocationEntityID)
	if err != nil {
		return fmt.Errorf("entity %s not found: %w", c.LocationEntityID, err)
	}

	if _, ok := state.Latitude(); !ok {
		return fmt.Errorf("entity %s has no latitude attribute", c.LocationEntityID)
	}
	if _, ok := state.Longitude(); !ok {
		return fmt.Errorf("entity %s has no longitude attribute", c.LocationEntityID)
	}
	return nil
}

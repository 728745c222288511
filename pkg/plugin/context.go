package plugin

import (
	"planesnearby/internal/config"
	"planesnearby/internal/coordinator"
	pkgha "planesnearby/pkg/ha"

	"go.uber.org/zap"
)

// Context provides dependencies to plugins during initialization. It wraps
// the core services needed by all plugins in a single struct for cleaner
// constructor signatures.
type Context struct {
	// HAClient provides access to Home Assistant for publishing entity
	// states and calling services.
	HAClient pkgha.Client

	// Coordinator provides the latest aircraft snapshot and snapshot
	// change notifications.
	Coordinator *coordinator.Coordinator

	// Config is the loaded planes configuration.
	Config *config.PlanesConfig

	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger

	// ReadOnly indicates whether the application is in read-only mode.
	// When true, plugins should log what they would publish but not make
	// actual changes to Home Assistant entities.
	ReadOnly bool
}

// NewContext creates a new plugin context with all required dependencies.
func NewContext(
	haClient pkgha.Client,
	coord *coordinator.Coordinator,
	cfg *config.PlanesConfig,
	logger *zap.Logger,
	readOnly bool,
) *Context {
	return &Context{
		HAClient:    haClient,
		Coordinator: coord,
		Config:      cfg,
		Logger:      logger,
		ReadOnly:    readOnly,
	}
}

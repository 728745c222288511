// Package plugin provides the plugin system interfaces and registry for the
// planes-nearby service. Plugins register themselves with the global registry
// from init() functions, allowing compile-time plugin selection and override
// mechanisms for private implementations.
package plugin

// Plugin is the core interface that all plugins must implement. A plugin is
// a presenter or watcher over the coordinator's snapshots (the count sensor,
// the map markers, the emergency alerts).
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	// This name is used for registration and logging.
	Name() string

	// Start begins the plugin's operation.
	// - Subscribes to coordinator snapshots
	// - Publishes any initial state
	// - Returns error if initialization fails
	Start() error

	// Stop gracefully shuts down the plugin.
	// - Unsubscribes from the coordinator
	// - Releases resources
	Stop()
}

// Factory is a function that creates a new plugin instance given a context.
// Factories are registered with the global registry and called during
// application startup to instantiate plugins.
type Factory func(ctx *Context) (Plugin, error)

package geomarkers

import (
	"fmt"

	pkgha "planesnearby/pkg/ha"
	"planesnearby/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "geomarkers",
		Description: "Maintains one geo_location map marker per aircraft",
		Priority:    plugin.PriorityDefault,
		Order:       20, // After the count sensor (10)
		Factory:     createPlugin,
	})
}

// createPlugin creates a new geo markers plugin instance from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	haClient := pkgha.UnwrapClient(ctx.HAClient)
	if haClient == nil {
		return nil, fmt.Errorf("geomarkers plugin requires internal ha.HAClient")
	}

	manager := NewManager(haClient, ctx.Coordinator, ctx.Logger, ctx.ReadOnly)
	return &pluginAdapter{manager: manager}, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
}

func (p *pluginAdapter) Name() string {
	return "geomarkers"
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}

package countsensor

import (
	"fmt"

	pkgha "planesnearby/pkg/ha"
	"planesnearby/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "countsensor",
		Description: "Publishes the airborne aircraft count as sensor.planes_nearby",
		Priority:    plugin.PriorityDefault,
		Order:       10,
		Factory:     createPlugin,
	})
}

// createPlugin creates a new count sensor plugin instance from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	haClient := pkgha.UnwrapClient(ctx.HAClient)
	if haClient == nil {
		return nil, fmt.Errorf("countsensor plugin requires internal ha.HAClient")
	}

	manager := NewManager(haClient, ctx.Coordinator, ctx.Config.Name, ctx.Logger, ctx.ReadOnly)
	return &pluginAdapter{manager: manager}, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
}

func (p *pluginAdapter) Name() string {
	return "countsensor"
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}

package alerts

import (
	"fmt"

	pkgha "planesnearby/pkg/ha"
	"planesnearby/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "alerts",
		Description: "Notifies on emergency squawks from nearby aircraft",
		Priority:    plugin.PriorityDefault,
		Order:       30, // After the presenters (10, 20)
		Factory:     createPlugin,
		Disabled: func(ctx *plugin.Context) bool {
			return !ctx.Config.Alerts.Enabled
		},
	})
}

// createPlugin creates a new alerts plugin instance from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	haClient := pkgha.UnwrapClient(ctx.HAClient)
	if haClient == nil {
		return nil, fmt.Errorf("alerts plugin requires internal ha.HAClient")
	}

	manager := NewManager(haClient, ctx.Coordinator, ctx.Config.Alerts.NotifyService, ctx.Logger, ctx.ReadOnly)
	return &pluginAdapter{manager: manager}, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
}

func (p *pluginAdapter) Name() string {
	return "alerts"
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}

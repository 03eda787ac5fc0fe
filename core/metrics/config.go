package metrics

import "github.com/kilianp07/ecom/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// ListenAddr serves /metrics when a prometheus sink is configured.
	ListenAddr string `json:"listen_addr"`
	// APIToken protects the /api/runs endpoints served on ListenAddr.
	APIToken string `json:"api_token"`
}

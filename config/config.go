package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/ecom/core/factory"
	"github.com/kilianp07/ecom/core/metrics"
	"github.com/kilianp07/ecom/core/optimizer"
	"github.com/kilianp07/ecom/infra/logger"
	"github.com/kilianp07/ecom/infra/monitoring"
	"github.com/kilianp07/ecom/infra/mqtt"
)

type Config struct {
	Community CommunityConfig      `json:"community"`
	Optimizer optimizer.Config     `json:"optimizer"`
	Scene     SceneConfig          `json:"scene"`
	Metrics   metrics.Config       `json:"metrics"`
	RunLog    factory.ModuleConfig `json:"runlog"`
	// MQTT is nil when schedules are not published.
	MQTT   *mqtt.Config      `json:"mqtt"`
	Sentry monitoring.Config `json:"sentry"`
	Log    logger.Config     `json:"log"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides
// (K_SCENE__WORKERS=4 sets scene.workers), fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	c.Scene.SetDefaults()
	c.Log.SetDefaults()
	if c.RunLog.Type == "" {
		c.RunLog = factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "runs.jsonl"}}
	}
	if c.MQTT != nil {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section. The community itself is validated when it
// is built.
func (c Config) Validate() error {
	if err := c.Community.Validate(); err != nil {
		return fmt.Errorf("community: %w", err)
	}
	opt := c.Optimizer
	if opt.PopDim == 0 {
		opt.PopDim = 1
	}
	if err := opt.Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	if err := c.Scene.Validate(); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if c.MQTT != nil {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	return nil
}

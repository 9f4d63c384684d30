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

	"github.com/railops/rakeplan/core/aggregate"
	coremetrics "github.com/railops/rakeplan/core/metrics"
	"github.com/railops/rakeplan/dataset"
	"github.com/railops/rakeplan/engine"
	"github.com/railops/rakeplan/infra/notify"
)

// Config is the root configuration for rakeplan.
type Config struct {
	Engine  engine.Config      `json:"engine"`
	Dataset dataset.Config     `json:"dataset"`
	Metrics coremetrics.Config `json:"metrics"`
	Notify  notify.Config      `json:"notify"`
	Bands   aggregate.Bands    `json:"utilization_bands"`
}

// Load reads the configuration file (yaml or json) and applies RP_
// environment overrides.
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
	// Optional environment overrides, e.g. RP_ENGINE__BASE_URL.
	if err := k.Load(env.Provider("RP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Engine.SetDefaults()
	cfg.Dataset.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Notify.SetDefaults()
	cfg.Bands.SetDefaults()
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Notify.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

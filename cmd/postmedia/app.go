package main

import (
	"fmt"

	"postmedia/pkg/config"
	"postmedia/pkg/fetch"
	"postmedia/pkg/logger"
	"postmedia/pkg/metadata"
	"postmedia/pkg/resolver"
)

// loadConfig merges the config file, environment and the given flags, then
// points the global logger at the result.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newResolver wires the shared fetch client and metadata extractor into the cascade
func newResolver(cfg *config.Config) *resolver.Resolver {
	log := logger.GetLogger()
	client := fetch.New(cfg.Fetch, log)

	var extractor metadata.Extractor = metadata.Nop{}
	if cfg.Metadata.Enabled {
		extractor = metadata.NewYtDlp(cfg.Metadata.Binary, cfg.Metadata.Timeout)
	}

	return resolver.New(client, extractor, cfg, log)
}

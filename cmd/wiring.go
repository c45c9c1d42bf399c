package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/viper"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/oracle"
	"github.com/user/scanforge/pkg/pipeline"
	"github.com/user/scanforge/pkg/store"
	"github.com/user/scanforge/pkg/tools"
)

// loadConfig reads the config file and applies env/flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v := viper.GetString("crawler"); v != "" {
		cfg.Crawler = v
	}
	if v := viper.GetString("shodan_api_key"); v != "" {
		cfg.ShodanAPIKey = v
	}
	return cfg, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "arango":
		return store.NewArangoStore(ctx)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, st store.Store) (*pipeline.Orchestrator, error) {
	provider, err := oracle.NewProvider(ctx, cfg.SelectedProvider, cfg.GetAPIKey(cfg.SelectedProvider), cfg.SelectedModel)
	if err != nil {
		return nil, fmt.Errorf("initializing provider: %w", err)
	}

	var crawler tools.Crawler
	if cfg.Crawler == "chrome" {
		crawler = tools.NewChromeCrawler(cfg.ProbeTimeout.Std())
	} else {
		crawler = tools.NewHTTPCrawler(cfg.ProbeTimeout.Std())
	}

	var exposure tools.ExposureIndex
	if cfg.ShodanAPIKey != "" {
		exposure = tools.NewShodanClient(cfg.ShodanAPIKey)
	}

	return &pipeline.Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(provider),
		Discoverer: tools.NewNmapDiscoverer(cfg.ToolTimeout.Std()),
		Crawler:    crawler,
		Signatures: tools.NewNucleiScanner(cfg.ToolTimeout.Std()),
		Exposure:   exposure,
		HTTP:       &http.Client{Timeout: cfg.ProbeTimeout.Std()},
		Cfg:        cfg,
	}, nil
}

// Package config loads the YAML application config with viper and decodes
// it into typed structs with mapstructure.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"keel/internal/logger"
	"keel/internal/pkg/symbol"
)

func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch logs config-file change events. Reconfiguration still requires a
// restart; the watch exists so operators can see that a saved edit was
// picked up by the file system, not by the process.
func Watch(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		logger.Infof("config: %s changed (%s), restart to apply", evt.Name, evt.Op)
	})
	v.WatchConfig()
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8090"
	}
	if c.Feed.IntervalMS <= 0 {
		c.Feed.IntervalMS = 1000
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		c.Journal.Path = "data/keel.db"
	}
	for i := range c.Venues {
		if c.Venues[i].Adapter == "" {
			c.Venues[i].Adapter = "paper"
		}
		if c.Venues[i].Account == "" {
			c.Venues[i].Account = "main"
		}
	}
}

func validate(c *Config) error {
	seen := make(map[string]bool, len(c.Venues))
	for _, v := range c.Venues {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("venue id cannot be empty")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate venue id: %s", v.ID)
		}
		seen[v.ID] = true
	}
	for _, p := range c.Products {
		if !symbol.IsValid(p) {
			return fmt.Errorf("invalid product %q, expected venue.symbol", p)
		}
		if !seen[symbol.Parse(p).VenueID] {
			return fmt.Errorf("product %q references unknown venue", p)
		}
	}
	return nil
}

// ProductUniverse parses the configured product list.
func (c *Config) ProductUniverse() []symbol.Product {
	return symbol.ParseList(c.Products)
}

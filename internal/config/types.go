package config

// Config is the application's top-level configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Venues   []VenueConfig  `mapstructure:"venues"`
	Products []string       `mapstructure:"products"`
	Groups   map[string]any `mapstructure:"advisor_groups"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// JournalConfig controls the sqlite telemetry journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// FeedConfig controls the built-in paper market feed.
type FeedConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	IntervalMS int  `mapstructure:"interval_ms"`
}

// VenueConfig declares a venue adapter instance. Params is an opaque JSON
// document interpreted by the adapter.
type VenueConfig struct {
	ID      string `mapstructure:"id"`
	Adapter string `mapstructure:"adapter"`
	Account string `mapstructure:"account"`
	Params  string `mapstructure:"params"`
}

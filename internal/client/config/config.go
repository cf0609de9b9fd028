package config

import "time"

// Config holds runtime settings for the casevault CLI.
type Config struct {
	ServerEndpointAddr string        `envconfig:"ADDR"`
	Token              string        `envconfig:"TOKEN"`
	Retries            uint64        `envconfig:"RETRY_ATTEMPTS"`
	RetryBase          time.Duration `envconfig:"RETRY_BASE"`
	RetryMax           time.Duration `envconfig:"RETRY_MAX"`
	JournalPath        string        `envconfig:"JOURNAL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "localhost:8081"
	c.Retries = 5
	c.RetryBase = 250 * time.Millisecond
	c.RetryMax = 4 * time.Second
}

// LoadConfig applies defaults, then the JSON file named in args, then the
// environment. Later sources take precedence over earlier ones.
func LoadConfig(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseEnv(cfg)
	return cfg
}

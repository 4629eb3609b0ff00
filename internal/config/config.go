package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	RegistryAccount  string
	CatalogAccount   string
	PriorityAccount  string
	PollInterval     time.Duration
	RateLimit        float64
	Out              string
	PGDSN            string
	HTTPListen       string
	DeliveryEnabled  bool
	DeliveryEndpoint string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TXGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll-interval", 10*time.Second)
	v.SetDefault("rate-limit", 5.0)
	v.SetDefault("out", "")
	v.SetDefault("pg-dsn", "")
	v.SetDefault("http-listen", "")
	v.SetDefault("delivery-enabled", false)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		RegistryAccount:  v.GetString("registry-account"),
		CatalogAccount:   v.GetString("catalog-account"),
		PriorityAccount:  v.GetString("priority-account"),
		PollInterval:     v.GetDuration("poll-interval"),
		RateLimit:        v.GetFloat64("rate-limit"),
		Out:              v.GetString("out"),
		PGDSN:            v.GetString("pg-dsn"),
		HTTPListen:       v.GetString("http-listen"),
		DeliveryEnabled:  v.GetBool("delivery-enabled"),
		DeliveryEndpoint: v.GetString("delivery-endpoint"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the fields every command that talks to the ledger needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.RegistryAccount == "" || c.CatalogAccount == "" || c.PriorityAccount == "" {
		return fmt.Errorf("registry, catalog and priority account addresses are required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

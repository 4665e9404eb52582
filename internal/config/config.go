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
	RPCURL          string
	ContractIDs     []string
	PollInterval    time.Duration
	PageSize        uint
	MaxPages        int
	StartLedger     uint32
	RPCTimeout      time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	PGDSN           string
	StorePath       string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisChannel    string
	NotifyQueueSize int
	CreatorCache    int
	HTTPAddr        string
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("poll-interval", 5*time.Second)
		v.SetDefault("page-size", uint(100))
		v.SetDefault("max-pages", 10)
		v.SetDefault("start-ledger", uint32(0))
		v.SetDefault("rpc-timeout", 30*time.Second)
		v.SetDefault("max-retries", 2)
		v.SetDefault("retry-backoff", 250*time.Millisecond)
		v.SetDefault("store-path", "./data/events.jsonl")
		v.SetDefault("redis-db", 0)
		v.SetDefault("redis-channel", "call-notifications")
		v.SetDefault("notify-queue-size", 256)
		v.SetDefault("creator-cache", 4096)
		v.SetDefault("http-addr", ":8090")
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		ContractIDs:     getStringSlice(v, "contract"),
		PollInterval:    v.GetDuration("poll-interval"),
		PageSize:        v.GetUint("page-size"),
		MaxPages:        v.GetInt("max-pages"),
		StartLedger:     v.GetUint32("start-ledger"),
		RPCTimeout:      v.GetDuration("rpc-timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		PGDSN:           v.GetString("pg-dsn"),
		StorePath:       v.GetString("store-path"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		RedisChannel:    v.GetString("redis-channel"),
		NotifyQueueSize: v.GetInt("notify-queue-size"),
		CreatorCache:    v.GetInt("creator-cache"),
		HTTPAddr:        v.GetString("http-addr"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.PageSize == 0 {
		return fmt.Errorf("page-size must be greater than zero")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max-pages must be greater than zero")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

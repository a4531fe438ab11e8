package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	LogLevel  string       `mapstructure:"log_level"`
	LogFormat string       `mapstructure:"log_format"`
	Library   string       `mapstructure:"library"`
	Store     StoreConfig  `mapstructure:"store"`
	Server    ServerConfig `mapstructure:"server"`
}

// StoreConfig selects where documents are kept.
type StoreConfig struct {
	Kind       string           `mapstructure:"kind"`
	Dir        string           `mapstructure:"dir"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	// Redact lists patterns of operator property keys masked before saving.
	Redact []string `mapstructure:"redact"`
}

// EncryptionConfig holds base64-encoded AES-256 keys. Documents are stored
// in plain form when Key is empty.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// RedisConfig holds connection and locking settings for the redis store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("library", ".")
	v.SetDefault("store.kind", StoreMemory)
	v.SetDefault("store.dir", "documents")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "loom:")
	v.SetDefault("store.redis.ttl", "0s")
	v.SetDefault("store.redis.lock_ttl", "30s")
	v.SetDefault("store.encryption.key", "")
	v.SetDefault("store.encryption.fallback_keys", []string{})
	v.SetDefault("store.redact", []string{})
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origin", "*")
}

// Load reads configuration into v from defaults, an optional config file
// and the environment. Env var overrides use prefix LOOM_, e.g.
// LOOM_STORE_REDIS_ADDR. When file is empty, loom.yaml in the working
// directory is read if present.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("loom")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings Load cannot express as defaults.
func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreRedis:
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file store")
		}
	default:
		return fmt.Errorf("unknown store kind %q (want memory, file or redis)", c.Store.Kind)
	}
	if c.Store.Redis.TTL < 0 || c.Store.Redis.LockTTL < 0 {
		return errors.New("store.redis ttl values must not be negative")
	}
	if c.Store.Encryption.Key == "" && len(c.Store.Encryption.FallbackKeys) > 0 {
		return errors.New("store.encryption.fallback_keys require store.encryption.key")
	}
	return nil
}

// Keys decodes the active and fallback encryption keys.
func (e EncryptionConfig) Keys() ([]byte, [][]byte, error) {
	active, err := base64.StdEncoding.DecodeString(e.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("store.encryption.key: %w", err)
	}
	var fallbacks [][]byte
	for i, k := range e.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

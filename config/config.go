package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// JWTConfig holds the token signing material and validity windows.
// Secret may be Base64 or raw text; see auth.NewTokenService for how it is turned into a key.
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	ExpirationSeconds int64  `mapstructure:"expirationSeconds"`
	ClockSkewSeconds  int64  `mapstructure:"clockSkewSeconds"`
	Issuer            string `mapstructure:"issuer"`
}

func (j JWTConfig) Expiration() time.Duration {
	return time.Duration(j.ExpirationSeconds) * time.Second
}

func (j JWTConfig) ClockSkew() time.Duration {
	return time.Duration(j.ClockSkewSeconds) * time.Second
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Metrics struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"metrics"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
		// AuthRateLimit caps register/login calls per client IP per minute. 0 disables it.
		AuthRateLimit int `mapstructure:"authRateLimit"`
	} `mapstructure:"server"`
	JWT   JWTConfig `mapstructure:"jwt"`
	Cache struct {
		DefaultTTL      time.Duration `mapstructure:"defaultTTL"`
		CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	} `mapstructure:"cache"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// JWT_SECRET, REPOSITORIES_POSTGRES_PASSWORD, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.applyDefaults()
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultCacheTTL        = 5 * time.Minute
	defaultCleanupInterval = 10 * time.Minute
)

// applyDefaults fills the durations a zero value would turn into "never"
// (go-cache treats a zero TTL as no expiration).
func (c *Config) applyDefaults() {
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = defaultHTTPTimeout
	}
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = defaultCacheTTL
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = defaultCleanupInterval
	}
}

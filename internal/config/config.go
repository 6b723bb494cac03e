package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "SNIPPETX"
	defaultHTTPAddress = "0.0.0.0:4000"
	defaultLogLevel    = "info"

	defaultRateLimitWindow = 15 * time.Minute
	defaultRateLimitMax    = 100
	defaultTokenTTL        = 24 * time.Hour

	defaultMirrorBranch = "main"
	defaultMirrorPrefix = "snippets"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	LogLevel    string

	APIKey        string
	SigningSecret string
	TokenTTL      time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	MirrorToken      string
	MirrorRepository string
	MirrorBranch     string
	MirrorPathPrefix string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", int(defaultTokenTTL.Minutes()))
	configViper.SetDefault("ratelimit.window_minutes", int(defaultRateLimitWindow.Minutes()))
	configViper.SetDefault("ratelimit.max_requests", defaultRateLimitMax)
	configViper.SetDefault("mirror.branch", defaultMirrorBranch)
	configViper.SetDefault("mirror.path_prefix", defaultMirrorPrefix)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		LogLevel:         configViper.GetString("log.level"),
		APIKey:           configViper.GetString("auth.api_key"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		TokenTTL:         time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		RateLimitWindow:  time.Duration(configViper.GetInt("ratelimit.window_minutes")) * time.Minute,
		RateLimitMax:     configViper.GetInt("ratelimit.max_requests"),
		MirrorToken:      configViper.GetString("mirror.token"),
		MirrorRepository: configViper.GetString("mirror.repository"),
		MirrorBranch:     configViper.GetString("mirror.branch"),
		MirrorPathPrefix: configViper.GetString("mirror.path_prefix"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("ratelimit.window_minutes must be positive")
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("ratelimit.max_requests must be positive")
	}
	if c.MirrorRepository != "" && !strings.Contains(c.MirrorRepository, "/") {
		return fmt.Errorf("mirror.repository must use the owner/repo format")
	}
	return nil
}

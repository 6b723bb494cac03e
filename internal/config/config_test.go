package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.api_key", "key")
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:4000" {
		t.Fatalf("unexpected default address %q", cfg.HTTPAddress)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected default log level %q", cfg.LogLevel)
	}
	if cfg.RateLimitWindow != 15*time.Minute || cfg.RateLimitMax != 100 {
		t.Fatalf("unexpected default rate limit %v/%d", cfg.RateLimitWindow, cfg.RateLimitMax)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected default token ttl %v", cfg.TokenTTL)
	}
	if cfg.MirrorBranch != "main" || cfg.MirrorPathPrefix != "snippets" {
		t.Fatalf("unexpected mirror defaults %q/%q", cfg.MirrorBranch, cfg.MirrorPathPrefix)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	configViper := NewViper()

	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "auth.api_key") {
		t.Fatalf("expected api key requirement, got %v", err)
	}

	configViper.Set("auth.api_key", "key")
	if _, err := Load(configViper); err == nil || !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("expected signing secret requirement, got %v", err)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.api_key", "key")
	configViper.Set("auth.signing_secret", "secret")

	configViper.Set("ratelimit.max_requests", 0)
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected rejection of zero request quota")
	}
	configViper.Set("ratelimit.max_requests", 100)

	configViper.Set("mirror.repository", "missing-owner")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected rejection of malformed repository")
	}
}

func TestLoadReadsEnvironmentBindings(t *testing.T) {
	t.Setenv("SNIPPETX_AUTH_API_KEY", "env-key")
	t.Setenv("SNIPPETX_AUTH_SIGNING_SECRET", "env-secret")
	t.Setenv("SNIPPETX_HTTP_ADDRESS", "127.0.0.1:9000")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.APIKey != "env-key" || cfg.SigningSecret != "env-secret" {
		t.Fatalf("environment credentials not picked up: %#v", cfg)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("environment address not picked up: %q", cfg.HTTPAddress)
	}
}

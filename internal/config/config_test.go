package config

import (
	"testing"
	"time"

	"github.com/yachaflex/pairing/internal/service/link"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "PAIRING_PUBLIC_URL", "PAIRING_LINK_SCHEME", "PAIRING_LINK_HOST", "PAIRING_LINK_STYLE",
		"PAIRING_TOKEN_SECRET", "PAIRING_TOKEN_ISSUER", "PAIRING_SESSION_TTL", "PAIRING_SWEEP_INTERVAL",
		"FORWARDER_WINDOW", "FORWARDER_HTTP_TIMEOUT", "FORWARDER_PROVIDER_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Server.Addr)
	}
	p := cfg.Pairing
	if p.PublicURL != "http://localhost:8080" || p.LinkScheme != link.DefaultScheme || p.LinkHost != link.DefaultHost {
		t.Fatalf("unexpected pairing defaults %+v", p)
	}
	if p.LinkStyle != link.StyleCustom || p.TokenIssuer != "yachaflex-relay" {
		t.Fatalf("unexpected pairing defaults %+v", p)
	}
	if p.SessionTTL != 10*time.Minute || p.SweepInterval != time.Minute {
		t.Fatalf("unexpected durations ttl=%s sweep=%s", p.SessionTTL, p.SweepInterval)
	}
	if len(p.TokenSecret) == 0 {
		t.Fatal("expected a generated secret")
	}
	if cfg.Forwarder.Window != time.Hour || cfg.Forwarder.HTTPTimeout != 15*time.Second || cfg.Forwarder.ProviderFile != "health.yaml" {
		t.Fatalf("unexpected forwarder defaults %+v", cfg.Forwarder)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("PAIRING_PUBLIC_URL", "https://relay.example/")
	t.Setenv("PAIRING_LINK_STYLE", "HTTPS")
	t.Setenv("PAIRING_TOKEN_SECRET", "s3cret")
	t.Setenv("PAIRING_SESSION_TTL", "2m")
	t.Setenv("FORWARDER_WINDOW", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr)
	}
	if cfg.Pairing.PublicURL != "https://relay.example" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Pairing.PublicURL)
	}
	if cfg.Pairing.LinkStyle != link.StyleUniversal || string(cfg.Pairing.TokenSecret) != "s3cret" {
		t.Fatalf("unexpected pairing config %+v", cfg.Pairing)
	}
	if cfg.Pairing.SessionTTL != 2*time.Minute || cfg.Forwarder.Window != 30*time.Minute {
		t.Fatalf("unexpected durations %+v %+v", cfg.Pairing, cfg.Forwarder)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "PORT", value: "80 80"},
		{key: "PAIRING_PUBLIC_URL", value: "relay.example"},
		{key: "PAIRING_LINK_STYLE", value: "intent"},
		{key: "PAIRING_SESSION_TTL", value: "ten minutes"},
		{key: "PAIRING_SWEEP_INTERVAL", value: "-1m"},
		{key: "FORWARDER_HTTP_TIMEOUT", value: "0s"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/yachaflex/pairing/internal/service/link"
)

// Config aggregates every setting of the relay and the forwarder.
type Config struct {
	Server    ServerConfig
	Pairing   PairingConfig
	Forwarder ForwarderConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	pairing, err := loadPairingConfig()
	if err != nil {
		return nil, err
	}

	forwarder, err := loadForwarderConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Pairing: pairing, Forwarder: forwarder}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are taken as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// PairingConfig describes the relay sessions and the links they hand out.
type PairingConfig struct {
	PublicURL     string
	LinkScheme    string
	LinkHost      string
	LinkStyle     link.Style
	TokenSecret   []byte
	TokenIssuer   string
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

func loadPairingConfig() (PairingConfig, error) {
	publicURL := strings.TrimRight(getEnvOrDefault("PAIRING_PUBLIC_URL", "http://localhost:8080"), "/")
	if u, err := url.Parse(publicURL); err != nil || u.Scheme == "" || u.Host == "" {
		return PairingConfig{}, fmt.Errorf("invalid PAIRING_PUBLIC_URL value %q", publicURL)
	}

	style := link.Style(strings.ToLower(getEnvOrDefault("PAIRING_LINK_STYLE", string(link.StyleCustom))))
	if style != link.StyleCustom && style != link.StyleUniversal {
		return PairingConfig{}, fmt.Errorf("invalid PAIRING_LINK_STYLE value %q: want %q or %q", style, link.StyleCustom, link.StyleUniversal)
	}

	ttl, err := parseDurationEnv("PAIRING_SESSION_TTL", 10*time.Minute)
	if err != nil {
		return PairingConfig{}, err
	}
	sweep, err := parseDurationEnv("PAIRING_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return PairingConfig{}, err
	}

	secret := []byte(strings.TrimSpace(os.Getenv("PAIRING_TOKEN_SECRET")))
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			return PairingConfig{}, err
		}
		log.Println("warning: PAIRING_TOKEN_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	return PairingConfig{
		PublicURL:     publicURL,
		LinkScheme:    getEnvOrDefault("PAIRING_LINK_SCHEME", link.DefaultScheme),
		LinkHost:      getEnvOrDefault("PAIRING_LINK_HOST", link.DefaultHost),
		LinkStyle:     style,
		TokenSecret:   secret,
		TokenIssuer:   getEnvOrDefault("PAIRING_TOKEN_ISSUER", "yachaflex-relay"),
		SessionTTL:    ttl,
		SweepInterval: sweep,
	}, nil
}

// ForwarderConfig holds the CLI defaults; flags override them.
type ForwarderConfig struct {
	Window       time.Duration
	HTTPTimeout  time.Duration
	ProviderFile string
}

func loadForwarderConfig() (ForwarderConfig, error) {
	window, err := parseDurationEnv("FORWARDER_WINDOW", time.Hour)
	if err != nil {
		return ForwarderConfig{}, err
	}
	timeout, err := parseDurationEnv("FORWARDER_HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return ForwarderConfig{}, err
	}

	return ForwarderConfig{
		Window:       window,
		HTTPTimeout:  timeout,
		ProviderFile: getEnvOrDefault("FORWARDER_PROVIDER_FILE", "health.yaml"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func randomSecret() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}

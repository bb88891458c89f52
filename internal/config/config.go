package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultChatSecret is used when CHAT_SECRET is unset. All message content is
// encrypted under a key derived from this secret, so an unconfigured
// deployment gets obfuscation only.
const DefaultChatSecret = "nchekwa-dev-secret"

type Config struct {
	Port        int
	ChatSecret  string
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string
	TokenExpiry time.Duration
	Retention   time.Duration
	StateFile   string
	LogFile     string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:        3000,
		ChatSecret:  DefaultChatSecret,
		GinMode:     "release",
		TokenExpiry: 30 * 24 * time.Hour,
		Retention:   30 * 24 * time.Hour,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("CHAT_SECRET"); raw != "" {
		cfg.ChatSecret = raw
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.StateFile = env.Getenv("STATE_FILE")
	cfg.LogFile = env.Getenv("LOG_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("RETENTION_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("invalid RETENTION_DAYS")
		}
		cfg.Retention = time.Duration(days) * 24 * time.Hour
	}

	return cfg, nil
}

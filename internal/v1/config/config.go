package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration for the watch party server.
type Config struct {
	// Listen port (PORT, defaults to 8080)
	Port string

	// CORS / origin policy
	CorsOrigin string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// SFU / media engine
	MediasoupAnnouncedIP  string
	MediasoupMinPort      int
	MediasoupMaxPort      int
	MediasoupNumWorkers   int

	// TURN relay, surfaced verbatim through GET /ice-servers
	TurnURL        string
	TurnUsername   string
	TurnCredential string

	// Comments proxy upstreams, used round-robin one per request
	InvidiousInstances []string

	// Optional Redis bus, used for the readiness check and the rate limiter's store
	BusRedisAddr     string
	BusRedisPassword string

	// Rate limits (ulule/limiter format: "<limit>-<period>")
	RateLimitApiGlobal string
	RateLimitApiRooms  string
	RateLimitWsIp      string
}

// ValidateEnv validates all required environment variables and returns a Config.
// Every problem found is reported together instead of failing on the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getEnvOrDefault("PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.CorsOrigin = getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000")

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.MediasoupAnnouncedIP = os.Getenv("MEDIASOUP_ANNOUNCED_IP")

	cfg.MediasoupMinPort = getIntOrDefault("MEDIASOUP_MIN_PORT", 40000)
	cfg.MediasoupMaxPort = getIntOrDefault("MEDIASOUP_MAX_PORT", 49999)
	if cfg.MediasoupMaxPort <= cfg.MediasoupMinPort {
		errs = append(errs, "MEDIASOUP_MAX_PORT must be greater than MEDIASOUP_MIN_PORT")
	}

	cfg.MediasoupNumWorkers = getIntOrDefault("MEDIASOUP_NUM_WORKERS", 2)
	if cfg.MediasoupNumWorkers < 1 {
		errs = append(errs, "MEDIASOUP_NUM_WORKERS must be at least 1")
	}

	cfg.TurnURL = os.Getenv("TURN_URL")
	cfg.TurnUsername = os.Getenv("TURN_USERNAME")
	cfg.TurnCredential = os.Getenv("TURN_CREDENTIAL")

	if raw := os.Getenv("INVIDIOUS_INSTANCES"); raw != "" {
		for _, inst := range strings.Split(raw, ",") {
			inst = strings.TrimSpace(inst)
			if inst != "" {
				cfg.InvidiousInstances = append(cfg.InvidiousInstances, inst)
			}
		}
	}
	if len(cfg.InvidiousInstances) == 0 {
		cfg.InvidiousInstances = []string{"https://invidious.io"}
	}

	cfg.BusRedisAddr = os.Getenv("BUS_REDIS_ADDR")
	cfg.BusRedisPassword = os.Getenv("BUS_REDIS_PASSWORD")

	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitApiRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitWsIp = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"cors_origin", cfg.CorsOrigin,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"mediasoup_num_workers", cfg.MediasoupNumWorkers,
		"mediasoup_port_range", fmt.Sprintf("%d-%d", cfg.MediasoupMinPort, cfg.MediasoupMaxPort),
		"bus_enabled", cfg.BusRedisAddr != "",
		"invidious_instances", len(cfg.InvidiousInstances),
	)
}

package config

import (
	"os"
	"strings"
	"testing"
)

func setupTestEnv(t *testing.T) func() {
	keys := []string{
		"PORT", "CORS_ORIGIN", "GO_ENV", "LOG_LEVEL",
		"MEDIASOUP_ANNOUNCED_IP", "MEDIASOUP_MIN_PORT", "MEDIASOUP_MAX_PORT", "MEDIASOUP_NUM_WORKERS",
		"TURN_URL", "TURN_USERNAME", "TURN_CREDENTIAL",
		"INVIDIOUS_INSTANCES", "BUS_REDIS_ADDR", "BUS_REDIS_PASSWORD",
	}
	orig := map[string]string{}
	for _, k := range keys {
		orig[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	return func() {
		for k, v := range orig {
			if v != "" {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

func TestValidateEnv_Defaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected PORT to default to 8080, got %q", cfg.Port)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("expected GO_ENV to default to production, got %q", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LOG_LEVEL to default to info, got %q", cfg.LogLevel)
	}
	if cfg.MediasoupNumWorkers != 2 {
		t.Errorf("expected MEDIASOUP_NUM_WORKERS to default to 2, got %d", cfg.MediasoupNumWorkers)
	}
	if len(cfg.InvidiousInstances) != 1 {
		t.Errorf("expected one default Invidious instance, got %v", cfg.InvidiousInstances)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "99999")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid PORT, got nil")
	}
	if !strings.Contains(err.Error(), "PORT must be a valid port number") {
		t.Errorf("expected error message about invalid PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidPortRange(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("MEDIASOUP_MIN_PORT", "50000")
	os.Setenv("MEDIASOUP_MAX_PORT", "40000")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for inverted port range, got nil")
	}
	if !strings.Contains(err.Error(), "MEDIASOUP_MAX_PORT must be greater") {
		t.Errorf("expected error about port range, got: %v", err)
	}
}

func TestValidateEnv_InvalidWorkerCount(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("MEDIASOUP_NUM_WORKERS", "0")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for zero workers, got nil")
	}
	if !strings.Contains(err.Error(), "MEDIASOUP_NUM_WORKERS must be at least 1") {
		t.Errorf("expected error about worker count, got: %v", err)
	}
}

func TestValidateEnv_InvidiousInstancesParsed(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("INVIDIOUS_INSTANCES", "https://a.example, https://b.example,,https://c.example")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(cfg.InvidiousInstances) != len(want) {
		t.Fatalf("expected %d instances, got %v", len(want), cfg.InvidiousInstances)
	}
	for i, w := range want {
		if cfg.InvidiousInstances[i] != w {
			t.Errorf("instance %d: expected %q, got %q", i, w, cfg.InvidiousInstances[i])
		}
	}
}

func TestValidateEnv_BusOptional(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.BusRedisAddr != "" {
		t.Errorf("expected BusRedisAddr to be empty by default, got %q", cfg.BusRedisAddr)
	}
}

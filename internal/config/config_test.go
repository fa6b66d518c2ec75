package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	def := DefaultConfig()
	if cfg.Storage.Backend != BackendBolt {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, BackendBolt)
	}
	if cfg.Storage.Path != def.Storage.Path {
		t.Errorf("Path = %q, want %q", cfg.Storage.Path, def.Storage.Path)
	}
	if cfg.Storage.Redis.Addr != "localhost:6379" || cfg.Storage.Redis.Prefix != "marquee:" {
		t.Errorf("Redis = %+v, want defaults", cfg.Storage.Redis)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", cfg.Logging.Level)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	content := `
storage:
  backend: Redis
  profile: alice
  redis:
    addr: cache.internal:6380
    db: 2
logging:
  level: debug
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Backend != BackendRedis {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, BackendRedis)
	}
	if cfg.Storage.Profile != "alice" {
		t.Errorf("Profile = %q, want alice", cfg.Storage.Profile)
	}
	if cfg.Storage.Redis.Addr != "cache.internal:6380" || cfg.Storage.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Storage.Redis)
	}
	// Unset keys keep their defaults
	if cfg.Storage.Redis.Prefix != "marquee:" {
		t.Errorf("Prefix = %q, want marquee:", cfg.Storage.Redis.Prefix)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage:\n  backend: bolt\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("MARQUEE_STORAGE_BACKEND", "MEMORY")
	t.Setenv("MARQUEE_STORAGE_REDIS_ADDR", "env:6379")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, BackendMemory)
	}
	if cfg.Storage.Redis.Addr != "env:6379" {
		t.Errorf("Redis.Addr = %q, want env:6379", cfg.Storage.Redis.Addr)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("storage: [unclosed"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cfg := DefaultConfig()
	cfg.Storage.Backend = BackendRedis
	cfg.Storage.Profile = "bob"
	cfg.Storage.Redis.Addr = "10.0.0.5:6379"
	cfg.Storage.Redis.Prefix = "mq:"
	cfg.Logging.Level = "WARN"

	if err := SaveConfig(cfg, dir); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Storage != cfg.Storage {
		t.Errorf("Storage = %+v, want %+v", loaded.Storage, cfg.Storage)
	}
	if loaded.Logging != cfg.Logging {
		t.Errorf("Logging = %+v, want %+v", loaded.Logging, cfg.Logging)
	}
}

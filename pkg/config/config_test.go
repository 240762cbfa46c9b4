package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("default logging level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("default logging format = %q, want text", cfg.Logging.Format)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("default store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("default shutdown timeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.Decoder.BufferSize.Int() != 8192 {
		t.Errorf("default decoder buffer size = %d, want 8192", cfg.Decoder.BufferSize.Int())
	}
}

func TestApplyDefaults_NormalizesLogLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "debug"
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("normalized level = %q, want DEBUG", cfg.Logging.Level)
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store backend = %q, want memory", cfg.Store.Backend)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
logging:
  level: debug
  format: json
server:
  port: 9999
store:
  backend: badger
  badger:
    path: /tmp/formflow-test
decoder:
  buffer_size: 64Ki
  max_value_size: 1Mi
shutdown_timeout: 10s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("logging level = %q, want DEBUG", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Store.Backend != "badger" {
		t.Errorf("store backend = %q, want badger", cfg.Store.Backend)
	}
	if cfg.Decoder.BufferSize.Int() != 64*1024 {
		t.Errorf("decoder buffer size = %d, want 65536", cfg.Decoder.BufferSize.Int())
	}
	if cfg.Decoder.MaxValueSize.Int64() != 1024*1024 {
		t.Errorf("decoder max value size = %d, want 1048576", cfg.Decoder.MaxValueSize.Int64())
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 8181
	cfg.Store.Backend = "memory"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 8181 {
		t.Errorf("reloaded port = %d, want 8181", loaded.Server.Port)
	}
}

func TestInitConfigToPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	// Second init without force must fail
	if err := InitConfigToPath(path, false); err == nil {
		t.Fatal("expected error when config already exists")
	}

	// Force overwrites
	if err := InitConfigToPath(path, true); err != nil {
		t.Fatalf("InitConfigToPath with force failed: %v", err)
	}

	// The sample config must load cleanly
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of sample config failed: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("sample store backend = %q, want memory", cfg.Store.Backend)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log format")
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000 // Out of range

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_InvalidBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Backend = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Backend = "s3"
	cfg.Store.S3.Bucket = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing s3 bucket")
	}
}

func TestValidate_S3PartSizeMinimum(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Backend = "s3"
	cfg.Store.S3.Bucket = "uploads"
	cfg.Store.S3.PartSize = 1024 // Below the 5MB S3 minimum

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for small part size")
	}
}

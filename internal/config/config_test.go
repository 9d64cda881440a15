package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
detect:
  confidence_threshold: 0.7
api:
  enabled: true
  addr: ":9100"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Detect.ConfidenceThreshold != 0.7 {
		t.Fatalf("explicit values lost: %+v", cfg)
	}
	if cfg.API.Addr != ":9100" {
		t.Fatalf("addr = %q", cfg.API.Addr)
	}
	// Unset sections keep defaults.
	if cfg.Camera.FrameRate != 30 || cfg.Monitor.HeartbeatInterval != 5*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg.Camera)
	}
	if cfg.Alerts.StoreLimit != 1000 {
		t.Fatalf("alerts.store_limit = %d", cfg.Alerts.StoreLimit)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"log_level": "warn", "camera": {"frame_rate": 10}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Camera.FrameRate != 10 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detect.ConfidenceThreshold = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatal("threshold above 1 accepted")
	}

	cfg = DefaultConfig()
	cfg.Storage.Enabled = true
	cfg.Storage.Driver = "oracle"
	if err := Validate(cfg); err == nil {
		t.Fatal("unsupported storage driver accepted")
	}

	cfg = DefaultConfig()
	cfg.Export.Kafka.Enabled = true
	cfg.Export.Kafka.Brokers = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("kafka without brokers accepted")
	}

	cfg = DefaultConfig()
	cfg.Summarizer.Enabled = true
	cfg.Summarizer.APIKey = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("summarizer without api key accepted")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Camera.FrameRate = 15
	cfg.Export.Kafka.Enabled = true
	cfg.Export.Kafka.Brokers = []string{"localhost:9092"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LogLevel != "debug" || loaded.Camera.FrameRate != 15 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if len(loaded.Export.Kafka.Brokers) != 1 {
		t.Fatalf("brokers = %v", loaded.Export.Kafka.Brokers)
	}
}

func TestManagerUpdateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	next := *m.Get()
	next.LogLevel = "debug"
	if err := m.Update(&next); err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Get().LogLevel != "debug" {
		t.Fatal("update not visible")
	}
	reloaded, err := m.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LogLevel != "debug" {
		t.Fatal("update not persisted to disk")
	}
}

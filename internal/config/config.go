package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Camera     CameraConfig     `json:"camera" yaml:"camera"`
	Detect     DetectConfig     `json:"detect" yaml:"detect"`
	Monitor    MonitorConfig    `json:"monitor" yaml:"monitor"`
	Hub        HubConfig        `json:"hub" yaml:"hub"`
	API        APIConfig        `json:"api" yaml:"api"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Export     ExportConfig     `json:"export" yaml:"export"`
	Summarizer SummarizerConfig `json:"summarizer" yaml:"summarizer"`
	Alerts     AlertsConfig     `json:"alerts" yaml:"alerts"`
}

type CameraConfig struct {
	FrameWidth    int           `json:"frame_width" yaml:"frame_width"`
	FrameHeight   int           `json:"frame_height" yaml:"frame_height"`
	FrameRate     float64       `json:"frame_rate" yaml:"frame_rate"`
	ReadBackoff   time.Duration `json:"read_backoff" yaml:"read_backoff"`
	RemoveTimeout time.Duration `json:"remove_timeout" yaml:"remove_timeout"`
}

type DetectConfig struct {
	ConfidenceThreshold float64       `json:"confidence_threshold" yaml:"confidence_threshold"`
	Endpoint            string        `json:"endpoint" yaml:"endpoint"`
	Timeout             time.Duration `json:"timeout" yaml:"timeout"`
}

type MonitorConfig struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	SummaryInterval   time.Duration `json:"summary_interval" yaml:"summary_interval"`
}

type HubConfig struct {
	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type ExportConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	Brokers         []string `json:"brokers" yaml:"brokers"`
	DetectionsTopic string   `json:"detections_topic" yaml:"detections_topic"`
	AlertsTopic     string   `json:"alerts_topic" yaml:"alerts_topic"`
}

type SummarizerConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Endpoint string        `json:"endpoint" yaml:"endpoint"`
	APIKey   string        `json:"api_key" yaml:"api_key"`
	Model    string        `json:"model" yaml:"model"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type AlertsConfig struct {
	StoreLimit int           `json:"store_limit" yaml:"store_limit"`
	Cooldown   time.Duration `json:"cooldown" yaml:"cooldown"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Camera: CameraConfig{
			FrameWidth:    640,
			FrameHeight:   480,
			FrameRate:     30,
			ReadBackoff:   1 * time.Second,
			RemoveTimeout: 5 * time.Second,
		},
		Detect: DetectConfig{
			ConfidenceThreshold: 0.5,
			Timeout:             10 * time.Second,
		},
		Monitor: MonitorConfig{
			HeartbeatInterval: 5 * time.Second,
			SummaryInterval:   10 * time.Minute,
		},
		Hub:     HubConfig{SendTimeout: 5 * time.Second},
		API:     APIConfig{Enabled: true, Addr: ":8000"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:wardwatch.db?_pragma=busy_timeout(5000)"},
		Export: ExportConfig{
			Kafka: KafkaConfig{
				Enabled:         false,
				DetectionsTopic: "wardwatch.detections",
				AlertsTopic:     "wardwatch.alerts",
			},
		},
		Summarizer: SummarizerConfig{
			Enabled:  false,
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4",
			Timeout:  30 * time.Second,
		},
		Alerts: AlertsConfig{StoreLimit: 1000, Cooldown: 30 * time.Second},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Camera.FrameWidth <= 0 {
		cfg.Camera.FrameWidth = def.Camera.FrameWidth
	}
	if cfg.Camera.FrameHeight <= 0 {
		cfg.Camera.FrameHeight = def.Camera.FrameHeight
	}
	if cfg.Camera.FrameRate <= 0 {
		cfg.Camera.FrameRate = def.Camera.FrameRate
	}
	if cfg.Camera.ReadBackoff <= 0 {
		cfg.Camera.ReadBackoff = def.Camera.ReadBackoff
	}
	if cfg.Camera.RemoveTimeout <= 0 {
		cfg.Camera.RemoveTimeout = def.Camera.RemoveTimeout
	}
	if cfg.Detect.Timeout <= 0 {
		cfg.Detect.Timeout = def.Detect.Timeout
	}
	if cfg.Monitor.HeartbeatInterval <= 0 {
		cfg.Monitor.HeartbeatInterval = def.Monitor.HeartbeatInterval
	}
	if cfg.Monitor.SummaryInterval <= 0 {
		cfg.Monitor.SummaryInterval = def.Monitor.SummaryInterval
	}
	if cfg.Hub.SendTimeout <= 0 {
		cfg.Hub.SendTimeout = def.Hub.SendTimeout
	}
	if cfg.Export.Kafka.DetectionsTopic == "" {
		cfg.Export.Kafka.DetectionsTopic = def.Export.Kafka.DetectionsTopic
	}
	if cfg.Export.Kafka.AlertsTopic == "" {
		cfg.Export.Kafka.AlertsTopic = def.Export.Kafka.AlertsTopic
	}
	if cfg.Summarizer.Endpoint == "" {
		cfg.Summarizer.Endpoint = def.Summarizer.Endpoint
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = def.Summarizer.Model
	}
	if cfg.Summarizer.Timeout <= 0 {
		cfg.Summarizer.Timeout = def.Summarizer.Timeout
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = def.Alerts.StoreLimit
	}
}

func Validate(cfg *Config) error {
	if cfg.Detect.ConfidenceThreshold < 0 || cfg.Detect.ConfidenceThreshold > 1 {
		return errors.New("detect.confidence_threshold must be in [0,1]")
	}
	if cfg.Camera.FrameRate <= 0 {
		return errors.New("camera.frame_rate must be > 0")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("storage.driver unsupported: %q", cfg.Storage.Driver)
		}
	}
	if cfg.Export.Kafka.Enabled && len(cfg.Export.Kafka.Brokers) == 0 {
		return errors.New("export.kafka.brokers required when export.kafka.enabled is true")
	}
	if cfg.Summarizer.Enabled && cfg.Summarizer.APIKey == "" {
		return errors.New("summarizer.api_key required when summarizer.enabled is true")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file; Reload and
// Watch are no-ops for it.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}

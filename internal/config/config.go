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

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	Cooldown    CooldownConfig    `json:"cooldown" yaml:"cooldown"`
	Cleanup     CleanupConfig     `json:"cleanup" yaml:"cleanup"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	Bypass      BypassConfig      `json:"bypass" yaml:"bypass"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	API         APIConfig         `json:"api" yaml:"api"`
	Ingest      IngestConfig      `json:"ingest" yaml:"ingest"`
	Journal     JournalConfig     `json:"journal" yaml:"journal"`
}

type CooldownConfig struct {
	DurationSeconds int  `json:"duration_seconds" yaml:"duration_seconds"`
	LogActions      bool `json:"log_actions" yaml:"log_actions"`
}

// Duration returns the configured cooldown; zero means the action is
// always allowed.
func (c CooldownConfig) Duration() time.Duration {
	if c.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DurationSeconds) * time.Second
}

type CleanupConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	IntervalMinutes int  `json:"interval_minutes" yaml:"interval_minutes"`
}

// Interval returns the sweep cadence; zero disables the sweeper.
func (c CleanupConfig) Interval() time.Duration {
	if !c.Enabled || c.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

type PersistenceConfig struct {
	SaveIntervalSeconds int `json:"save_interval_seconds" yaml:"save_interval_seconds"`
}

func (c PersistenceConfig) SaveInterval() time.Duration {
	if c.SaveIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SaveIntervalSeconds) * time.Second
}

type BypassConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Actors  []string `json:"actors" yaml:"actors"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type IngestConfig struct {
	Kafka               KafkaConfig `json:"kafka" yaml:"kafka"`
	TCP                 TCPConfig   `json:"tcp" yaml:"tcp"`
	DedupeWindowSeconds int         `json:"dedupe_window_seconds" yaml:"dedupe_window_seconds"`
}

func (c IngestConfig) DedupeWindow() time.Duration {
	if c.DedupeWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DedupeWindowSeconds) * time.Second
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type TCPConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type JournalConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Cooldown: CooldownConfig{
			DurationSeconds: 86400,
			LogActions:      true,
		},
		Cleanup: CleanupConfig{
			Enabled:         true,
			IntervalMinutes: 10,
		},
		Persistence: PersistenceConfig{SaveIntervalSeconds: 30},
		Bypass:      BypassConfig{Enabled: false},
		Storage:     StorageConfig{Driver: "file", Path: "cooldowns.yml"},
		API:         APIConfig{Enabled: true, Addr: ":8081"},
		Ingest: IngestConfig{
			Kafka:               KafkaConfig{Enabled: false},
			TCP:                 TCPConfig{Enabled: false, Addr: ":9000"},
			DedupeWindowSeconds: 2,
		},
		Journal: JournalConfig{StoreLimit: 1000},
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
	if cfg.Cooldown.DurationSeconds < 0 {
		cfg.Cooldown.DurationSeconds = 0
	}
	if cfg.Cleanup.IntervalMinutes < 0 {
		cfg.Cleanup.IntervalMinutes = 0
	}
	if cfg.Persistence.SaveIntervalSeconds <= 0 {
		cfg.Persistence.SaveIntervalSeconds = 30
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Driver == "file" && cfg.Storage.Path == "" {
		cfg.Storage.Path = "cooldowns.yml"
	}
	if cfg.Journal.StoreLimit <= 0 {
		cfg.Journal.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "file", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("storage.driver unsupported: %s", cfg.Storage.Driver)
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.TCP.Enabled && cfg.Ingest.TCP.Addr == "" {
		return errors.New("ingest.tcp.addr required when ingest.tcp.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	for _, actor := range cfg.Bypass.Actors {
		if _, err := uuid.Parse(strings.TrimSpace(actor)); err != nil {
			return fmt.Errorf("bypass.actors contains invalid uuid %q: %w", actor, err)
		}
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

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

// Reload re-reads the config file. On failure the previously cached
// config stays in effect.
func (m *Manager) Reload() (*Config, error) {
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

func (m *Manager) NeedsReload() (bool, error) {
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

package config

// #region imports
import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region types

// Config is the complete engine configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Model      ModelConfig      `yaml:"model"`
	Runner     RunnerConfig     `yaml:"runner"`
	Cloud      CloudConfig      `yaml:"cloud"`
	Probe      ProbeConfig      `yaml:"probe"`
	Selection  SelectionConfig  `yaml:"selection"`
	Validation ValidationConfig `yaml:"validation"`
	Archive    ArchiveConfig    `yaml:"archive"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Server     ServerConfig     `yaml:"server"`
}

// EngineConfig tunes execution behavior.
type EngineConfig struct {
	LocalDeadlineMS   int     `yaml:"local_deadline_ms"`   // per-attempt deadline for the local model (default: 5000)
	CloudDeadlineMS   int     `yaml:"cloud_deadline_ms"`   // per-attempt deadline for the cloud service (default: 10000)
	OfflineDeadlineMS int     `yaml:"offline_deadline_ms"` // per-attempt deadline for the offline heuristic (default: 1000)
	LowConfidence     float32 `yaml:"low_confidence"`      // top confidence below this triggers a second opinion (default: 0.3)
	GraceWindowMS     int     `yaml:"grace_window_ms"`     // hybrid race wait for the slower side (default: 1500)
	ImproveDelta      float32 `yaml:"improve_delta"`       // confidence gain needed to replace a provisional result (default: 0.1)
	HybridRace        *bool   `yaml:"hybrid_race"`         // race local and cloud when both are viable (default: true)
	BatchConcurrency  int     `yaml:"batch_concurrency"`   // parallel analyses in a batch (default: 3)
	ChangeShift       float32 `yaml:"change_shift"`        // top-confidence movement that counts as change (default: 0.2)
}

// ModelConfig locates the on-device model.
type ModelConfig struct {
	Path            string `yaml:"path"`
	Watch           bool   `yaml:"watch"`             // reload when the model file changes on disk
	LoadTimeoutMS   int    `yaml:"load_timeout_ms"`   // default: 120000
	UpdateCheckCron string `yaml:"update_check_cron"` // cron spec for scheduled update checks, empty disables
}

// RunnerConfig locates the local inference runner.
type RunnerConfig struct {
	Socket string `yaml:"socket"` // unix socket path, empty disables the local provider
}

// CloudConfig locates the remote analysis service.
type CloudConfig struct {
	BaseURL   string `yaml:"base_url"` // empty disables the cloud provider
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"` // env var consulted when api_key is empty
}

// ProbeConfig tunes device context probing.
type ProbeConfig struct {
	ReachabilityAddr string `yaml:"reachability_addr"` // host:port dialed to grade the link (default: 1.1.1.1:443)
	DeviceCapable    *bool  `yaml:"device_capable"`    // whether this device can run the local model (default: true)
}

// SelectionConfig tunes mode selection.
type SelectionConfig struct {
	BiasEnabled     *bool   `yaml:"bias_enabled"`      // learn provider affinity from history (default: true)
	BatteryFloor    float32 `yaml:"battery_floor"`     // local loses its battery point below this (default: 0.3)
	WeakLocalCutoff float32 `yaml:"weak_local_cutoff"` // cloud gains a point when local scores under this (default: 0.4)
	BiasCap         float32 `yaml:"bias_cap"`          // largest learned nudge either way (default: 0.1)
}

// ValidationConfig tunes result annotation.
type ValidationConfig struct {
	LowConfidence  float32 `yaml:"low_confidence"`   // warn below this top confidence (default: 0.7)
	HistoryMinConf float32 `yaml:"history_min_conf"` // both results must be at least this confident to compare (default: 0.5)
}

// ArchiveConfig locates the analysis journal.
type ArchiveConfig struct {
	Path string `yaml:"path"` // sqlite file, empty disables persistence
}

// MQTTConfig contains event broker settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // empty disables event publishing
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // default: panderm
	QoS         byte   `yaml:"qos"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr             string `yaml:"addr"`               // default: :8080
	RequestTimeoutMS int    `yaml:"request_timeout_ms"` // default: 30000
	MaxImageBytes    int64  `yaml:"max_image_bytes"`    // default: 10485760
}

// #endregion

// #region load

// Default returns the configuration the engine runs with when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when given, otherwise returns the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// #endregion

// #region cloud-key

// ResolveAPIKey returns the cloud API key, consulting the configured
// environment variable when the literal key is empty.
func (c CloudConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// #endregion

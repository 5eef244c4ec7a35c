package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the canonical defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/pose.defaults.json"

// Environment overrides applied by ApplyEnv.
const (
	EnvDBDSN      = "POSE_DB_DSN"
	EnvMQTTBroker = "POSE_MQTT_BROKER"
)

// Defaults used when a field is omitted.
const (
	DefaultSaveInterval      = 3 * time.Second
	DefaultSaveTimeout       = 1 * time.Second
	DefaultGateThreshold     = 0.5
	DefaultRingCapacity      = 100
	DefaultHistoryLimit      = 50
	DefaultJPEGQuality       = 80
	DefaultDBDriver          = "sqlite"
	DefaultDBDSN             = "pose_detection.db"
	DefaultListen            = ":8080"
	DefaultGRPCListen        = ":50051"
	DefaultMQTTTopic         = "pose/events"
	DefaultMQTTClientID      = "posed"
	DefaultDetectorTimeout   = 2 * time.Second
	DefaultCaptureSource     = "0"
	DefaultRetentionInterval = time.Hour
)

// PoseConfig is the service configuration. Every field is optional and
// the Get* methods supply defaults, so partial files are safe.
type PoseConfig struct {
	// Evaluation
	GateThreshold       *float64 `json:"gate_threshold,omitempty" yaml:"gate_threshold,omitempty"`
	VisibilityThreshold *float64 `json:"visibility_threshold,omitempty" yaml:"visibility_threshold,omitempty"`
	RingCapacity        *int     `json:"ring_capacity,omitempty" yaml:"ring_capacity,omitempty"`

	// Persistence
	SaveInterval *string `json:"save_interval,omitempty" yaml:"save_interval,omitempty"` // duration string like "3s"
	SaveTimeout  *string `json:"save_timeout,omitempty" yaml:"save_timeout,omitempty"`
	HistoryLimit *int    `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
	DBDriver     *string `json:"db_driver,omitempty" yaml:"db_driver,omitempty"`
	DBDSN        *string `json:"db_dsn,omitempty" yaml:"db_dsn,omitempty"`

	// RetentionMaxAge drops events older than this; empty keeps everything.
	RetentionMaxAge   *string `json:"retention_max_age,omitempty" yaml:"retention_max_age,omitempty"`
	RetentionInterval *string `json:"retention_interval,omitempty" yaml:"retention_interval,omitempty"`

	// Transport
	Listen      *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	GRPCListen  *string `json:"grpc_listen,omitempty" yaml:"grpc_listen,omitempty"`
	JPEGQuality *int    `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty"`

	// MQTT fan-out, disabled while the broker is empty
	MQTTBroker   *string `json:"mqtt_broker,omitempty" yaml:"mqtt_broker,omitempty"`
	MQTTTopic    *string `json:"mqtt_topic,omitempty" yaml:"mqtt_topic,omitempty"`
	MQTTClientID *string `json:"mqtt_client_id,omitempty" yaml:"mqtt_client_id,omitempty"`

	// Detection and capture
	DetectorCommand *string  `json:"detector_command,omitempty" yaml:"detector_command,omitempty"`
	DetectorArgs    []string `json:"detector_args,omitempty" yaml:"detector_args,omitempty"`
	DetectorTimeout *string  `json:"detector_timeout,omitempty" yaml:"detector_timeout,omitempty"`
	CoarseDetector  *bool    `json:"coarse_detector,omitempty" yaml:"coarse_detector,omitempty"`
	CaptureSource   *string  `json:"capture_source,omitempty" yaml:"capture_source,omitempty"`
}

// LoadPoseConfig reads a .json, .yaml or .yml file and validates it.
func LoadPoseConfig(path string) (*PoseConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PoseConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// tests.
func MustLoadDefaultConfig() *PoseConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPoseConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *PoseConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDBDSN); ok && v != "" {
		c.DBDSN = &v
	}
	if v, ok := lookup(EnvMQTTBroker); ok && v != "" {
		c.MQTTBroker = &v
	}
}

func checkDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, *v)
	}
	return nil
}

func checkUnit(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *PoseConfig) Validate() error {
	for _, d := range []struct {
		name string
		v    *string
	}{
		{"save_interval", c.SaveInterval},
		{"save_timeout", c.SaveTimeout},
		{"detector_timeout", c.DetectorTimeout},
		{"retention_max_age", c.RetentionMaxAge},
		{"retention_interval", c.RetentionInterval},
	} {
		if err := checkDuration(d.name, d.v); err != nil {
			return err
		}
	}
	if err := checkUnit("gate_threshold", c.GateThreshold); err != nil {
		return err
	}
	if err := checkUnit("visibility_threshold", c.VisibilityThreshold); err != nil {
		return err
	}
	if c.RingCapacity != nil && *c.RingCapacity < 1 {
		return fmt.Errorf("ring_capacity must be at least 1, got %d", *c.RingCapacity)
	}
	if c.HistoryLimit != nil && *c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", *c.HistoryLimit)
	}
	if c.JPEGQuality != nil && (*c.JPEGQuality < 1 || *c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", *c.JPEGQuality)
	}
	if c.DBDriver != nil {
		switch strings.ToLower(*c.DBDriver) {
		case "", "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
		default:
			return fmt.Errorf("unsupported db_driver %q", *c.DBDriver)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetSaveInterval returns the minimum time between saved events per stream.
func (c *PoseConfig) GetSaveInterval() time.Duration {
	return durationOr(c.SaveInterval, DefaultSaveInterval)
}

// GetSaveTimeout returns the per-save timeout.
func (c *PoseConfig) GetSaveTimeout() time.Duration {
	return durationOr(c.SaveTimeout, DefaultSaveTimeout)
}

// GetDetectorTimeout returns the per-request detector timeout.
func (c *PoseConfig) GetDetectorTimeout() time.Duration {
	return durationOr(c.DetectorTimeout, DefaultDetectorTimeout)
}

// GetRetentionMaxAge returns the event retention window, zero when
// pruning is disabled.
func (c *PoseConfig) GetRetentionMaxAge() time.Duration {
	return durationOr(c.RetentionMaxAge, 0)
}

// GetRetentionInterval returns how often the pruner runs.
func (c *PoseConfig) GetRetentionInterval() time.Duration {
	return durationOr(c.RetentionInterval, DefaultRetentionInterval)
}

// GetGateThreshold returns the fusion gate confidence threshold.
func (c *PoseConfig) GetGateThreshold() float64 {
	if c.GateThreshold == nil {
		return DefaultGateThreshold
	}
	return *c.GateThreshold
}

// GetVisibilityThreshold returns the visibility every joint a rule reads
// must exceed. 0 (the default) disables the check.
func (c *PoseConfig) GetVisibilityThreshold() float64 {
	if c.VisibilityThreshold == nil {
		return 0
	}
	return *c.VisibilityThreshold
}

// GetRingCapacity returns the accuracy sample buffer size.
func (c *PoseConfig) GetRingCapacity() int {
	if c.RingCapacity == nil {
		return DefaultRingCapacity
	}
	return *c.RingCapacity
}

// GetHistoryLimit returns the default history page size.
func (c *PoseConfig) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.HistoryLimit
}

// GetJPEGQuality returns the annotated frame JPEG quality.
func (c *PoseConfig) GetJPEGQuality() int {
	if c.JPEGQuality == nil {
		return DefaultJPEGQuality
	}
	return *c.JPEGQuality
}

// GetDBDriver returns the database driver name.
func (c *PoseConfig) GetDBDriver() string { return stringOr(c.DBDriver, DefaultDBDriver) }

// GetDBDSN returns the database DSN, a file path for SQLite.
func (c *PoseConfig) GetDBDSN() string { return stringOr(c.DBDSN, DefaultDBDSN) }

// GetListen returns the HTTP listen address.
func (c *PoseConfig) GetListen() string { return stringOr(c.Listen, DefaultListen) }

// GetGRPCListen returns the gRPC listen address.
func (c *PoseConfig) GetGRPCListen() string { return stringOr(c.GRPCListen, DefaultGRPCListen) }

// GetMQTTBroker returns the broker URL, empty when fan-out is disabled.
func (c *PoseConfig) GetMQTTBroker() string { return stringOr(c.MQTTBroker, "") }

// GetMQTTTopic returns the topic prefix for published events.
func (c *PoseConfig) GetMQTTTopic() string { return stringOr(c.MQTTTopic, DefaultMQTTTopic) }

// GetMQTTClientID returns the MQTT client identifier.
func (c *PoseConfig) GetMQTTClientID() string { return stringOr(c.MQTTClientID, DefaultMQTTClientID) }

// GetDetectorCommand returns the detector worker command, empty when none
// is configured.
func (c *PoseConfig) GetDetectorCommand() string { return stringOr(c.DetectorCommand, "") }

// GetCoarseDetector reports whether the worker also serves the fusion gate.
func (c *PoseConfig) GetCoarseDetector() bool {
	if c.CoarseDetector == nil {
		return false
	}
	return *c.CoarseDetector
}

// GetCaptureSource returns the camera index or video path to open.
func (c *PoseConfig) GetCaptureSource() string {
	return stringOr(c.CaptureSource, DefaultCaptureSource)
}

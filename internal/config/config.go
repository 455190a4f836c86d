package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port               int
	Password           string
	ModelPath          string
	ConfigPath         string
	DetectionThreshold float64
	ImageDirectory     string
	LogDirectory       string
	DatabasePath       string
	TimeSeriesDir      string

	MQTTBroker    string // empty disables the broker transport
	MQTTClientID  string
	CommandTopic  string
	SensorTopic   string
	SnapshotTopic string // sensor topic that triggers a still capture

	Policy Policy

	TelemetryQueueSize    int
	SnapshotBufferLimit   int
	SnapshotFlushInterval time.Duration
}

// Policy holds the decision loop tunables. It can be loaded from a YAML
// file named by POLICY_FILE; environment variables still take precedence.
type Policy struct {
	MinInferenceInterval time.Duration `yaml:"min_inference_interval"`
	MinPublishDelay      time.Duration `yaml:"min_publish_delay"`
	VehicleLabels        []string      `yaml:"vehicle_labels"`
	ZoneCount            int           `yaml:"zone_count"`
}

// DefaultPolicy returns the decision tunables used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MinInferenceInterval: time.Second,
		MinPublishDelay:      5 * time.Second,
		VehicleLabels:        []string{"car", "truck", "bus", "motorbike"},
		ZoneCount:            3,
	}
}

// Load reads an optional .env file, an optional policy file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	policy := DefaultPolicy()
	if path := getEnv("POLICY_FILE", ""); path != "" {
		if err := loadPolicyFile(path, &policy); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8000),
		Password:           getEnv("PASSWORD", "traffic"),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:         getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		ImageDirectory:     getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:       getEnv("DB_PATH", filepath.Join(".", "data", "telemetry.db")),
		TimeSeriesDir:      getEnv("TIMESERIES_DIR", filepath.Join(".", "data", "timeseries")),

		MQTTBroker:    getEnv("MQTT_BROKER", ""),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "traffic-server"),
		CommandTopic:  getEnv("COMMAND_TOPIC", "iot/backend/traffic"),
		SensorTopic:   getEnv("SENSOR_TOPIC", "iot/sensor/#"),
		SnapshotTopic: getEnv("SNAPSHOT_TOPIC", "iot/sensor/sound"),

		Policy: Policy{
			MinInferenceInterval: getEnvAsDuration("MIN_INFERENCE_INTERVAL", policy.MinInferenceInterval),
			MinPublishDelay:      getEnvAsDuration("MIN_PUBLISH_DELAY", policy.MinPublishDelay),
			VehicleLabels:        getEnvAsList("VEHICLE_LABELS", policy.VehicleLabels),
			ZoneCount:            getEnvAsInt("ZONE_COUNT", policy.ZoneCount),
		},

		TelemetryQueueSize:    getEnvAsInt("TELEMETRY_QUEUE", 64),
		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 5),
		SnapshotFlushInterval: getEnvAsDuration("SNAPSHOT_FLUSH_INTERVAL", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that would make the decision loop misbehave.
func (c *Config) Validate() error {
	if c.Policy.ZoneCount < 1 {
		return fmt.Errorf("zone count must be at least 1, got %d", c.Policy.ZoneCount)
	}
	if c.Policy.MinInferenceInterval < 0 {
		return fmt.Errorf("min inference interval must not be negative")
	}
	if c.Policy.MinPublishDelay < 0 {
		return fmt.Errorf("min publish delay must not be negative")
	}
	if len(c.Policy.VehicleLabels) == 0 {
		return fmt.Errorf("vehicle label set must not be empty")
	}
	if c.TelemetryQueueSize < 1 {
		return fmt.Errorf("telemetry queue size must be at least 1")
	}
	if c.SnapshotFlushInterval <= 0 {
		return fmt.Errorf("snapshot flush interval must be positive")
	}
	return nil
}

// loadPolicyFile overlays the YAML file at path onto policy.
// Fields missing from the file keep their current value.
func loadPolicyFile(path string, policy *Policy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1.5s", "500ms") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

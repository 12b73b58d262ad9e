// Package config loads the mudra server configuration from YAML, .env and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/apperr"
	"github.com/ayusman/mudra/internal/logging"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Models   ModelsConfig   `yaml:"models"`
	Detector DetectorConfig `yaml:"detector"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	Log      logging.Config `yaml:"log"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	WSPath         string        `yaml:"ws_path"`
	StaticDir      string        `yaml:"static_dir"`
	AllowedOrigins []string      `yaml:"allowed_origins"` // "*" allows every origin
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// ModelsConfig points at the classifier artifacts produced by training.
type ModelsConfig struct {
	ModelPath  string `yaml:"model_path"`
	ConfigPath string `yaml:"config_path"` // optional, e.g. a .pbtxt for TensorFlow graphs
	LabelsPath string `yaml:"labels_path"`
}

// DetectorConfig configures the MediaPipe hand landmark service.
type DetectorConfig struct {
	Python                string        `yaml:"python"`
	Script                string        `yaml:"script"`
	MaxHands              int           `yaml:"max_hands"`
	MinConfidence         float64       `yaml:"min_confidence"`
	MinTrackingConfidence float64       `yaml:"min_tracking_confidence"`
	IdleTimeout           time.Duration `yaml:"idle_timeout"`
	StartTimeout          time.Duration `yaml:"start_timeout"`
	ResponseTimeout       time.Duration `yaml:"response_timeout"`
}

// PipelineConfig bounds the per-session work.
type PipelineConfig struct {
	MaxPayloadBytes  int           `yaml:"max_payload_bytes"`
	MaxPixels        int           `yaml:"max_pixels"`
	SmoothingWindow  int           `yaml:"smoothing_window"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
}

// StoreConfig configures the session summary database.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables the store
}

// Default returns a Config with every value populated.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":5000",
			WSPath:         "/ws",
			AllowedOrigins: []string{"*"},
			WriteTimeout:   5 * time.Second,
			MaxMessageSize: 8 << 20,
		},
		Models: ModelsConfig{
			ModelPath:  "models/signvision.onnx",
			LabelsPath: "models/labels.yaml",
		},
		Detector: DetectorConfig{
			Python:                "python3",
			Script:                "scripts/mediapipe_service.py",
			MaxHands:              2,
			MinConfidence:         0.7,
			MinTrackingConfidence: 0.5,
			IdleTimeout:           30 * time.Second,
			StartTimeout:          60 * time.Second,
			ResponseTimeout:       5 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxPayloadBytes:  4 << 20,
			MaxPixels:        1920 * 1080,
			SmoothingWindow:  5,
			InferenceTimeout: 2 * time.Second,
		},
		Store: StoreConfig{
			Path: "mudra.db",
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env (if present), the YAML file at path (if non-empty) and
// environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, "config.Load", "read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, "config.Load", "parse config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("MUDRA_ADDR", c.Server.Addr)
	c.Server.StaticDir = getEnv("MUDRA_STATIC_DIR", c.Server.StaticDir)
	if origins := os.Getenv("MUDRA_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Models.ModelPath = getEnv("MUDRA_MODEL_PATH", c.Models.ModelPath)
	c.Models.ConfigPath = getEnv("MUDRA_MODEL_CONFIG_PATH", c.Models.ConfigPath)
	c.Models.LabelsPath = getEnv("MUDRA_LABELS_PATH", c.Models.LabelsPath)
	c.Detector.Python = getEnv("MUDRA_PYTHON", c.Detector.Python)
	c.Detector.Script = getEnv("MUDRA_DETECTOR_SCRIPT", c.Detector.Script)
	c.Detector.MaxHands = getEnvAsInt("MUDRA_MAX_HANDS", c.Detector.MaxHands)
	c.Pipeline.MaxPayloadBytes = getEnvAsInt("MUDRA_MAX_PAYLOAD_BYTES", c.Pipeline.MaxPayloadBytes)
	c.Pipeline.InferenceTimeout = getEnvAsDuration("MUDRA_INFERENCE_TIMEOUT", c.Pipeline.InferenceTimeout)
	c.Store.Path = getEnv("MUDRA_STORE_PATH", c.Store.Path)
	c.Log.Level = getEnv("MUDRA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("MUDRA_LOG_FORMAT", c.Log.Format)
}

// Validate checks the values that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		errs = append(errs, fmt.Errorf("server.ws_path must start with '/', got %q", c.Server.WSPath))
	}
	if c.Models.ModelPath == "" {
		errs = append(errs, errors.New("models.model_path is required"))
	}
	if c.Models.LabelsPath == "" {
		errs = append(errs, errors.New("models.labels_path is required"))
	}
	if c.Detector.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector.max_hands must be >= 1, got %d", c.Detector.MaxHands))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector.min_confidence must be in [0,1], got %g", c.Detector.MinConfidence))
	}
	if c.Pipeline.MaxPayloadBytes <= 0 {
		errs = append(errs, errors.New("pipeline.max_payload_bytes must be positive"))
	}
	if c.Pipeline.MaxPixels <= 0 {
		errs = append(errs, errors.New("pipeline.max_pixels must be positive"))
	}
	if c.Pipeline.SmoothingWindow < 1 {
		errs = append(errs, errors.New("pipeline.smoothing_window must be >= 1"))
	}
	if c.Pipeline.InferenceTimeout < 0 {
		errs = append(errs, errors.New("pipeline.inference_timeout must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return apperr.Wrap(apperr.KindConfig, "config.Validate", "invalid configuration", errors.Join(errs...))
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

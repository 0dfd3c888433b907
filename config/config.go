// Package config - layered configuration for the detect tooling: defaults,
// an optional YAML file, then GODETECT_* environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces the environment overrides, e.g.
// GODETECT_MODEL_CANVAS_SIZE=608.
const EnvPrefix = "GODETECT"

// Config is the full tool configuration.
type Config struct {
	Model  ModelConfig  `mapstructure:"model"`
	Render RenderConfig `mapstructure:"render"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    LogConfig    `mapstructure:"log"`
}

// ModelConfig locates the model artifacts and names its runtime knobs.
type ModelConfig struct {
	// URL is the model artifact location: a local path, http(s) or s3.
	URL string `mapstructure:"url"`
	// LabelsURL is the class table location. Empty selects the built-in
	// COCO table.
	LabelsURL string `mapstructure:"labels_url"`
	// LibraryPath points at the onnxruntime shared library.
	LibraryPath string `mapstructure:"library_path"`
	// CanvasSize is the square letterbox edge fed to the model.
	CanvasSize int `mapstructure:"canvas_size"`
	// Runtime thread pools; zero keeps the runtime defaults.
	IntraOpThreads int `mapstructure:"intra_op_threads"`
	InterOpThreads int `mapstructure:"inter_op_threads"`
	// Provider names the execution provider: cpu, cuda, coreml or
	// openvino.
	Provider string `mapstructure:"provider"`
	// DeviceID picks the accelerator device for multi-device providers.
	DeviceID int `mapstructure:"device_id"`
}

// RenderConfig tunes the annotator.
type RenderConfig struct {
	// StrokeWidth is the box outline thickness in pixels.
	StrokeWidth int `mapstructure:"stroke_width"`
}

// CacheConfig locates the artifact cache and its S3 access.
type CacheConfig struct {
	Dir      string `mapstructure:"dir"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig tunes CLI logging.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// Load builds the configuration. path may be empty to run on defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Every key needs a registered default so environment overrides reach
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model.url", "")
	v.SetDefault("model.labels_url", "")
	v.SetDefault("model.library_path", "")
	v.SetDefault("model.canvas_size", 416)
	v.SetDefault("model.intra_op_threads", 0)
	v.SetDefault("model.inter_op_threads", 0)
	v.SetDefault("model.provider", "cpu")
	v.SetDefault("model.device_id", 0)
	v.SetDefault("render.stroke_width", 4)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.region", "")
	v.SetDefault("cache.endpoint", "")
	v.SetDefault("log.level", "info")
}

func defaultCacheDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "godetect")
	}
	return ".godetect-cache"
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Model.CanvasSize <= 0 {
		return errors.Errorf("model.canvas_size must be positive, got %d", c.Model.CanvasSize)
	}
	if c.Model.IntraOpThreads < 0 || c.Model.InterOpThreads < 0 {
		return errors.New("model thread counts cannot be negative")
	}
	if c.Model.DeviceID < 0 {
		return errors.Errorf("model.device_id cannot be negative, got %d", c.Model.DeviceID)
	}
	if c.Render.StrokeWidth <= 0 {
		return errors.Errorf("render.stroke_width must be positive, got %d", c.Render.StrokeWidth)
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir required")
	}
	return nil
}

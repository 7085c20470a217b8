package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all node pack settings: gateway credentials, output
// locations for downloaded media, retry defaults applied to every
// submit node, and the job store cleanup policy.
type Config struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	GatewayURL string `mapstructure:"gateway_url" yaml:"gateway_url"`

	// ServerAPIKey, when set, protects the HTTP job server; clients
	// must present it as a bearer token.
	ServerAPIKey string `mapstructure:"server_api_key" yaml:"server_api_key"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`

	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Cleanup CleanupConfig `mapstructure:"cleanup" yaml:"cleanup"`

	// DefaultTimeout bounds a single synchronous attempt.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`

	// DefaultModels maps a job type (t2i, i2v, ...) to the model id
	// used when a node leaves model_id blank.
	DefaultModels map[string]string `mapstructure:"default_models" yaml:"default_models"`
}

// OutputConfig holds per-media-type download directories
type OutputConfig struct {
	Images string `mapstructure:"images" yaml:"images"`
	Videos string `mapstructure:"videos" yaml:"videos"`
	Audio  string `mapstructure:"audio" yaml:"audio"`
}

// RetryConfig holds default retry settings for submit nodes
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// CleanupConfig controls the job store sweeper
type CleanupConfig struct {
	JobTTL        time.Duration `mapstructure:"job_ttl" yaml:"job_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		APIKey:     "",
		GatewayURL: "https://dream-gateway.livepeer.cloud",
		LogLevel:   "INFO",
		LogJSON:    false,
		LogDir:     "logs",
		Output: OutputConfig{
			Images: "output/livepeer/images",
			Videos: "output/livepeer/videos",
			Audio:  "output/livepeer/audio",
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		Cleanup: CleanupConfig{
			JobTTL:        time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		DefaultTimeout: 120 * time.Second,
		DefaultModels: map[string]string{
			"t2i":     "SG161222/RealVisXL_V4.0_Lightning",
			"i2i":     "timbrooks/instruct-pix2pix",
			"i2v":     "stabilityai/stable-video-diffusion-img2vid-xt-1-1",
			"i2t":     "Salesforce/blip-image-captioning-large",
			"upscale": "stabilityai/stable-diffusion-x4-upscaler",
			"segment": "facebook/sam2-hiera-large",
			"a2t":     "openai/whisper-large-v3",
			"t2s":     "parler-tts/parler-tts-large-v1",
		},
	}
}

// Load reads configuration from the given file (or the default search
// path when path is empty) with LIVEGEN_* environment overrides.
// A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	cfg := Default()
	v.SetDefault("api_key", cfg.APIKey)
	v.SetDefault("gateway_url", cfg.GatewayURL)
	v.SetDefault("server_api_key", cfg.ServerAPIKey)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_json", cfg.LogJSON)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("output.images", cfg.Output.Images)
	v.SetDefault("output.videos", cfg.Output.Videos)
	v.SetDefault("output.audio", cfg.Output.Audio)
	v.SetDefault("retry.max_retries", cfg.Retry.MaxRetries)
	v.SetDefault("retry.retry_delay", cfg.Retry.RetryDelay)
	v.SetDefault("cleanup.job_ttl", cfg.Cleanup.JobTTL)
	v.SetDefault("cleanup.sweep_interval", cfg.Cleanup.SweepInterval)
	v.SetDefault("default_timeout", cfg.DefaultTimeout)
	v.SetDefault("default_models", cfg.DefaultModels)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".livegen"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LIVEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("api_key", "LIVEPEER_API_KEY", "LIVEGEN_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing file falls back to defaults; a parse failure is fatal
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	out := &Config{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return out, nil
}

// OutputPath returns the absolute directory for a media kind
// (images, videos, audio), creating it if needed.
func (c *Config) OutputPath(kind string) (string, error) {
	var dir string
	switch kind {
	case "images":
		dir = c.Output.Images
	case "videos":
		dir = c.Output.Videos
	case "audio":
		dir = c.Output.Audio
	default:
		dir = filepath.Join("output", "livepeer", kind)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", abs, err)
	}
	return abs, nil
}

// DefaultModel returns the configured default model for a job type,
// or "" when none is set.
func (c *Config) DefaultModel(jobType string) string {
	return c.DefaultModels[jobType]
}

// Save writes the configuration as YAML to the given path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Render returns the configuration as a YAML document
func (c *Config) Render() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

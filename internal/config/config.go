package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Generation GenerationConfig `mapstructure:"generation"`
	Models     ModelsConfig     `mapstructure:"models"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// BackendConfig holds model backend settings.
type BackendConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConnections int           `mapstructure:"max_connections"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LimitsConfig holds request limit settings.
type LimitsConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	MaxPasses      int   `mapstructure:"max_passes"`

	// MaxPreviewCells caps n_codebooks*steps of a mask preview.
	MaxPreviewCells int `mapstructure:"max_preview_cells"`
}

// GenerationConfig holds generation queue and orchestration settings.
type GenerationConfig struct {
	Workers         int           `mapstructure:"workers"`
	MaxQueue        int           `mapstructure:"max_queue"`
	CoarseCodebooks int           `mapstructure:"coarse_codebooks"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// ModelsConfig locates the model registry.
type ModelsConfig struct {
	ConfDir string `mapstructure:"conf_dir"`
	Default string `mapstructure:"default"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig selects the OpenTelemetry span exporter.
type TracingConfig struct {
	// Exporter is one of none, stdout, otlp.
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       "0.0.0.0:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Backend: BackendConfig{
			URL:            "http://127.0.0.1:8081",
			Timeout:        120 * time.Second,
			MaxConnections: 100,
		},
		Auth: AuthConfig{
			APIKey: "",
		},
		Limits: LimitsConfig{
			MaxUploadBytes:  64 << 20,
			MaxPasses:       16,
			MaxPreviewCells: 1 << 20,
		},
		Generation: GenerationConfig{
			Workers:         1,
			MaxQueue:        8,
			CoarseCodebooks: 4,
			RequestTimeout:  5 * time.Minute,
		},
		Models: ModelsConfig{
			ConfDir: "conf/generated",
			Default: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

// Load returns a Config populated with defaults and environment overrides.
func Load() (*Config, error) {
	return LoadWithDefaults(nil)
}

// LoadWithDefaults loads configuration using defaults and optional overrides map (for tests).
func LoadWithDefaults(overrides map[string]interface{}) (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)

	if overrides != nil {
		raw, err := json.Marshal(overrides)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("VAMP_LISTEN", &cfg.Server.Listen)
	envDuration("VAMP_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("VAMP_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	envString("VAMP_BACKEND", &cfg.Backend.URL)
	envDuration("VAMP_BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	envInt("VAMP_BACKEND_MAX_CONNECTIONS", &cfg.Backend.MaxConnections)

	envString("VAMP_API_KEY", &cfg.Auth.APIKey)

	if v := os.Getenv("VAMP_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.MaxUploadBytes = n
		}
	}
	envInt("VAMP_MAX_PASSES", &cfg.Limits.MaxPasses)
	envInt("VAMP_MAX_PREVIEW_CELLS", &cfg.Limits.MaxPreviewCells)

	envInt("VAMP_WORKERS", &cfg.Generation.Workers)
	envInt("VAMP_MAX_QUEUE", &cfg.Generation.MaxQueue)
	envInt("VAMP_COARSE_CODEBOOKS", &cfg.Generation.CoarseCodebooks)
	envDuration("VAMP_REQUEST_TIMEOUT", &cfg.Generation.RequestTimeout)

	envString("VAMP_MODELS_DIR", &cfg.Models.ConfDir)
	envString("VAMP_DEFAULT_MODEL", &cfg.Models.Default)

	envString("VAMP_LOG_LEVEL", &cfg.Logging.Level)
	envString("VAMP_LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("VAMP_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	envString("VAMP_METRICS_PATH", &cfg.Metrics.Path)

	envString("VAMP_TRACE_EXPORTER", &cfg.Tracing.Exporter)
	envString("VAMP_TRACE_ENDPOINT", &cfg.Tracing.Endpoint)
	if v := os.Getenv("VAMP_TRACE_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

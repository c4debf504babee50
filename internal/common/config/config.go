// internal/common/config/config.go
package config

import (
	"time"

	"challenge-verifier/internal/imaging"
	"challenge-verifier/internal/verification/verify"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	Oracle        OracleConfig        `mapstructure:"oracle"`
	Rules         RulesConfig         `mapstructure:"rules"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	MaxImageSide    int           `mapstructure:"max_image_side"`
	MaxImagePixels  int64         `mapstructure:"max_image_pixels"`
}

// ImageLimits bounds the decoded size of an upload.
func (s ServerConfig) ImageLimits() imaging.Limits {
	return imaging.Limits{MaxSide: s.MaxImageSide, MaxPixels: s.MaxImagePixels}
}

// PolicyConfig holds the verdict thresholds.
type PolicyConfig struct {
	PassThreshold   float64 `mapstructure:"pass_threshold"`
	ReviewThreshold float64 `mapstructure:"review_threshold"`
	Margin          float64 `mapstructure:"margin"`
}

func (p PolicyConfig) Policy() verify.Policy {
	return verify.Policy{
		PassThreshold:   p.PassThreshold,
		ReviewThreshold: p.ReviewThreshold,
		Margin:          p.Margin,
	}
}

type OracleConfig struct {
	Backend   string        `mapstructure:"backend"` // clip | remote
	Device    string        `mapstructure:"device"`  // cpu | cuda
	ModelName string        `mapstructure:"model_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Clip      ClipConfig    `mapstructure:"clip"`
	Remote    RemoteConfig  `mapstructure:"remote"`
	Cache     CacheConfig   `mapstructure:"cache"`
}

// ClipConfig points at the exported CLIP graphs and the ONNX Runtime library.
type ClipConfig struct {
	SharedLibraryPath string `mapstructure:"shared_library_path"`
	ImageModelPath    string `mapstructure:"image_model_path"`
	TextModelPath     string `mapstructure:"text_model_path"`
	TokenizerPath     string `mapstructure:"tokenizer_path"`
	ImageSize         int    `mapstructure:"image_size"`
	ContextLength     int    `mapstructure:"context_length"`
	EmbeddingDim      int    `mapstructure:"embedding_dim"`
}

type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

// RulesConfig selects the keyword rule set. An empty path uses the built-in rules.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

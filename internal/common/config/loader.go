// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "challenge-verifier/internal/common/errors"
	"challenge-verifier/internal/imaging"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendClip   = "clip"
	BackendRemote = "remote"
)

// envAliases are the short variable names operators already use for the
// verifier, bound next to the dotted keys (POLICY_MARGIN etc.).
var envAliases = map[string]string{
	"policy.pass_threshold":   "PASS_THRESHOLD",
	"policy.review_threshold": "REVIEW_THRESHOLD",
	"policy.margin":           "MARGIN",
	"oracle.device":           "CLIP_DEVICE",
	"oracle.model_name":       "CLIP_MODEL",
}

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.NewConfigurationError("error reading base config", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	applyDefaults(v)
	for key, env := range envAliases {
		_ = v.BindEnv(key, strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env)
	}
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigurationError("failed to unmarshal config", err)
	}

	cfg.Oracle.Backend = strings.ToLower(strings.TrimSpace(cfg.Oracle.Backend))
	cfg.Oracle.Device = strings.ToLower(strings.TrimSpace(cfg.Oracle.Device))

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or any parent up to the
// module root, so tests under test/e2e pick it up too.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values. An unset
// variable expands to the empty string.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults registers defaults with viper so an explicit zero in a file or
// the environment still wins.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "challenge-verifier")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	limits := imaging.DefaultLimits()
	v.SetDefault("server.max_image_side", limits.MaxSide)
	v.SetDefault("server.max_image_pixels", limits.MaxPixels)

	v.SetDefault("policy.pass_threshold", 0.20)
	v.SetDefault("policy.review_threshold", 0.18)
	v.SetDefault("policy.margin", 0.04)

	v.SetDefault("oracle.backend", BackendClip)
	v.SetDefault("oracle.device", "cpu")
	v.SetDefault("oracle.model_name", "openai/clip-vit-base-patch32")
	v.SetDefault("oracle.timeout", "20s")
	v.SetDefault("oracle.clip.shared_library_path", "")
	v.SetDefault("oracle.clip.image_model_path", "models/clip-vit-base-patch32/vision_model.onnx")
	v.SetDefault("oracle.clip.text_model_path", "models/clip-vit-base-patch32/text_model.onnx")
	v.SetDefault("oracle.clip.tokenizer_path", "models/clip-vit-base-patch32/tokenizer.json")
	v.SetDefault("oracle.clip.image_size", 224)
	v.SetDefault("oracle.clip.context_length", 77)
	v.SetDefault("oracle.clip.embedding_dim", 512)
	v.SetDefault("oracle.remote.base_url", "")
	v.SetDefault("oracle.cache.enabled", false)
	v.SetDefault("oracle.cache.ttl", "24h")
	v.SetDefault("oracle.cache.prefix", "verifier:textemb:")

	v.SetDefault("rules.path", "")

	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("observability.service_name", "challenge-verifier")
	v.SetDefault("observability.jaeger_endpoint", "")
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if err := cfg.Policy.Policy().Validate(); err != nil {
		return err
	}

	switch cfg.Oracle.Backend {
	case BackendClip:
		c := cfg.Oracle.Clip
		if c.ImageModelPath == "" || c.TextModelPath == "" || c.TokenizerPath == "" {
			return apperrors.NewConfigurationError("oracle.clip",
				fmt.Errorf("image_model_path, text_model_path and tokenizer_path are required"))
		}
		if c.ImageSize <= 0 || c.ContextLength <= 0 || c.EmbeddingDim <= 0 {
			return apperrors.NewConfigurationError("oracle.clip",
				fmt.Errorf("image_size, context_length and embedding_dim must be positive"))
		}
		if cfg.Oracle.Device != "cpu" && cfg.Oracle.Device != "cuda" {
			return apperrors.NewConfigurationError("oracle.device",
				fmt.Errorf("unsupported device %q", cfg.Oracle.Device))
		}
	case BackendRemote:
		if cfg.Oracle.Remote.BaseURL == "" {
			return apperrors.NewConfigurationError("oracle.remote", fmt.Errorf("base_url is required"))
		}
	default:
		return apperrors.NewConfigurationError("oracle.backend",
			fmt.Errorf("unknown backend %q", cfg.Oracle.Backend))
	}

	if cfg.Oracle.Timeout <= 0 {
		return apperrors.NewConfigurationError("oracle.timeout", fmt.Errorf("must be positive"))
	}
	if cfg.Oracle.Cache.Enabled && cfg.Database.Redis.Address == "" {
		return apperrors.NewConfigurationError("database.redis", fmt.Errorf("address is required when oracle.cache is enabled"))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return apperrors.NewConfigurationError("server.max_upload_bytes", fmt.Errorf("must be positive"))
	}
	if cfg.Server.MaxImageSide <= 0 || cfg.Server.MaxImagePixels <= 0 {
		return apperrors.NewConfigurationError("server",
			fmt.Errorf("max_image_side and max_image_pixels must be positive"))
	}

	return nil
}

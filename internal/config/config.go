// Package config loads server configuration from defaults, an optional yaml file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and limiter drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverRedis    = "redis"
)

// Config holds all server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	S3      S3Config      `mapstructure:"s3"`
	AI      AIConfig      `mapstructure:"ai"`
	Limiter LimiterConfig `mapstructure:"limiter"`

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Dev             bool          `mapstructure:"dev"`
	FrontendURL     string        `mapstructure:"frontend_url"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf(":%d", s.Port) }

type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	DatabaseURL   string `mapstructure:"database_url"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	AutoMigrate   bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
}

type S3Config struct {
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Endpoint        string        `mapstructure:"endpoint"`
	UsePathStyle    bool          `mapstructure:"use_path_style"`
	UploadTTL       time.Duration `mapstructure:"upload_ttl"`
	DownloadTTL     time.Duration `mapstructure:"download_ttl"`
}

type AIConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	Model        string `mapstructure:"model"`
}

type LimiterConfig struct {
	Driver        string        `mapstructure:"driver"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Window        time.Duration `mapstructure:"window"`
	MaxFails      int           `mapstructure:"max_fails"`
	BlockFor      time.Duration `mapstructure:"block_for"`
}

// envMappings binds config keys to the environment variables deployments already use.
// Later names are fallbacks.
var envMappings = map[string][]string{
	"server.port":            {"PORT"},
	"server.dev":             {"DEV"},
	"server.frontend_url":    {"FRONTEND_URL"},
	"server.allowed_origins": {"CORS_ORIGINS"},
	"storage.driver":         {"STORAGE_DRIVER"},
	"storage.database_url":   {"DATABASE_URL"},
	"storage.mongo_uri":      {"MONGO_URI"},
	"storage.mongo_database": {"MONGO_DATABASE"},
	"storage.auto_migrate":   {"AUTO_MIGRATE"},
	"auth.jwt_secret":        {"JWT_SECRET"},
	"auth.access_ttl":        {"ACCESS_TTL"},
	"s3.region":              {"AWS_REGION"},
	"s3.bucket":              {"S3_BUCKET_NAME"},
	"s3.access_key_id":       {"AWS_ACCESS_KEY_ID"},
	"s3.secret_access_key":   {"AWS_SECRET_ACCESS_KEY"},
	"s3.endpoint":            {"S3_ENDPOINT"},
	"s3.use_path_style":      {"S3_USE_PATH_STYLE"},
	"ai.gemini_api_key":      {"GEMINI_API_KEY", "GENAI_API_KEY", "API_KEY"},
	"ai.model":               {"GEMINI_MODEL"},
	"limiter.driver":         {"LIMITER_DRIVER"},
	"limiter.redis_addr":     {"REDIS_ADDR"},
	"limiter.redis_password": {"REDIS_PASSWORD"},
	"limiter.redis_db":       {"REDIS_DB"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.dev", false)
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("storage.mongo_database", "nanocloud")
	v.SetDefault("storage.auto_migrate", true)

	v.SetDefault("auth.access_ttl", 3*time.Hour)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.upload_ttl", time.Hour)
	v.SetDefault("s3.download_ttl", 15*time.Minute)

	v.SetDefault("ai.model", "gemini-2.5-flash")

	v.SetDefault("limiter.driver", DriverPostgres)
	v.SetDefault("limiter.window", 15*time.Minute)
	v.SetDefault("limiter.max_fails", 5)
	v.SetDefault("limiter.block_for", 15*time.Minute)
}

// Load reads configuration. When path is empty nanocloud.yaml is searched in the
// working directory, ./config and $HOME/.nanocloud; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NANOCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envMappings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nanocloud")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.nanocloud")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Limiter.Driver = strings.ToLower(strings.TrimSpace(cfg.Limiter.Driver))
	cfg.Server.FrontendURL = strings.TrimRight(cfg.Server.FrontendURL, "/")

	return &cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string

	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.S3.Bucket == "" {
		missing = append(missing, "S3_BUCKET_NAME")
	}
	if c.S3.Region == "" {
		missing = append(missing, "AWS_REGION")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want %s or %s)", c.Storage.Driver, DriverPostgres, DriverMongo)
	}

	switch c.Limiter.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" && c.Storage.Driver != DriverPostgres {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverRedis:
		if c.Limiter.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown limiter driver %q (want %s or %s)", c.Limiter.Driver, DriverPostgres, DriverRedis)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

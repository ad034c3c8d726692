package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves into an empty directory so no stray nanocloud.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Server.Addr())
	assert.Equal(t, "http://localhost:5173", cfg.Server.FrontendURL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 3*time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, time.Hour, cfg.S3.UploadTTL)
	assert.Equal(t, 15*time.Minute, cfg.S3.DownloadTTL)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, 5, cfg.Limiter.MaxFails)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_EnvMappings(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/nc")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AWS_REGION", "eu-central-1")
	t.Setenv("S3_BUCKET_NAME", "files")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("GENAI_API_KEY", "fallback-key")
	t.Setenv("LIMITER_DRIVER", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db:5432/nc", cfg.Storage.DatabaseURL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "eu-central-1", cfg.S3.Region)
	assert.Equal(t, "files", cfg.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, "https://app.example.com", cfg.Server.FrontendURL)
	assert.Equal(t, "fallback-key", cfg.AI.GeminiAPIKey)
	assert.Equal(t, DriverRedis, cfg.Limiter.Driver)
	assert.Equal(t, "redis:6379", cfg.Limiter.RedisAddr)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	yaml := `
server:
  port: 9000
storage:
  driver: mongo
  mongo_uri: mongodb://mongo:27017
auth:
  jwt_secret: from-file
  access_ttl: 1h
s3:
  bucket: b
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nanocloud.yaml"), []byte(yaml), 0o600))
	t.Setenv("PORT", "9100")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.ConfigFile)
	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://mongo:27017", cfg.Storage.MongoURI)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		Server:  ServerConfig{Port: 5000},
		Storage: StorageConfig{Driver: DriverPostgres, DatabaseURL: "postgres://x"},
		Auth:    AuthConfig{JWTSecret: "k"},
		S3:      S3Config{Region: "us-east-1", Bucket: "b"},
		Limiter: LimiterConfig{Driver: DriverPostgres},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "no bucket", mutate: func(c *Config) { c.S3.Bucket = "" }, wantErr: "S3_BUCKET_NAME"},
		{name: "no dsn", mutate: func(c *Config) { c.Storage.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "mongo without uri", mutate: func(c *Config) {
			c.Storage.Driver = DriverMongo
			c.Limiter.Driver = DriverRedis
			c.Limiter.RedisAddr = "r:6379"
		}, wantErr: "MONGO_URI"},
		{name: "mongo with pg limiter needs dsn", mutate: func(c *Config) {
			c.Storage = StorageConfig{Driver: DriverMongo, MongoURI: "mongodb://m"}
		}, wantErr: "DATABASE_URL"},
		{name: "redis without addr", mutate: func(c *Config) { c.Limiter.Driver = DriverRedis }, wantErr: "REDIS_ADDR"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "unknown storage driver"},
		{name: "unknown limiter", mutate: func(c *Config) { c.Limiter.Driver = "memcached" }, wantErr: "unknown limiter driver"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "invalid port"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// Package app builds the server from configuration and runs it until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/nanocloud/internal/config"
	"github.com/and161185/nanocloud/internal/limiter"
	"github.com/and161185/nanocloud/internal/migrate"
	"github.com/and161185/nanocloud/internal/objstore"
	"github.com/and161185/nanocloud/internal/repository"
	mongorepo "github.com/and161185/nanocloud/internal/repository/mongo"
	"github.com/and161185/nanocloud/internal/repository/postgres"
	"github.com/and161185/nanocloud/internal/server/httpserver"
	"github.com/and161185/nanocloud/internal/service"
	"github.com/and161185/nanocloud/internal/summarize"
)

// App is a fully wired server.
type App struct {
	log             *zap.Logger
	http            *http.Server
	shutdownTimeout time.Duration
	closers         []func(context.Context) error
}

// NewLogger returns a development logger when dev is set, a production one otherwise.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// New connects to every backing service and builds the HTTP handler.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a = &App{log: log, shutdownTimeout: cfg.Server.ShutdownTimeout}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	users, files, pool, err := a.openRegistry(ctx, cfg)
	if err != nil {
		return a, err
	}
	lim, err := a.openLimiter(ctx, cfg, pool)
	if err != nil {
		return a, err
	}

	store, err := objstore.NewS3(ctx, objstore.Config{
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
		UsePathStyle:    cfg.S3.UsePathStyle,
	})
	if err != nil {
		return a, err
	}

	sum, err := newSummarizer(ctx, cfg.AI, log)
	if err != nil {
		return a, err
	}

	authSvc := service.NewAuthService(users, []byte(cfg.Auth.JWTSecret), cfg.Auth.AccessTTL, lim)
	fileSvc := service.NewFileService(files, store, cfg.S3.UploadTTL, cfg.S3.DownloadTTL)
	shareSvc := service.NewSharingService(files, authSvc, store, cfg.Server.FrontendURL, cfg.S3.DownloadTTL)
	sumSvc := service.NewSummaryService(sum)

	if !cfg.Server.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	api := httpserver.New(authSvc, fileSvc, shareSvc, sumSvc, log)

	a.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.Handler(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// openRegistry connects the configured registry. The returned pool is non-nil for postgres.
func (a *App) openRegistry(ctx context.Context, cfg *config.Config) (repository.UserRepository, repository.FileRepository, *pgxpool.Pool, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		client, err := mongorepo.Connect(ctx, cfg.Storage.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		a.closers = append(a.closers, client.Disconnect)

		db := client.Database(cfg.Storage.MongoDatabase)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			return nil, nil, nil, err
		}
		a.log.Info("registry connected", zap.String("driver", config.DriverMongo), zap.String("db", cfg.Storage.MongoDatabase))
		return mongorepo.NewUserRepo(db), mongorepo.NewFileRepo(db), nil, nil
	default:
		pool, err := a.openPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		db := &postgres.DB{Pool: pool}
		a.log.Info("registry connected", zap.String("driver", config.DriverPostgres))
		return postgres.NewUserRepo(db), postgres.NewFileRepo(db), pool, nil
	}
}

func (a *App) openPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Storage.AutoMigrate {
		if err := migrate.Up(ctx, cfg.Storage.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
	}
	pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// openLimiter builds the login limiter, reusing pool when the registry is postgres.
func (a *App) openLimiter(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (limiter.Limiter, error) {
	lc := cfg.Limiter
	switch lc.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     lc.RedisAddr,
			Password: lc.RedisPassword,
			DB:       lc.RedisDB,
		})
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return limiter.NewRedis(rdb, "", lc.Window, lc.MaxFails, lc.BlockFor), nil
	default:
		if pool == nil {
			var err error
			if pool, err = a.openPostgres(ctx, cfg); err != nil {
				return nil, err
			}
		}
		return limiter.NewPG(pool, lc.Window, lc.MaxFails, lc.BlockFor), nil
	}
}

// newSummarizer selects Gemini when a key is configured and the labelled mock otherwise.
func newSummarizer(ctx context.Context, c config.AIConfig, log *zap.Logger) (summarize.Summarizer, error) {
	if c.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, summaries are mocked")
		return summarize.Mock{}, nil
	}
	return summarize.NewGemini(ctx, c.GeminiAPIKey, c.Model)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", zap.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		timeout := a.shutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.http.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases backing connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

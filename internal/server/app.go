// Package server wires the account service together: storage backends, the
// session service, the HTTP API and the gRPC health endpoint. It also
// handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/staffkeeper/internal/server/password"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/staffkeeper/internal/server/services"
	"github.com/dmitrijs2005/staffkeeper/internal/server/storage"

	gs "github.com/dmitrijs2005/staffkeeper/internal/server/grpc"
	hs "github.com/dmitrijs2005/staffkeeper/internal/server/http"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    redis.UniversalClient
	repos    repomanager.RepositoryManager
	registry revocations.Registry
	users    *services.UserService
	httpSrv  *hs.Server
	grpcSrv  *gs.GRPCServer
}

// NewApp builds every component from c. An empty DatabaseDSN selects
// in-memory repositories and an empty S3Bucket an in-memory avatar store;
// both are meant for development only.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}

	if err := app.initRepositories(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initRegistry(ctx); err != nil {
		app.Close()
		return nil, err
	}

	avatars, err := app.initAvatarStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	issuer := auth.NewIssuer(c.SecretKey, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration, app.registry)
	hasher := password.NewBcryptHasher(0)

	app.users = services.NewUserService(services.UserServiceDeps{
		Repos:        app.repos,
		Hasher:       hasher,
		Issuer:       issuer,
		Revocations:  app.registry,
		Avatars:      avatars,
		Logger:       logger,
		StoreTimeout: c.StoreTimeout,
	})
	depts := services.NewDepartmentService(app.repos,
		services.NewCredentialStore(app.repos, hasher, c.StoreTimeout), logger, c.StoreTimeout)

	app.httpSrv = hs.NewServer(hs.Options{
		Users:        app.users,
		Departments:  depts,
		Metrics:      metrics.New(),
		LoginLimiter: hs.NewRateLimiter(c.LoginRateLimit, c.LoginRateBurst),
		Cookie:       hs.CookieConfig{Secure: c.CookieSecure, Domain: c.CookieDomain},
		Logger:       logger,
	})
	app.grpcSrv = gs.NewGRPCServer(c.EndpointAddrGRPC, logger)

	return app, nil
}

func (app *App) initRepositories() error {
	if app.config.DatabaseDSN == "" {
		if app.config.RevocationBackend == config.RevocationBackendPostgres {
			return errors.New("the postgres revocation backend needs a database DSN")
		}
		app.repos = repomanager.NewInMemoryRepositoryManager()
		return nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	repos, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.repos = repos
	return nil
}

func (app *App) initRegistry(ctx context.Context) error {
	switch app.config.RevocationBackend {
	case config.RevocationBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		app.redis = client

		pingCtx, cancel := context.WithTimeout(ctx, app.config.StoreTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		app.registry = revocations.NewRedisRegistry(client)

	case config.RevocationBackendMemory:
		app.registry = revocations.NewMemoryRegistry()

	default:
		app.registry = revocations.NewPostgresRegistry(app.db)
	}
	return nil
}

func (app *App) initAvatarStore(ctx context.Context) (storage.AvatarStore, error) {
	if app.config.S3Bucket == "" {
		return storage.NewMemoryStore(), nil
	}
	s, err := storage.NewS3Store(ctx, storage.S3Config{
		AccessKey:    app.config.S3RootUser,
		SecretKey:    app.config.S3RootPassword,
		Region:       app.config.S3Region,
		Bucket:       app.config.S3Bucket,
		BaseEndpoint: app.config.S3BaseEndpoint,
		URLTTL:       app.config.AvatarURLValidityDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}
	return s, nil
}

// prepare runs migrations, drops stale revocation records and creates the
// bootstrap staff account when one is configured.
func (app *App) prepare(ctx context.Context) error {
	if err := app.repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	purged, err := app.registry.Purge(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("purge revoked tokens: %w", err)
	}
	if purged > 0 {
		app.logger.Info(ctx, "purged expired revocations", "count", purged)
	}

	if app.config.HasAdminBootstrap() {
		if err := app.users.EnsureStaffUser(ctx, app.config.AdminUsername, app.config.AdminEmail, app.config.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap staff user: %w", err)
		}
	}
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpSrv.Run(ctx, app.config.EndpointAddrHTTP); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpcSrv.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.prepare(ctx); err != nil {
		return err
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}

// Close releases database and Redis connections.
func (app *App) Close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

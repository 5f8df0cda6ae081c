package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"gamepub/internal/bootstrap/config"
	"gamepub/internal/bootstrap/database"
	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/domain/qcreport"
	"gamepub/internal/errs"
	"gamepub/internal/infrastructure/blobstore"
	cacheinfra "gamepub/internal/infrastructure/cache"
	"gamepub/internal/infrastructure/events"
	"gamepub/internal/infrastructure/filewatch"
	"gamepub/internal/infrastructure/identity"
	sqliterepo "gamepub/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "gamepub/internal/infrastructure/persistence/sqlite/uow"
	"gamepub/internal/ports"
	"gamepub/internal/transport/httpapi"
	"gamepub/internal/usecase/upload"
	"gamepub/internal/usecase/versions"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewVersionRepository,
			fx.As(new(ports.VersionRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideBlobStore),
	fx.Provide(func(s *blobstore.FilesystemStore) ports.BlobStore { return s }),
	fx.Provide(provideIdentity),
	fx.Provide(func(p *identity.JWTProvider) ports.IdentityProvider { return p }),
	fx.Provide(provideEvents),
	fx.Provide(provideThresholds),
	fx.Provide(provideVersionsService),
	fx.Provide(provideUploadRegistry),
	fx.Provide(provideHTTPServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

// provideCache picks the cache backend; "none" yields a nil cache, which every consumer tolerates.
func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case "", "sqlite":
		return cacheinfra.NewSQLiteCache(db), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return client.Close()
			},
		})
		logging.Info(logCtx, "redis cache configured", slog.String("addr", cfg.Cache.RedisAddr))
		return cacheinfra.NewRedisCache(client, cfg.App.Name+":"), nil
	case "none":
		return nil, nil
	default:
		return nil, errs.Wrapf(errs.New(errs.KindValidation, "unsupported cache driver"), "cache.driver %q", cfg.Cache.Driver)
	}
}

func provideBlobStore(cfg config.Config) (*blobstore.FilesystemStore, error) {
	return blobstore.NewFilesystemStore(cfg.Storage.Root)
}

func provideIdentity(cfg config.Config) (*identity.JWTProvider, error) {
	p, err := identity.NewJWTProvider(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL)
	if err != nil {
		return nil, errs.Wrap(err, "http.jwt_secret")
	}
	return p, nil
}

// provideEvents returns a nil publisher when no NATS URL is configured.
func provideEvents(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.EventPublisher, error) {
	url := strings.TrimSpace(cfg.Events.NATSURL)
	if url == "" {
		return nil, nil
	}
	conn, err := events.Connect(url, cfg.App.Name)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return conn.Drain()
		},
	})
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"nats event publisher configured",
		slog.String("url", url),
	)
	return events.NewNATSPublisher(conn, cfg.Events.SubjectPrefix), nil
}

func provideThresholds(cfg config.Config) (qcreport.Thresholds, error) {
	return versions.LoadThresholds(cfg.QC.PolicyFile)
}

func provideVersionsService(repo ports.VersionRepository, uow ports.UnitOfWork, cache ports.Cache, publisher ports.EventPublisher, cfg config.Config, thresholds qcreport.Thresholds) *versions.Service {
	return versions.NewService(repo, uow, cache,
		versions.WithThresholds(thresholds),
		versions.WithCacheTTL(cfg.Cache.TTL),
		versions.WithEvents(publisher),
	)
}

// WatchQCPolicy reloads QC thresholds when the policy file changes.
// A file that fails to parse leaves the previous thresholds in place.
func WatchQCPolicy(lc fx.Lifecycle, ctx context.Context, cfg config.Config, svc *versions.Service) error {
	path := strings.TrimSpace(cfg.QC.PolicyFile)
	if path == "" {
		return nil
	}
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "bootstrap.qc_policy"),
		slog.String("path", path),
	)

	var watcher *filewatch.Watcher
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w, err := filewatch.Start(ctx, path, func() {
				thresholds, err := versions.LoadThresholds(path)
				if err != nil {
					logging.Warn(logCtx, "qc policy reload failed, keeping previous thresholds", slog.Any("err", errs.Loggable(err)))
					return
				}
				svc.SetThresholds(thresholds)
				logging.Info(logCtx, "qc policy reloaded")
			})
			if err != nil {
				return err
			}
			watcher = w
			return nil
		},
		OnStop: func(context.Context) error {
			if watcher == nil {
				return nil
			}
			return watcher.Close()
		},
	})
	return nil
}

func uploadOptions(cfg config.UploadConfig) upload.Options {
	return upload.Options{
		MaxFileSize:       cfg.MaxFileSize,
		AllowedExtensions: cfg.AllowedExtensions,
		StageTimeout:      cfg.StageTimeout,
	}
}

func provideUploadRegistry(blobs ports.BlobStore, svc *versions.Service, cache ports.Cache, cfg config.Config) *upload.Registry {
	return upload.NewRegistry(blobs, svc, cache, cfg.Cache.TTL, uploadOptions(cfg.Upload))
}

// NewUploadManager builds a standalone session for one-shot uploads outside the registry.
func NewUploadManager(blobs ports.BlobStore, svc *versions.Service, actor ports.Actor, cfg config.Config) *upload.Manager {
	return upload.NewManager(blobs, svc, actor, uploadOptions(cfg.Upload))
}

// provideHTTPServer is only constructed by commands that ask for it, which is what ties
// the listener to the fx lifecycle.
func provideHTTPServer(lc fx.Lifecycle, ctx context.Context, cfg config.Config, svc *versions.Service, uploads *upload.Registry, idp ports.IdentityProvider) *httpapi.Server {
	srv := httpapi.New(httpapi.Config{
		Addr:           cfg.HTTP.Addr,
		MaxUploadBytes: cfg.Upload.MaxFileSize,
	}, svc, uploads, idp)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			return srv.Shutdown(stopCtx)
		},
	})
	return srv
}

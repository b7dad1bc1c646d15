// Файл: internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh/knownhosts"

	"roster-sync/internal/listeners"
	"roster-sync/internal/portal"
	"roster-sync/internal/repositories"
	"roster-sync/internal/services"
	syncengine "roster-sync/internal/sync"
	"roster-sync/pkg/config"
	"roster-sync/pkg/database/mongodb"
	"roster-sync/pkg/database/postgresql"
	apperrors "roster-sync/pkg/errors"
	"roster-sync/pkg/eventbus"
	"roster-sync/pkg/sftpclient"
	"roster-sync/pkg/telegram"
)

// App - собранные компоненты синхронизации. Общая сборка для сервиса и разового запуска.
type App struct {
	TeamMembers repositories.TeamMemberRepositoryInterface
	Status      repositories.SyncStatusRepositoryInterface
	Reports     services.ReportServiceInterface
	Bus         *eventbus.Bus
	Watchdog    *services.MemoryWatchdog
	Sync        *services.SyncService

	closers []func(ctx context.Context)
	logger  *zap.Logger
}

// Build подключает хранилища и собирает сервис синхронизации.
// appCtx ограничивает фоновые запуски.
func Build(appCtx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	repo, err := a.openStore(appCtx, cfg)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.TeamMembers = repo

	lock, status, err := a.openCoordination(appCtx, cfg)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.Status = status

	driver, err := portal.NewDriver(portal.OptionsFromConfig(cfg.Portal), logger)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	sftpCfg, err := sftpConfig(cfg.Export.SFTP)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.Reports = services.NewReportService(repo, sftpCfg, logger)

	a.Bus = eventbus.New(logger)
	listeners.NewSyncListener(status, notifier(cfg.Telegram, logger), logger).Register(a.Bus)

	a.Watchdog = services.NewMemoryWatchdog(cfg.Sync.MemoryLimitMB, logger)

	engine := syncengine.NewEngine(repo, syncengine.EngineConfig{
		BatchSize: cfg.Sync.BatchSize,
		DryRun:    cfg.Sync.DryRun,
	}, logger)

	a.Sync = services.NewSyncService(appCtx, driver, engine, lock, a.Watchdog, a.Reports, a.Bus, services.SyncConfig{
		Credentials:   portal.Credentials{Email: cfg.Portal.Email, Password: cfg.Portal.Password},
		SchedulePaths: cfg.Portal.SchedulePaths,
		GraphQLMatch:  cfg.Portal.GraphQLMatch,
		JobTimeout:    cfg.Sync.JobTimeout,
		Settle: portal.SettleConfig{
			Mode:         cfg.Sync.SettleMode,
			Period:       cfg.Sync.SettlePeriod,
			StableWindow: cfg.Sync.StableWindow,
		},
		DryRun:           cfg.Sync.DryRun,
		ExportAfterSync:  cfg.Export.UploadAfterSync && sftpCfg.Enabled(),
		ExportDepartment: cfg.Export.Department,
	}, logger)

	logger.Info("Компоненты синхронизации собраны",
		zap.String("store", cfg.Store.Driver),
		zap.String("portal_driver", cfg.Portal.Driver),
		zap.String("portal_account", cfg.MaskedPortalEmail()),
		zap.Bool("dry_run", cfg.Sync.DryRun))
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (repositories.TeamMemberRepositoryInterface, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) { pool.Close() })
		if cfg.Postgres.AutoMigrate {
			if err := postgresql.Migrate(ctx, pool); err != nil {
				return nil, fmt.Errorf("миграции PostgreSQL: %w", err)
			}
			a.logger.Info("Миграции PostgreSQL применены")
		}
		return repositories.NewTeamMemberRepository(pool, repositories.NewTxManager(pool), a.logger), nil

	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
		if err := repositories.EnsureMongoIndexes(ctx, client, cfg.Mongo.Database, cfg.Mongo.Collection); err != nil {
			return nil, fmt.Errorf("индексы MongoDB: %w", err)
		}
		return repositories.NewMongoTeamMemberRepository(client, cfg.Mongo.Database, cfg.Mongo.Collection, a.logger), nil
	}
	return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedStoreDriver, cfg.Store.Driver)
}

// openCoordination: с Redis блокировка и статус общие для всех экземпляров,
// без него - в памяти процесса.
func (a *App) openCoordination(ctx context.Context, cfg *config.Config) (repositories.RunLockInterface, repositories.SyncStatusRepositoryInterface, error) {
	if cfg.Redis.Address == "" {
		a.logger.Info("Redis не настроен: блокировка запуска и статус хранятся в памяти")
		return repositories.NewLocalRunLock(), repositories.NewMemorySyncStatusRepository(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", cfg.Redis.Address, err)
	}
	a.closers = append(a.closers, func(context.Context) { _ = client.Close() })

	cache := repositories.NewRedisCacheRepository(client)
	return repositories.NewCacheRunLock(cache, cfg.Sync.LockTTL), repositories.NewCacheSyncStatusRepository(cache), nil
}

func notifier(cfg config.TelegramConfig, logger *zap.Logger) services.NotificationServiceInterface {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return services.NewLogNotificationService(logger)
	}
	return services.NewTelegramNotificationService(telegram.NewService(cfg.BotToken), cfg.ChatID, logger)
}

func sftpConfig(cfg config.SFTPConfig) (sftpclient.Config, error) {
	out := sftpclient.Config{
		Host:                  cfg.Host,
		Port:                  cfg.Port,
		User:                  cfg.User,
		Pass:                  cfg.Pass,
		RemoteDir:             cfg.RemoteDir,
		InsecureIgnoreHostKey: cfg.InsecureIgnoreHostKey,
	}
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return out, fmt.Errorf("sftp: чтение known_hosts %s: %w", cfg.KnownHostsFile, err)
		}
		out.HostKeyCallback = cb
	}
	return out, nil
}

// Close закрывает подключения в обратном порядке.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

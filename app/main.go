// Файл: main.go

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"roster-sync/internal/bootstrap"
	"roster-sync/internal/routes"
	"roster-sync/internal/services"
	"roster-sync/pkg/config"
	applogger "roster-sync/pkg/logger"
	appmiddleware "roster-sync/pkg/middleware"
	"roster-sync/pkg/service"
	"roster-sync/pkg/utils"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(appCtx, cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось собрать приложение", zap.Error(err))
	}
	app.Watchdog.ApplySoftLimit()

	var scheduler *services.Scheduler
	if cfg.Schedule.Enabled {
		scheduler, err = services.NewScheduler(appCtx, app.Sync, cfg.Schedule.Cron, cfg.Location(), logger)
		if err != nil {
			logger.Fatal("Не удалось создать планировщик", zap.Error(err))
		}
		scheduler.Start()
	} else {
		logger.Warn("Плановый запуск отключён (SCHEDULE_ENABLED=false)")
	}

	var e *echo.Echo
	if cfg.Server.Enabled {
		e = newServer(cfg, app, logger)
		go func() {
			logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
			if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Ошибка запуска сервера", zap.Error(err))
				stop()
			}
		}()
	}

	<-appCtx.Done()
	logger.Info("Получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if e != nil {
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Сервер остановлен с ошибкой", zap.Error(err))
		}
	}
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Плановый запуск не успел завершиться", zap.Error(err))
		}
	}
	if err := app.Sync.Wait(shutdownCtx); err != nil {
		logger.Warn("Фоновый запуск не успел завершиться", zap.Error(err))
	}
	if err := app.Bus.Wait(shutdownCtx); err != nil {
		logger.Warn("Обработчики событий не успели завершиться", zap.Error(err))
	}
	app.Close(shutdownCtx)
	logger.Info("Сервис остановлен")
}

func newServer(cfg *config.Config, app *bootstrap.App, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				_ = utils.ErrorResponse(c, err)
			}
			return err
		},
	}))
	e.Use(appmiddleware.RequestLogger(logger))

	if cfg.JWT.SecretKey == "" {
		logger.Warn("JWT_SECRET_KEY не задан: защищённые маршруты будут отвечать 401")
	}

	routes.InitRouter(e, routes.Dependencies{
		SyncService:    app.Sync,
		StatusRepo:     app.Status,
		ReportService:  app.Reports,
		TeamMemberRepo: app.TeamMembers,
		JWT:            service.NewJWTService(cfg.JWT.SecretKey),
	}, logger)
	return e
}

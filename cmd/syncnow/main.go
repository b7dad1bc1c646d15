// Разовый запуск синхронизации для внешних планировщиков (k8s CronJob, systemd timer).
// Код выхода 0 - успех, 1 - ошибка конфигурации или запуска.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"roster-sync/internal/bootstrap"
	"roster-sync/internal/dto"
	"roster-sync/pkg/config"
	applogger "roster-sync/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "сверить без записи в хранилище")
	flag.Parse()

	os.Exit(run(*dryRun))
}

func run(dryRun bool) int {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка конфигурации: %v\n", err)
		return 1
	}
	if dryRun {
		cfg.Sync.DryRun = true
	}

	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File).Named("syncnow")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Не удалось собрать приложение", zap.Error(err))
		return 1
	}
	app.Watchdog.ApplySoftLimit()

	report, runErr := app.Sync.Run(ctx, dto.TriggerCLI)

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Bus.Wait(waitCtx); err != nil {
		logger.Warn("Обработчики событий не успели завершиться", zap.Error(err))
	}
	app.Close(waitCtx)

	if runErr != nil {
		return 1
	}
	logger.Info("Готово",
		zap.String("run_id", report.RunID),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated))
	return 0
}

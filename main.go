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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"reminder/src/config"
	"reminder/src/database"
	"reminder/src/notifications"
	"reminder/src/repositories"
	"reminder/src/scheduler"
	"reminder/src/services"
	"reminder/src/utils"
	aws_handler "reminder/src/utils/aws"
	redis_utils "reminder/src/utils/redis"
	"reminder/src/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./settings")
	if err != nil {
		log.Println(err, "Error while loading config")
		return
	}

	errC, err := run(cfg)
	if err != nil {
		log.Println(err, "Couldn't run")
		return
	}

	if err := <-errC; err != nil {
		log.Println(err, "Error while running")
	}
}

func run(cfg *config.Config) (<-chan error, error) {
	logger := utils.NewLogger(logrus.InfoLevel, "")

	location, err := time.LoadLocation(cfg.Service.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := database.SetupDB(cfg)
	if err != nil {
		return nil, err
	}

	redisHandler, err := redis_utils.NewRedisHandler(cfg)
	if err != nil {
		return nil, err
	}

	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}

	templateRepo := repositories.NewTemplateRepository(db)
	reminderRepo := repositories.NewReminderRepository(db)
	historyRepo := repositories.NewExecutionHistoryRepository(db)
	profileRepo := repositories.NewUserProfileRepository(db)

	emailSender, err := notifications.NewEmailSender(cfg.Notifications.Email)
	if err != nil {
		return nil, err
	}
	senders := notifications.NewSenderFactory(
		emailSender,
		notifications.NewSMSSender(cfg.Notifications.SMS),
		notifications.NewWechatSender(cfg.Notifications.Wechat),
	)

	cache := services.NewCacheService(redisHandler, logger, cfg.Cache.MonthlyTTL, cfg.Cache.UpcomingTTL)
	materializer := services.NewMaterializerService(templateRepo, reminderRepo, cache, logger, location)
	backfill := services.NewBackfillService(templateRepo, materializer, logger, location)
	dispatch := services.NewDispatchService(
		reminderRepo, profileRepo, historyRepo, cache, senders, logger, location,
		cfg.Jobs.DispatchWorkers, cfg.Jobs.TickTimeout, cfg.Jobs.DispatchTimeout,
	)
	cleanup := services.NewCleanupService(historyRepo, logger, cfg.Jobs.HistoryRetentionDays)

	runner := scheduler.NewJobRunner(logger, location)
	jobs := []struct {
		name string
		spec string
		fn   func(ctx context.Context) error
	}{
		{"prepare-due-reminders", cfg.Jobs.PrepareSpec, dispatch.PrepareTick},
		{"send-due-reminders", cfg.Jobs.SendSpec, dispatch.SendTick},
		{"monthly-backfill", cfg.Jobs.MonthlyBackfillSpec, func(ctx context.Context) error { return backfill.RunMonthly(ctx) }},
		{"history-cleanup", cfg.Jobs.CleanupSpec, cleanup.Run},
	}
	for _, job := range jobs {
		if err := runner.AddJob(job.name, job.spec, job.fn); err != nil {
			return nil, err
		}
	}
	runner.Start()

	server := worker.NewServer(backfill, cleanup)
	httpServer := worker.NewHTTPServer(server, cfg.Service.Port)

	errC := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on port %s", cfg.Service.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		logger.Info("Shutting down")
		runner.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("HTTP server shutdown failed")
		}
		db.Close()
		if err := redisHandler.Close(); err != nil {
			logger.WithError(err).Error("Redis close failed")
		}
		errC <- nil
	}()

	return errC, nil
}

// resolveSecrets replaces config placeholders with values from AWS Secrets
// Manager. Only the SMS provider key is fetched today.
func resolveSecrets(cfg *config.Config) error {
	if cfg.Notifications.SMS.APIKeySecretID == "" {
		return nil
	}
	handler, err := aws_handler.NewAWSHandler(cfg.Notifications.SMS.Region)
	if err != nil {
		return err
	}
	apiKey, err := handler.SecretManager.GetSecretValue(cfg.Notifications.SMS.APIKeySecretID)
	if err != nil {
		return err
	}
	cfg.Notifications.SMS.APIKey = apiKey
	return nil
}

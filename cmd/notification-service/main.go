package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/logger"
	"github.com/marminbh/parking-svc/internal/notification"
	"github.com/marminbh/parking-svc/internal/routes"
	"github.com/marminbh/parking-svc/internal/service"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), config.ServiceNotification); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(config.ServiceNotification)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	svc := service.NewService(cfg, logger.L())

	notifiers := []notification.Notifier{notification.NewLogNotifier(logger.L().Named("alerts"))}
	if cfg.Notification.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(
			cfg.Notification.WebhookURL,
			cfg.Notification.WebhookSecret,
			cfg.Notification.WebhookTimeout,
			logger.L().Named("webhook"),
		))
		logger.Info("Webhook alerts enabled", zap.String("url", cfg.Notification.WebhookURL))
	}

	notificationService := notification.NewService(logger.L().Named("notification"), notifiers...)
	if err := svc.Subscribe("notification", []string{events.PatternAll}, notificationService); err != nil {
		logger.Fatal("Failed to subscribe to events", zap.Error(err))
	}
	svc.Start()

	app := routes.NewApp("Notification Service")
	routes.SetupCommonRoutes(app, svc.Health, svc.Metrics)

	svc.Serve(app)
	logger.Info("Server stopped")
}

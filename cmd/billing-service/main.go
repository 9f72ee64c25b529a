package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/billing"
	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/database"
	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/handlers"
	"github.com/marminbh/parking-svc/internal/logger"
	"github.com/marminbh/parking-svc/internal/repository"
	"github.com/marminbh/parking-svc/internal/routes"
	"github.com/marminbh/parking-svc/internal/service"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), config.ServiceBilling); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(config.ServiceBilling)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	svc := service.NewService(cfg, logger.L())
	if err := svc.ConnectDatabase(database.MigrationsBilling); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	billingService := billing.NewService(repository.NewGormBillStore(svc.DB), cfg.Billing.FlatAmount, logger.L().Named("billing"))
	if err := svc.Subscribe("billing", []string{events.PatternReservation}, billingService); err != nil {
		logger.Fatal("Failed to subscribe to reservation events", zap.Error(err))
	}
	svc.Start()

	app := routes.NewApp("Billing Service")
	routes.SetupCommonRoutes(app, svc.Health, svc.Metrics)
	routes.SetupBillingRoutes(app, handlers.NewBillsHandler(billingService, logger.L()))

	svc.Serve(app)
	logger.Info("Server stopped")
}

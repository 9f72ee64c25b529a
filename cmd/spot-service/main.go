package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/database"
	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/handlers"
	"github.com/marminbh/parking-svc/internal/logger"
	"github.com/marminbh/parking-svc/internal/repository"
	"github.com/marminbh/parking-svc/internal/routes"
	"github.com/marminbh/parking-svc/internal/service"
	"github.com/marminbh/parking-svc/internal/spots"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), config.ServiceSpot); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(config.ServiceSpot)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	svc := service.NewService(cfg, logger.L())
	if err := svc.ConnectDatabase(database.MigrationsSpot); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	spotService := spots.NewService(repository.NewGormSpotStore(svc.DB), logger.L().Named("spots"))

	// Sensor readings flip occupancy asynchronously
	if err := svc.Subscribe("spot-sensor", []string{events.PatternSensor}, spotService); err != nil {
		logger.Fatal("Failed to subscribe to sensor events", zap.Error(err))
	}
	svc.Start()

	app := routes.NewApp("Parking Spot Service")
	routes.SetupCommonRoutes(app, svc.Health, svc.Metrics)
	routes.SetupSpotRoutes(app, handlers.NewSpotsHandler(spotService, logger.L()))

	svc.Serve(app)
	logger.Info("Server stopped")
}

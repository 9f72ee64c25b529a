package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/handlers"
	"github.com/marminbh/parking-svc/internal/logger"
	"github.com/marminbh/parking-svc/internal/routes"
	"github.com/marminbh/parking-svc/internal/sensor"
	"github.com/marminbh/parking-svc/internal/service"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), config.ServiceSensor); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(config.ServiceSensor)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	svc := service.NewService(cfg, logger.L())
	svc.Start()

	app := routes.NewApp("Sensor Service")
	routes.SetupCommonRoutes(app, svc.Health, svc.Metrics)
	routes.SetupSensorRoutes(app, handlers.NewSensorHandler(sensor.NewService(svc.Publisher()), logger.L()))

	svc.Serve(app)
	logger.Info("Server stopped")
}

package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/gateway"
	"github.com/marminbh/parking-svc/internal/logger"
	"github.com/marminbh/parking-svc/internal/routes"
	"github.com/marminbh/parking-svc/internal/service"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), config.ServiceGateway); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(config.ServiceGateway)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	app := routes.NewApp("API Gateway")
	gateway.New(gateway.Routes(cfg.Services), cfg.Gateway.ProxyTimeout, logger.L().Named("gateway")).Register(app)

	service.Run(app, cfg.Server, logger.L())
	logger.Info("Server stopped")
}

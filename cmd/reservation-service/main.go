package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/database"
	"github.com/marminbh/parking-svc/internal/handlers"
	"github.com/marminbh/parking-svc/internal/lock"
	"github.com/marminbh/parking-svc/internal/logger"
	"github.com/marminbh/parking-svc/internal/repository"
	"github.com/marminbh/parking-svc/internal/reservations"
	"github.com/marminbh/parking-svc/internal/routes"
	"github.com/marminbh/parking-svc/internal/service"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL"), config.ServiceReservation); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load(config.ServiceReservation)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	svc := service.NewService(cfg, logger.L())
	if err := svc.ConnectDatabase(database.MigrationsReservation); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	reservationService := reservations.NewService(
		reservations.NewHTTPSpotChecker(cfg.Services.SpotURL, &http.Client{}),
		repository.NewGormReservationStore(svc.DB),
		svc.Publisher(),
		logger.L().Named("reservations"),
	)

	if cfg.Reservation.Consistency == config.ConsistencyLease {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := lock.NewRedisClient(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		svc.Health.Add("redis", handlers.RedisCheck(client))
		svc.OnClose(func() { _ = client.Close() })

		reservationService.WithLocker(lock.NewRedisLocker(client, cfg.Reservation.LeaseTTL, logger.L().Named("lock")))
	}
	logger.Info("Reservation consistency mode", zap.String("mode", reservationService.Mode()))

	svc.Start()

	app := routes.NewApp("Reservation Service")
	routes.SetupCommonRoutes(app, svc.Health, svc.Metrics)
	routes.SetupReservationRoutes(app, handlers.NewReservationsHandler(reservationService, logger.L()))

	svc.Serve(app)
	logger.Info("Server stopped")
}

package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Optional .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/parking-reservation/internal/config"
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/lock"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/registry"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/router"
	"github.com/iliyamo/parking-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis is optional: without it the rate limiter switches off and the
	// per-spot lock falls back to in-process mutexes.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; spot locking is process-local and rate limiting is off")
	}

	spots := registry.NewSpotClient(cfg.SpotServiceURL, cfg.RemoteTimeout)
	vehicles := registry.NewVehicleClient(cfg.VehicleServiceURL, cfg.RemoteTimeout)
	repo := repository.NewReservationRepo(db)
	locks := lock.New(rdb)

	svc := service.NewReservationService(repo, spots, vehicles, locks, queue.PublishReservationEvent)
	h := handler.NewReservationHandler(svc)

	// Background consumer mirrors lifecycle events into logs/reservations.log.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterReservations(e, h, cfg.JWTSecret, rl)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/iliyamo/ride-hailing/internal/cache"
	"github.com/iliyamo/ride-hailing/internal/config"
	"github.com/iliyamo/ride-hailing/internal/database"
	"github.com/iliyamo/ride-hailing/internal/handler"
	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/queue"
	"github.com/iliyamo/ride-hailing/internal/repository"
	"github.com/iliyamo/ride-hailing/internal/router"
	"github.com/iliyamo/ride-hailing/internal/service"
	"github.com/iliyamo/ride-hailing/internal/ws"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	migrate := pflag.Bool("migrate", false, "apply the database schema before serving")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load %s: %v", *envFile, err)
	}
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	driver, err := database.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal(err)
	}
	db, err := database.Open(database.Options{
		Driver: driver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
		Path:   cfg.DBPath,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if *migrate || cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		logger.Info("schema applied", "driver", driver)
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), logger)
	if rdb != nil {
		defer rdb.Close()
	}
	store := cache.New(rdb, logger)
	ttls := config.LoadCacheTTLs()
	respCache := config.LoadCacheConfig()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	qcfg := config.LoadQueueConfig()
	publisher := queue.NewPublisher(qcfg, logger)
	if qcfg.Enabled {
		go func() {
			if err := queue.StartRideConsumer(rootCtx, qcfg, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ride consumer stopped", "err", err)
			}
		}()
	}
	hub := ws.NewHub(logger)

	accounts := repository.NewAccountRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	rides := repository.NewRideRepo(db)

	authSvc := service.NewAuthService(accounts, service.AuthOptions{
		JWTSecret:    cfg.JWTSecret,
		AccessTTLMin: cfg.AccessTTLMin,
		BcryptCost:   cfg.BcryptCost,
		MaxAttempts:  cfg.LoginMaxAttempts,
		Lockout:      cfg.LoginLockout,
		SessionTTL:   ttls.Session,
		Cache:        store,
		Logger:       logger,
	})
	rideSvc := service.NewRideService(rides, accounts, vehicles, service.RideOptions{
		CommissionRate: cfg.CommissionRate,
		HistoryLimit:   cfg.HistoryLimit,
		RequestsLimit:  cfg.RequestsLimit,
		LocationTTL:    ttls.DriverLocation,
		RequestsTTL:    ttls.RideRequests,
		Cache:          store,
		Notifiers: []service.Notifier{
			publisher,
			hub,
			middleware.ResponseInvalidator{Config: respCache, Redis: rdb},
		},
		Logger: logger,
	})
	vehicleSvc := service.NewVehicleService(vehicles, rides, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	auth := middleware.JWTAuth(cfg.JWTSecret, accounts, logger)
	apiLimiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
	authLimiter := middleware.NewTokenBucket(config.LoadAuthRateLimitConfig(), rdb, logger)
	historyCache := middleware.NewRedisCache(respCache, rdb, logger)

	router.RegisterRoutes(e, handler.NewHealthHandler(db, store))
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc), auth, authLimiter)
	router.RegisterRides(e, handler.NewRideHandler(rideSvc), auth, apiLimiter, historyCache)
	router.RegisterVehicles(e, handler.NewVehicleHandler(vehicleSvc), auth, apiLimiter)
	router.RegisterRealtime(e, handler.NewWSHandler(hub, cfg.CORSOrigins, logger), auth)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "driver", driver, "cache", store.Enabled(), "queue", qcfg.Enabled)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("server exited")
}

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartstein/staffing/internal/staffing/auth"
	"github.com/gartstein/staffing/internal/staffing/config"
	"github.com/gartstein/staffing/internal/staffing/controller"
	"github.com/gartstein/staffing/internal/staffing/db"
	"github.com/gartstein/staffing/internal/staffing/events"
	"github.com/gartstein/staffing/internal/staffing/handlers"
	"go.uber.org/zap"
)

// producer is what the services publish to and main closes on exit.
type producer interface {
	controller.EventProducer
	Close()
}

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	repo, err := db.NewRepository(cfg.Database.Repository())
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}()

	prod := initProducer(cfg, logger)
	defer prod.Close()

	modules, err := cfg.Modules.Snapshot()
	if err != nil {
		logger.Fatal("Invalid module configuration", zap.Error(err))
	}
	opts := []controller.Option{
		controller.WithFeatures(modules),
		controller.WithDefaultAlertThreshold(cfg.Contracts.DefaultAlertThresholdDays),
	}
	guard := auth.NewGuard(repo, logger)
	contracts := controller.NewContractService(repo, guard, prod, logger, opts...)
	transfers := controller.NewTransferService(repo, guard, prod, logger, opts...)

	handler, err := handlers.NewHandler(contracts, transfers, cfg.Auth.JWTSecret, logger)
	if err != nil {
		logger.Fatal("Failed to build HTTP handler", zap.Error(err))
	}

	server := handlers.NewServer(cfg.Server.GRPCPort, cfg.Server.HTTPPort, logger)
	if err := server.RegisterHTTPHandler(handler); err != nil {
		logger.Fatal("Failed to register HTTP handler", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	waitForShutdown(server, cfg.Server.ShutdownTimeout, errCh, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewExample()
	}
	return logger.Named("staffing")
}

// initProducer connects to Kafka, or returns a no-op producer when no brokers
// are configured.
func initProducer(cfg *config.Config, logger *zap.Logger) producer {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("No Kafka brokers configured, events are disabled")
		return events.NopProducer{}
	}
	p, err := events.NewProducer(cfg.Kafka.Brokers, logger, cfg.Kafka.Topic)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	return p
}

// waitForShutdown blocks until an interrupt, SIGTERM or a server failure,
// then shuts the servers down.
func waitForShutdown(server *handlers.Server, timeout time.Duration, errCh <-chan error, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	server.Stop(timeout)
	logger.Info("Servers stopped properly")
}

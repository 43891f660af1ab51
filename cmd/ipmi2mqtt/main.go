package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulianttila/ipmi2mqtt/internal/config"
	"github.com/paulianttila/ipmi2mqtt/internal/logger"
	"github.com/paulianttila/ipmi2mqtt/internal/service"

	"go.uber.org/zap"
)

const (
	serviceName = "ipmi2mqtt"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting ipmi2mqtt service",
		zap.String("version", version),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("ipmi_host", cfg.IPMI.Host),
	)

	svc, err := service.NewService(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to create service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		zlog.Fatal("Failed to start service", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := svc.Stop(ctx); err != nil {
		zlog.Error("Error during shutdown", zap.Error(err))
	}

	zlog.Info("Service stopped")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/bus"
	"github.com/paulianttila/ipmi2mqtt/internal/config"
	"github.com/paulianttila/ipmi2mqtt/internal/ipmi"
	"github.com/paulianttila/ipmi2mqtt/internal/metrics"
	mqttcommon "github.com/paulianttila/ipmi2mqtt/internal/mqtt"
	"github.com/paulianttila/ipmi2mqtt/internal/publisher"
	rediscommon "github.com/paulianttila/ipmi2mqtt/internal/redis"
	"github.com/paulianttila/ipmi2mqtt/internal/updater"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UpdateTopic receives manual update requests over MQTT.
const UpdateTopic = "update"

const shutdownTimeout = 5 * time.Second

// Service wires the updater to its triggers, the bus and the HTTP endpoints.
type Service struct {
	config     *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	mqttClient *mqttcommon.Client
	redis      *redis.Client
	scheduler  *Scheduler
	server     *http.Server

	wg sync.WaitGroup
}

// NewService connects to the broker (and Redis when configured) and builds the pipeline.
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	var sink bus.Publisher = mqttClient
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = rediscommon.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			mqttClient.Disconnect()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		sink = bus.Fanout{mqttClient, bus.NewStream(redisClient, cfg.Redis.Stream)}
	}

	m := metrics.New()
	reader := ipmi.NewReader(&cfg.IPMI, logger)
	pub := publisher.New(sink, cfg.Cache.Size, cfg.Cache.TTL, logger)
	u := updater.New(reader, pub, sink, m, logger)
	scheduler := NewScheduler(cfg.UpdateInterval, u, logger)

	return &Service{
		config:     cfg,
		logger:     logger,
		metrics:    m,
		mqttClient: mqttClient,
		redis:      redisClient,
		scheduler:  scheduler,
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           NewRouter(m.Handler(), scheduler),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start subscribes to manual triggers and starts the scheduler and HTTP server.
func (s *Service) Start(ctx context.Context) error {
	if err := s.mqttClient.Subscribe(UpdateTopic, s.handleUpdateRequest); err != nil {
		return fmt.Errorf("failed to subscribe to update topic: %w", err)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.logger.Info("ipmi2mqtt service started",
		zap.Duration("update_interval", s.config.UpdateInterval),
		zap.Duration("cache_ttl", s.config.Cache.TTL),
	)
	return nil
}

// handleUpdateRequest turns a message on the update topic into a manual cycle.
func (s *Service) handleUpdateRequest(topic string, payload []byte) error {
	s.logger.Info("Manual update requested over MQTT", zap.String("topic", topic))
	s.scheduler.TriggerManual()
	return nil
}

// Stop shuts the HTTP server down, waits for the running cycle and
// releases the bus connections. ctx should already be cancelled so the
// scheduler exits.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ipmi2mqtt service")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	s.wg.Wait()

	if err := s.mqttClient.Unsubscribe(UpdateTopic); err != nil {
		s.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	s.mqttClient.Disconnect()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Error closing redis", zap.Error(err))
		}
	}

	s.logger.Info("ipmi2mqtt service stopped")
	return nil
}

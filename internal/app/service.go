package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"waterwatch/internal/clock"
	"waterwatch/internal/config"
	"waterwatch/internal/engine"
	"waterwatch/internal/ingest"
	"waterwatch/internal/logging"
	"waterwatch/internal/metrics"
	"waterwatch/internal/notify"
	"waterwatch/internal/relay"
	"waterwatch/internal/scheduler"
	"waterwatch/internal/state"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable waterwatch daemon for one device.
type Service struct {
	cfg        config.Config
	instanceID string
	logger     *slog.Logger
	closeLog   func()
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	store      state.Store
	transport  notify.Transport
	channel    relay.Channel
	session    *Session
	httpSrv    *http.Server
	natsSub    interface{ Close() error }
	mqttSub    *ingest.MQTTSubscriber
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log, cfg.Service)
	if err != nil {
		return nil, err
	}
	return newService(cfg, logger, closeLog, clk)
}

func newService(cfg config.Config, logger *slog.Logger, closeLog func(), clk clock.Clock) (*Service, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service := &Service{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		logger:     logger,
		closeLog:   closeLog,
		registry:   registry,
		metrics:    metrics.New(registry),
		clock:      clk,
	}

	table, err := cfg.ThresholdTable()
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	evaluator := engine.NewEvaluator(table, engine.Classifier{
		LowFactor:  cfg.Evaluation.CriticalLowFactor,
		HighFactor: cfg.Evaluation.CriticalHighFactor,
	})

	store, err := buildStore(cfg)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.store = store
	transport, err := notify.New(cfg.Notify, logger)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.transport = transport
	if err := service.buildRelayChannel(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	var publisher *relay.Publisher
	if service.channel != nil {
		publisher = &relay.Publisher{
			Channel: service.channel,
			Origin:  service.instanceID,
			Topic:   cfg.Relay.Topic,
			Metrics: service.metrics,
		}
	}
	service.session = NewSession(SessionDeps{
		DeviceID: cfg.Service.DeviceID,
		Policy: scheduler.Policy{
			Interval:       time.Duration(cfg.Notify.RepeatEverySec) * time.Second,
			NotificationID: cfg.Notify.NotificationID,
		},
		Evaluator:  evaluator,
		Clock:      clk,
		Store:      service.store,
		Transport:  transport,
		Publisher:  publisher,
		Queue:      cfg.Notify.Queue,
		StaleAfter: time.Duration(cfg.Service.StaleAfterSec) * time.Second,
		Logger:     logger,
		Metrics:    service.metrics,
	})

	service.buildHTTPServer()
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if cfg.Ingest.MQTT.Enabled {
		service.mqttSub = ingest.NewMQTTSubscriber(cfg.Ingest.MQTT, service.session, logger, service.metrics)
	}

	logger.Info("service initialized",
		"instance_id", service.instanceID,
		"mode", cfg.Service.Mode,
		"transports", transport.Names(),
		"relay", cfg.Relay.Enabled,
	)
	return service, nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		_ = s.session.Run(sessionCtx)
	}()

	relayCtx, relayCancel := context.WithCancel(context.Background())
	stop := func() {
		s.readyFlag.Store(false)
		relayCancel()
		sessionCancel()
	}
	abort := func(err error) error {
		s.stopIngest()
		stop()
		workers.Wait()
		_ = s.shutdown()
		return err
	}

	if s.channel != nil {
		receiver := &relay.Receiver{
			Origin:         s.instanceID,
			Staleness:      time.Duration(s.cfg.Relay.StalenessSec) * time.Second,
			NotificationID: s.cfg.Notify.RelayNotificationID,
			Transport:      s.transport,
			Clock:          s.clock,
			Logger:         s.logger.With("component", "relay"),
			Metrics:        s.metrics,
		}
		if err := receiver.Subscribe(relayCtx, s.channel); err != nil {
			return abort(fmt.Errorf("relay subscribe: %w", err))
		}
		sweeper := &relay.Sweeper{
			Channel:   s.channel,
			Retention: time.Duration(s.cfg.Relay.RetentionSec) * time.Second,
			Interval:  time.Duration(s.cfg.Relay.SweepIntervalSec) * time.Second,
			Clock:     s.clock,
			Logger:    s.logger.With("component", "relay"),
			Metrics:   s.metrics,
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			sweeper.Run(relayCtx)
		}()
	}

	if s.mqttSub != nil {
		if err := s.mqttSub.Start(); err != nil {
			return abort(fmt.Errorf("mqtt ingest: %w", err))
		}
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		runErr = fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
	}

	s.readyFlag.Store(false)
	s.stopIngest()
	stop()
	workers.Wait()
	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Session returns the device session.
func (s *Service) Session() *Session {
	return s.session
}

// Handler returns the HTTP router.
func (s *Service) Handler() http.Handler {
	return s.httpSrv.Handler
}

// stopIngest stops feeds before the session drains.
func (s *Service) stopIngest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
		}
		s.natsSub = nil
	}
	if s.mqttSub != nil {
		if err := s.mqttSub.Close(); err != nil {
			s.logger.Error("mqtt subscriber close failed", "error", err.Error())
		}
		s.mqttSub = nil
	}
}

// shutdown closes backends in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Error("relay channel close failed", "error", err.Error())
			markErr(fmt.Errorf("relay channel close: %w", err))
		}
		s.channel = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close failed", "error", err.Error())
			markErr(fmt.Errorf("store close: %w", err))
		}
		s.store = nil
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires router with health, status, metrics and ingest endpoints.
func (s *Service) buildHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.HandleFunc(s.cfg.HTTP.StatusPath, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodGet {
			writer.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(writer).Encode(s.session.Snapshot()); err != nil {
			s.logger.Warn("status encode failed", "error", err.Error())
		}
	})
	mux.Handle(s.cfg.HTTP.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	if s.cfg.Ingest.HTTP.Enabled {
		mux.Handle(s.cfg.Ingest.HTTP.Path, ingest.NewHTTPHandler(s.session, s.cfg.Ingest.HTTP.MaxBodyBytes, s.logger, s.metrics))
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSSubscriber starts NATS ingest when enabled.
func (s *Service) buildNATSSubscriber() error {
	if isSingleMode(s.cfg) || !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.NATS.URL, s.cfg.Ingest.NATS, s.session, s.logger, s.metrics)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildRelayChannel opens the relay medium for the configured mode.
func (s *Service) buildRelayChannel() error {
	if !s.cfg.Relay.Enabled {
		return nil
	}
	if isSingleMode(s.cfg) {
		s.channel = relay.NewMemoryChannel()
		return nil
	}
	channel, err := relay.NewNATSChannel(s.cfg.NATS, s.logger)
	if err != nil {
		return err
	}
	s.channel = channel
	return nil
}

// buildStore creates notification state backend from config.
// Params: root config snapshot.
// Returns: NATS KV store in nats mode, file or memory store in single mode.
func buildStore(cfg config.Config) (state.Store, error) {
	if !isSingleMode(cfg) {
		store, err := state.NewNATSStore(cfg.NATS)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if cfg.State.Path != "" {
		store, err := state.NewFileStore(cfg.State.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return state.NewMemoryStore(), nil
}

func isSingleMode(cfg config.Config) bool {
	return config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle
}

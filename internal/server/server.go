package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"occupancy/internal/alerts"
	"occupancy/internal/config"
	"occupancy/internal/evaluator"
	"occupancy/internal/events"
	"occupancy/internal/handlers"
	"occupancy/internal/kafka"
	"occupancy/internal/level"
	"occupancy/internal/logger"
	"occupancy/internal/middleware"
	"occupancy/internal/notify"
	"occupancy/internal/storage"
	"occupancy/internal/websocket"
	"occupancy/internal/worker"
)

// Server wires the measurement store, alert registry, evaluator and the HTTP
// API together and owns their lifecycle.
type Server struct {
	cfg    *config.Config
	nodeID string
	now    func() time.Time
	start  time.Time

	store     *storage.MeasurementStore
	estimator *level.Estimator
	gauge     *level.Gauge
	registry  *alerts.Registry
	notifier  notify.Notifier
	evaluator *evaluator.Evaluator
	hub       *websocket.Hub
	sink      events.Sink

	// Set only when Kafka is enabled
	queue      *events.Queue
	producer   *kafka.Producer
	workerPool *worker.Pool
	consumer   *kafka.Consumer

	handler    http.Handler
	httpServer *http.Server
	wg         sync.WaitGroup
}

// Option customises a Server.
type Option func(*Server)

// WithNotifier replaces the notifier selected by configuration.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

// WithClock replaces the wall clock used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds every component from cfg. Nothing is started until Run.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.nodeID = cfg.HTTP.NodeID
	if s.nodeID == "" {
		s.nodeID, _ = os.Hostname()
		if s.nodeID == "" {
			s.nodeID = "unknown"
		}
	}

	est, err := level.NewEstimator(cfg.Level.Breakpoints)
	if err != nil {
		return nil, fmt.Errorf("level estimator: %w", err)
	}
	s.estimator = est
	s.store = storage.NewMeasurementStore()
	s.gauge = level.NewGauge(s.store, est)

	s.registry = alerts.NewRegistry(alerts.Config{
		Levels:       s.gauge,
		Unit:         cfg.Alerts.Unit,
		MinUnits:     cfg.Alerts.MinUnits,
		MaxUnits:     cfg.Alerts.MaxUnits,
		ArchiveLimit: cfg.Alerts.ArchiveLimit,
		Now:          s.now,
	})

	if s.notifier == nil {
		s.notifier, err = notify.New(cfg.Notifier, cfg.Evaluator.NotifyTimeout)
		if err != nil {
			return nil, fmt.Errorf("notifier: %w", err)
		}
	}

	s.hub = websocket.NewHub()
	sinks := events.Multi{s.hub}
	if cfg.Kafka.Enabled && cfg.Kafka.EventsTopic != "" {
		s.queue = events.NewQueue(cfg.Kafka.QueueSize, s.nodeID)
		sinks = append(sinks, s.queue)
	}
	s.sink = sinks

	s.evaluator, err = evaluator.New(evaluator.Config{
		Alerts:        s.registry,
		Levels:        s.gauge,
		Notifier:      s.notifier,
		Sink:          s.sink,
		Interval:      cfg.Evaluator.Interval,
		NotifyTimeout: cfg.Evaluator.NotifyTimeout,
		Now:           s.now,
	})
	if err != nil {
		return nil, err
	}

	s.handler = s.routes()
	return s, nil
}

// routes builds the router and wraps it in CORS and the middleware chain.
func (s *Server) routes() http.Handler {
	measure := handlers.NewMeasureHandler(s.store, s.now)
	alertsH := handlers.NewAlertsHandler(s.registry, s.sink)

	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/measure", measure.Record).Methods(http.MethodPost)
	api.HandleFunc("/latest", measure.Latest).Methods(http.MethodGet)
	api.HandleFunc("/alerts", alertsH.Create).Methods(http.MethodPost)
	api.HandleFunc("/alerts", alertsH.List).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id:[0-9]+}", alertsH.Get).Methods(http.MethodGet)
	api.Handle("/level", handlers.NewLevelHandler(s.gauge, s.estimator.MaxLevel())).Methods(http.MethodGet)

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", s.hub)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return middleware.Chain(
		c.Handler(r),
		middleware.Logging,
		middleware.Recovery,
		middleware.BodyLimit(s.cfg.HTTP.MaxBodySize),
	)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Evaluator exposes the evaluator, mainly so tests can run single cycles.
func (s *Server) Evaluator() *evaluator.Evaluator {
	return s.evaluator
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// listener fails, then shuts down in dependency order.
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	s.start = s.now()

	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Addr, err)
	}

	// Background components outlive ctx so shutdown can stop them in order.
	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if err := s.startKafka(bg); err != nil {
		ln.Close()
		return err
	}

	hubCtx, stopHub := context.WithCancel(bg)
	defer stopHub()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(hubCtx)
	}()

	evalCtx, stopEvaluator := context.WithCancel(bg)
	evalDone := make(chan struct{})
	go func() {
		defer close(evalDone)
		s.evaluator.Run(evalCtx)
	}()

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("node", s.nodeID).Msg("starting HTTP server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(bg)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	s.shutdown(stopEvaluator, evalDone, stopHub)
	stopBackground()
	s.wg.Wait()

	log.Info().Msg("server stopped")
	return runErr
}

// startKafka creates the optional producer, worker pool and consumer.
func (s *Server) startKafka(ctx context.Context) error {
	kc := s.cfg.Kafka
	if !kc.Enabled {
		return nil
	}
	log := logger.WithComponent("server")

	if s.queue != nil {
		producer, err := kafka.NewProducer(kc.Brokers, kc.EventsTopic, kc.Producer)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		s.producer = producer
		s.workerPool = worker.NewPool(worker.Config{
			Publisher:      producer,
			EnvelopeChan:   s.queue.C(),
			Workers:        kc.Producer.PoolSize,
			BatchSize:      kc.Producer.BatchSize,
			BatchTimeout:   kc.Producer.BatchTimeout,
			PublishTimeout: kc.Producer.WriteTimeout,
		})
		s.workerPool.Start()
		log.Info().Strs("brokers", kc.Brokers).Str("topic", kc.EventsTopic).Msg("event producer started")
	}

	if kc.MeasurementsTopic != "" {
		consumer, err := kafka.NewConsumer(kc.Brokers, kc.MeasurementsTopic, kc.GroupID, s.store)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		s.consumer = consumer
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("measurement consumer stopped with error")
			}
		}()
	}
	return nil
}

// shutdown stops intake first, then the evaluator, then drains event delivery.
func (s *Server) shutdown(stopEvaluator context.CancelFunc, evalDone <-chan struct{}, stopHub context.CancelFunc) {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// A cycle in progress finishes before the evaluator returns.
	stopEvaluator()
	<-evalDone

	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			log.Error().Err(err).Msg("consumer close error")
		}
	}

	if s.queue != nil {
		s.queue.Close()
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := s.workerPool.Shutdown(drainCtx); err != nil {
			log.Warn().Err(err).Msg("worker drain timed out")
		}
		drainCancel()
		if err := s.producer.Close(); err != nil {
			log.Error().Err(err).Msg("producer close error")
		}
	}

	stopHub()
}

// reportStats periodically logs statistics
func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.stats()
			event := log.Info().
				Stringer("level", st.Level).
				Int("sensors", st.Sensors).
				Int("active_alerts", st.Alerts.Active).
				Int("retained_alerts", st.Alerts.Retained).
				Int("ws_clients", st.WebsocketClients)
			if st.Worker != nil {
				event = event.
					Uint64("worker_processed", st.Worker.Processed).
					Uint64("worker_failed", st.Worker.Failed).
					Uint64("producer_sent", st.Producer.MessagesSent).
					Int("queue_size", st.Queue.Buffered)
			}
			event.Msg("stats")
		}
	}
}

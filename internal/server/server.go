package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/Nzyazin/settlement/internal/core/events"
	"github.com/Nzyazin/settlement/internal/core/handler"
	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/core/metrics"
	middlWre "github.com/Nzyazin/settlement/internal/core/middleware"
	"github.com/Nzyazin/settlement/internal/core/repository"
	"github.com/Nzyazin/settlement/internal/core/repository/postgres"
	"github.com/Nzyazin/settlement/internal/core/usecase"
	"github.com/Nzyazin/settlement/pkg/config"
	"github.com/Nzyazin/settlement/pkg/postgresdb"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
)

type Server struct {
	router           *mux.Router
	log              logger.Logger
	httpServer       *http.Server
	walletHandler    *handler.WalletHandler
	purchaseHandler  *handler.PurchaseHandler
	affiliateHandler *handler.AffiliateHandler
	registry         *prometheus.Registry
	db               *postgresdb.Database
	redis            *events.RedisPublisher
}

// NewServer wires the Postgres-backed stack from environment configuration.
func NewServer(log logger.Logger) (*Server, error) {
	cfgDB, err := config.LoadConfigDB()
	if err != nil {
		return nil, err
	}

	cfgRedis, err := config.LoadConfigRedis()
	if err != nil {
		return nil, err
	}

	db, err := postgresdb.NewPostgresDB(*cfgDB, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgresdb.Migrate(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	store := postgres.NewPostgresStore(db.DB, log, postgres.Options{
		TxTimeout:    cfgDB.TxTimeout,
		TxMaxRetries: cfgDB.TxMaxRetries,
	})

	var publisher events.Publisher = events.NopPublisher{}
	var redisPublisher *events.RedisPublisher
	if cfgRedis != nil {
		client, err := events.NewRedisClient(cfgRedis.Addr)
		if err != nil {
			db.Close()
			return nil, err
		}
		redisPublisher = events.NewRedisPublisher(client, cfgRedis.Stream)
		publisher = redisPublisher
		log.Info("Settlement events enabled", logger.StringField("stream", cfgRedis.Stream))
	}

	srv, err := New(store, publisher, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	srv.db = db
	srv.redis = redisPublisher
	return srv, nil
}

// New builds the router over any repository.Store. Metrics go to a registry
// owned by the server.
func New(store repository.Store, publisher events.Publisher, log logger.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	ledgerMetrics := metrics.New()
	if err := ledgerMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	walletUsecase := usecase.NewWalletUsecase(store, ledgerMetrics, log)
	settlementUsecase := usecase.NewSettlementUsecase(store, walletUsecase, publisher, ledgerMetrics, log)
	affiliateUsecase := usecase.NewAffiliateUsecase(store, log)

	server := &Server{
		log:              log,
		router:           mux.NewRouter(),
		walletHandler:    handler.NewWalletHandler(walletUsecase, log),
		purchaseHandler:  handler.NewPurchaseHandler(settlementUsecase, log),
		affiliateHandler: handler.NewAffiliateHandler(affiliateUsecase, log),
		registry:         registry,
	}

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{Registry: registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) RegisterRoutes() {
	// Recovery sits inside so the 500 it writes is still logged.
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)
	s.walletHandler.RegisterRoutes(s.router)
	s.purchaseHandler.RegisterRoutes(s.router)
	s.affiliateHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				s.log.Error("failed to close redis client", logger.ErrorField("error", err))
			}
		}

		if s.db != nil {
			err := s.db.Close()
			if err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}

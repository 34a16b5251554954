package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elasticdoctor/webapp/config"
	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/elasticdoctor/webapp/internal/db"
	"github.com/elasticdoctor/webapp/internal/events"
	"github.com/elasticdoctor/webapp/internal/gateway"
	"github.com/elasticdoctor/webapp/internal/handlers"
	"github.com/elasticdoctor/webapp/internal/metrics"
	"github.com/elasticdoctor/webapp/internal/mq"
	"github.com/elasticdoctor/webapp/internal/secrets"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/internal/storage"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// Deps are the collaborators the router is built from.
type Deps struct {
	Config   config.Config
	DB       *sql.DB
	Users    services.UserRepository
	Clusters services.ClusterRepository
	Certs    services.CertificateStore
	Events   services.EventPublisher
	Gateway  services.UsageGateway
	Sessions *auth.SessionManager
	Google   *auth.GoogleProvider
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
	storage    *storage.Storage
	logger     *zap.Logger
}

// New opens every backing service named in cfg and builds the server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	sessions, err := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL, cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("SESSION_SECRET: %w", err)
	}
	sealer, err := secrets.NewSealer(cfg.Secrets.CredentialsKey)
	if err != nil {
		return nil, fmt.Errorf("CLUSTER_CREDENTIALS_KEY: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv := &Server{db: dbConn, logger: logger}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		srv.release()
		return nil, err
	}
	srv.bus = bus

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		srv.release()
		return nil, err
	}
	srv.storage = objects

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		srv.release()
		return nil, err
	}

	deps := Deps{
		Config:   cfg,
		DB:       dbConn,
		Users:    store.NewUserRepository(dbConn, cfg.Database.Driver),
		Clusters: store.NewClusterRepository(dbConn, cfg.Database.Driver, sealer),
		Events:   events.NewPublisher(bus),
		Gateway:  gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, m),
		Sessions: sessions,
		Metrics:  m,
		Gatherer: registry,
		Logger:   logger,
	}
	if objects != nil {
		deps.Certs = objects
	}
	if cfg.Google.ClientID != "" {
		deps.Google = auth.NewGoogleProvider(auth.NewGoogleConfig(cfg.Google), auth.GoogleUserinfo{}, cfg.IsProduction())
	} else {
		logger.Warn("GOOGLE_CLIENT_ID is not set, Google sign-in is disabled")
	}

	router := NewRouter(deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// NewRouter mounts every route on a fresh chi router.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	userService := services.NewUserService(d.Users, d.Events, d.Metrics, logger)
	clusterService := services.NewClusterService(d.Clusters, d.Users, d.Certs, d.Events, d.Metrics, logger)
	usageService := services.NewUsageService(d.Gateway)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		handlers.Recoverer(logger),
		handlers.Metrics(d.Metrics),
		cors.Handler(cors.Options{
			AllowedOrigins:   d.Config.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)

	if d.DB != nil {
		router.Get("/healthz", handlers.Health(d.DB, logger))
		if !d.Config.IsProduction() {
			router.Get("/api/test-db", handlers.TestDB(d.DB))
		}
	}
	if d.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(userService, d.Sessions, d.Google, logger))
	})
	router.Route("/api/user", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, d.Sessions, logger))
	})
	router.Route("/api/clusters", func(r chi.Router) {
		handlers.ClusterRouter(r, handlers.NewClusterHandler(clusterService, logger), d.Sessions)
	})
	router.Route("/api/usage", func(r chi.Router) {
		handlers.UsageRouter(r, handlers.NewUsageHandler(usageService, logger))
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the broker, object
// storage and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.release()
	return err
}

// release closes the broker, object store and database held by s. Nil
// backends are skipped.
func (s *Server) release() {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

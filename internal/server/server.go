package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ryshoes/storefront/config"
	"github.com/ryshoes/storefront/internal/cache"
	"github.com/ryshoes/storefront/internal/db"
	"github.com/ryshoes/storefront/internal/handlers"
	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/metrics"
	"github.com/ryshoes/storefront/internal/mq"
	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/session"
	"github.com/ryshoes/storefront/internal/storage"
	"github.com/ryshoes/storefront/internal/store"
	"github.com/ryshoes/storefront/internal/store/memory"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	cache      cache.Cache
	mq         *mq.MQ
	logger     *logrus.Logger
}

type repositories struct {
	users    services.UserRepository
	products services.ProductRepository
	orders   services.OrderRepository
}

// New constructs a Server with every backend selected by cfg.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Server, error) {
	s := &Server{logger: logger}

	repos, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(cfg.Session)
	if err != nil {
		s.close()
		return nil, err
	}

	blobs, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	s.cache, err = cache.Open(ctx, cfg.Redis)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	s.mq, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	authService := services.NewAuthService(repos.users)
	catalogService := services.NewCatalogService(repos.products, s.cache, cfg.Redis.TTL)
	productService := services.NewProductService(repos.products, blobs, catalogService, s.mq)
	orderService := services.NewOrderService(repos.orders, s.mq)

	if cfg.StoreDriver == "memory" {
		if _, err := authService.SeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			s.close()
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		logger.WithField("username", cfg.Admin.Username).Warn("memory store in use, admin seeded from config")
	}

	var pinger handlers.Pinger
	if s.db != nil {
		pinger = s.db
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.Middleware(logger),
		middleware.Recoverer,
		metrics.Middleware,
		sessions.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(pinger))
	router.Handle("/metrics", metrics.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, sessions)
	})
	router.Route("/products", func(r chi.Router) {
		handlers.ProductRouter(r, catalogService)
	})
	router.Route("/orders", func(r chi.Router) {
		handlers.OrderRouter(r, orderService)
	})
	router.Route("/user", func(r chi.Router) {
		handlers.UserRouter(r, authService)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, authService, productService, orderService, cfg.MaxUploadBytes)
	})
	router.Route("/media", func(r chi.Router) {
		handlers.MediaRouter(r, blobs)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (repositories, error) {
	switch cfg.StoreDriver {
	case "memory":
		mem := memory.New()
		return repositories{users: mem.Users(), products: mem.Products(), orders: mem.Orders()}, nil
	case "", "postgres":
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return repositories{}, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		return repositories{
			users:    store.NewUserRepository(dbConn),
			products: store.NewProductRepository(dbConn),
			orders:   store.NewOrderRepository(dbConn),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("storefront listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, then releases every backend.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if closer, ok := s.cache.(io.Closer); ok {
		_ = closer.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

package server

import (
	"fmt"
	"net/http"
	"time"

	"repuestera/internal/cache"
	"repuestera/internal/config"
	"repuestera/internal/database"
	custommiddleware "repuestera/internal/middleware"
	"repuestera/internal/repository"
	"repuestera/internal/service"
	"repuestera/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, dbService database.Service) *Server {
	router := chi.NewRouter()

	// Base middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env != "production"))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	db := dbService.DB()

	// Optional redis for rate limiting and read caching
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Repositories
	customerRepo := repository.NewCustomerRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)

	productRepo := repository.NewProductRepository(db)
	if redisClient != nil {
		productRepo = cache.NewCachedProductRepository(productRepo, redisClient, logger)
	}

	// Services
	tokenService := service.NewTokenService(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
	)
	authService := service.NewAuthService(customerRepo, adminRepo, tokenService)

	// Middleware chain: token verification -> principal load -> permission gate
	requireAuth := custommiddleware.RequireAuth(tokenService, logger)
	loadCustomer := custommiddleware.LoadCustomer(customerRepo, logger)
	loadAdmin := custommiddleware.LoadAdmin(adminRepo, logger)
	superAdmin := custommiddleware.RequireSuperAdmin(logger)
	guards := transport.AdminGuards{
		RequireAuth: requireAuth,
		LoadAdmin:   loadAdmin,
		Permission: func(action string) func(http.Handler) http.Handler {
			return custommiddleware.RequirePermission(action, logger)
		},
	}

	var authRateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		authRateLimit = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "ratelimit:auth",
		}, logger)
	}

	// Handlers
	authHandler := transport.NewAuthHandler(authService, customerRepo, adminRepo, logger)
	productHandler := transport.NewProductHandler(productRepo, logger)
	categoryHandler := transport.NewCategoryHandler(categoryRepo, logger)
	adminHandler := transport.NewAdminHandler(customerRepo, adminRepo, logger)
	healthHandler := transport.NewHealthHandler(dbService)

	authHandler.RegisterRoutes(router, requireAuth, loadCustomer, authRateLimit)
	productHandler.RegisterRoutes(router, guards)
	categoryHandler.RegisterRoutes(router, guards)
	adminHandler.RegisterRoutes(router, guards, superAdmin)
	healthHandler.RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     dbService,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	s.logger.Sync()
	return nil
}

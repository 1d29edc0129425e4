package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/taskmaster/taskboard/docs"
	httpHandlers "github.com/taskmaster/taskboard/internal/adapters/http"
	"github.com/taskmaster/taskboard/internal/application/security"
	"github.com/taskmaster/taskboard/internal/application/services"
	"github.com/taskmaster/taskboard/internal/infrastructure/config"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/infrastructure/storage"
	"github.com/taskmaster/taskboard/internal/infrastructure/validation"
)

const redactedServerError = "An internal server error occurred"

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	logger   *logger.Logger
	store    *storage.Storage
	registry *prometheus.Registry
	auditor  *security.Auditor
}

// New creates a new server instance
func New(cfg *config.Config, store *storage.Storage, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = validation.NewValidator()
	e.Binder = httpHandlers.NewBinder()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(cfg, appLogger)

	registry := prometheus.NewRegistry()
	auditor := security.NewAuditor(store.Cache, security.Config{
		FailedLoginThreshold: cfg.Security.FailedLoginThreshold,
		FailedLoginWindow:    cfg.Security.FailedLoginWindow,
	}, registry, appLogger.WithComponent("security"))

	// Initialize services
	repos := store.Repos
	guard := services.NewOwnershipGuard(repos.Projects, repos.Tasks, auditor)
	authService := services.NewAuthService(repos.Users, store.Cache, auditor, cfg.JWT, cfg.Security.BcryptCost, appLogger)
	projectService := services.NewProjectService(repos.Projects, repos.Tasks, guard, appLogger)
	taskService := services.NewTaskService(repos.Tasks, repos.Projects, repos.Users, guard, appLogger)

	// Initialize handlers
	authHandler := httpHandlers.NewAuthHandler(authService, appLogger)
	projectHandler := httpHandlers.NewProjectHandler(projectService, taskService, appLogger)
	taskHandler := httpHandlers.NewTaskHandler(taskService, appLogger)

	server := &Server{
		echo:     e,
		config:   cfg,
		logger:   appLogger,
		store:    store,
		registry: registry,
		auditor:  auditor,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(authHandler, projectHandler, taskHandler, authService)

	return server, nil
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(clientInfo())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
				"request_id", values.RequestID,
			}

			if values.Error != nil && values.Status >= http.StatusInternalServerError {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins(s.config.Security.CORSAllowedOrigins),
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:",
	}))

	if s.config.Server.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.Server.BodyLimit))
	}

	// Timeout middleware
	if s.config.Server.RequestTimeout > 0 {
		s.echo.Use(middleware.ContextTimeout(s.config.Server.RequestTimeout))
	}

	if dir := s.config.Server.StaticDir; dir != "" {
		s.echo.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:  dir,
			HTML5: true,
			Skipper: func(c echo.Context) bool {
				p := c.Request().URL.Path
				return strings.HasPrefix(p, "/api") || strings.HasPrefix(p, "/swagger") ||
					strings.HasPrefix(p, "/health") || p == "/ready" || p == "/metrics"
			},
		}))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(authHandler *httpHandlers.AuthHandler, projectHandler *httpHandlers.ProjectHandler, taskHandler *httpHandlers.TaskHandler, authService *services.AuthService) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	shared := s.store.CacheDriver == config.CacheRedis
	sec := s.config.Security

	api := s.echo.Group("/api", rateLimiter(
		limiterStore(shared, s.store.Cache, "api", sec.RateLimitRequests, sec.RateLimitWindow, s.logger),
		"Too many requests from this IP, please try again later", s.auditor))

	auth := s.authMiddleware(authService)

	// Auth routes
	authGroup := api.Group("/auth", rateLimiter(
		limiterStore(shared, s.store.Cache, "auth", sec.AuthRateLimitRequests, sec.AuthRateLimitWindow, s.logger),
		"Too many authentication attempts, please try again later", s.auditor))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authHandler.Me, auth)
	authGroup.POST("/logout", authHandler.Logout, auth)

	// Project routes
	projectGroup := api.Group("/projects", auth)
	projectGroup.GET("", projectHandler.ListProjects)
	projectGroup.POST("", projectHandler.CreateProject)
	projectGroup.GET("/:id", projectHandler.GetProject)
	projectGroup.PUT("/:id", projectHandler.UpdateProject)
	projectGroup.DELETE("/:id", projectHandler.DeleteProject)
	projectGroup.GET("/:id/tasks", projectHandler.GetProjectTasks)
	projectGroup.GET("/:id/statistics", projectHandler.GetProjectStatistics)

	// Task routes
	taskGroup := api.Group("/tasks", auth)
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("/projects/:projectId/tasks", projectHandler.GetProjectTasks)
	taskGroup.GET("/:taskId", taskHandler.GetTask)
	taskGroup.PUT("/:taskId", taskHandler.UpdateTask)
	taskGroup.DELETE("/:taskId", taskHandler.DeleteTask)
	taskGroup.PUT("/:taskId/status", taskHandler.UpdateTaskStatus)
	taskGroup.POST("/:taskId/subtasks", taskHandler.AddSubtask)
	taskGroup.PUT("/:taskId/subtasks/:subtaskId", taskHandler.UpdateSubtask)
	taskGroup.DELETE("/:taskId/subtasks/:subtaskId", taskHandler.DeleteSubtask)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	s.registry.MustRegister(requestsTotal, requestDuration)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	for _, check := range s.store.Checks() {
		if err := check.Probe(c.Request().Context()); err != nil {
			status = "error"
			checks[check.Name] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
			continue
		}

		result := map[string]interface{}{"status": "ok"}
		if check.Info != nil {
			result["stats"] = check.Info()
		}
		checks[check.Name] = result
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"storage": map[string]string{
			"driver": s.store.Driver,
			"cache":  s.store.CacheDriver,
		},
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  runtime.Version(),
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Warnw("Readiness check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address, "storage", s.store.Driver, "cache", s.store.CacheDriver)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}
	return origins
}

// customErrorHandler renders every error as {message, error?}. Details of
// the cause are only exposed outside production.
func customErrorHandler(cfg *config.Config, logger *logger.Logger) echo.HTTPErrorHandler {
	production := cfg.App.IsProduction()

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = httpHandlers.Error(err)
		}

		code := he.Code
		resp := map[string]string{"message": fmt.Sprint(he.Message)}
		if he.Internal != nil && !production {
			resp["error"] = he.Internal.Error()
		}

		if code >= http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
			if production {
				resp = map[string]string{"message": redactedServerError}
			}
		}

		// Send response
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, resp)
		}
		if err != nil {
			logger.Errorw("Error sending response", "error", err)
		}
	}
}

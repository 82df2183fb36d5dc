package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"civic-polls/config"
	"civic-polls/internal/handler"
	"civic-polls/internal/middleware"
	"civic-polls/internal/transport/httpdto"
	"civic-polls/internal/websocket"
	"civic-polls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Profile  *handler.ProfileHandler
	Poll     *handler.PollHandler
	Admin    *handler.AdminHandler
	Public   *handler.PublicHandler
	Realtime *websocket.Handler
}

// Deps are the cross-cutting collaborators the routes need besides handlers.
type Deps struct {
	Auth    middleware.Authenticator
	Authz   middleware.AuthzResolver
	Limiter middleware.IPLimiter
	// Health reports whether the backing stores are reachable.
	Health func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = 8 << 20

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(h *Handlers, deps Deps) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.AllowedOrigins))
	s.engine.Use(middleware.MetricsMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	requireAuth := middleware.AuthMiddleware(deps.Auth, deps.Authz)
	optionalAuth := middleware.OptionalAuth(deps.Auth, deps.Authz)
	ipLimit := middleware.RateLimitMiddleware(deps.Limiter)

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/otp", h.Auth.RequestCode)
		auth.POST("/verify", h.Auth.VerifyCode)
		auth.POST("/refresh", ipLimit, h.Auth.Refresh)
		auth.POST("/logout", requireAuth, h.Auth.Logout)
		auth.GET("/me", requireAuth, h.Auth.Me)
	}

	profile := v1.Group("/profile", requireAuth)
	{
		profile.GET("", h.Profile.Get)
		profile.PUT("", h.Profile.Update)
		profile.POST("/verification", h.Profile.SubmitVerification)
	}

	polls := v1.Group("/polls")
	{
		polls.GET("", h.Poll.List)
		polls.GET("/:id", optionalAuth, h.Poll.Get)
		polls.POST("", requireAuth, h.Poll.Create)
		polls.POST("/:id/vote", requireAuth, h.Poll.Vote)
		polls.DELETE("/:id", requireAuth, h.Poll.Withdraw)
	}

	v1.POST("/subscribers", ipLimit, h.Public.Subscribe)
	v1.GET("/stats", h.Public.Stats)

	admin := v1.Group("/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.GET("/dashboard", h.Admin.Dashboard)
		admin.GET("/analytics", h.Admin.Analytics)

		admin.GET("/verifications", h.Admin.ListVerifications)
		admin.POST("/verifications/:id/approve", h.Admin.ApproveVerification)
		admin.POST("/verifications/:id/reject", h.Admin.RejectVerification)

		admin.GET("/polls", h.Admin.ListPendingPolls)
		admin.POST("/polls/:id/approve", h.Admin.ApprovePoll)
		admin.POST("/polls/:id/reject", h.Admin.RejectPoll)

		admin.GET("/users", h.Admin.ListUsers)
		admin.POST("/users/:id/admin", h.Admin.GrantAdmin)
		admin.DELETE("/users/:id/admin", h.Admin.RevokeAdmin)
	}

	if h.Realtime != nil {
		v1.GET("/realtime", h.Realtime.Connect)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}

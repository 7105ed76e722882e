package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	authbiz "github.com/clawchat/clawchat-backend/internal/auth/biz"
	"github.com/clawchat/clawchat-backend/internal/auth/middleware"
	authservice "github.com/clawchat/clawchat-backend/internal/auth/service"
	chatservice "github.com/clawchat/clawchat-backend/internal/chat/service"
	"github.com/clawchat/clawchat-backend/internal/conf"
	promptservice "github.com/clawchat/clawchat-backend/internal/prompt/service"
	widgetservice "github.com/clawchat/clawchat-backend/internal/widget/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPServer is the public, session-gated surface: the browser client's
// REST API, the SSE stream and attachment downloads.
type HTTPServer struct {
	server *http.Server
	logger *zap.Logger
}

func NewHTTPServer(
	config *conf.Config,
	logger *zap.Logger,
	auth *authbiz.AuthUseCase,
	rateLimiter *middleware.RateLimiter,
	authService *authservice.AuthService,
	chatService *chatservice.ChatService,
	widgetService *widgetservice.WidgetService,
	promptService *promptservice.PromptService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Auth(auth))

	// Health check, reachable without a session
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	root := router.Group("")
	authService.RegisterRoutes(root, rateLimiter.Handler("invite"))
	chatService.RegisterFileRoutes(root)
	promptService.RegisterRoutes(root)

	api := router.Group("/api")
	chatService.RegisterRoutes(api)
	widgetService.RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger,
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

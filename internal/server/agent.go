package server

import (
	"context"
	"fmt"
	"net/http"

	agentservice "github.com/clawchat/clawchat-backend/internal/agent/service"
	"github.com/clawchat/clawchat-backend/internal/conf"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AgentServer is the second listener, bound to the loopback interface
// for the agent process. It carries no session auth; isolation comes
// from the bind address, so never point agent_host at a public
// interface.
type AgentServer struct {
	server *http.Server
	logger *zap.Logger
}

func NewAgentServer(
	config *conf.Config,
	logger *zap.Logger,
	agentService *agentservice.AgentService,
) *AgentServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger.Named("agent-api")))

	agentService.RegisterRoutes(router.Group(""))

	addr := fmt.Sprintf("%s:%d", config.Server.AgentHost, config.Server.AgentPort)

	return &AgentServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger,
	}
}

func (s *AgentServer) Start() error {
	s.logger.Info("starting agent API server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *AgentServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping agent API server")
	return s.server.Shutdown(ctx)
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	agentbiz "github.com/clawchat/clawchat-backend/internal/agent/biz"
	agentservice "github.com/clawchat/clawchat-backend/internal/agent/service"
	authbiz "github.com/clawchat/clawchat-backend/internal/auth/biz"
	authdata "github.com/clawchat/clawchat-backend/internal/auth/data"
	"github.com/clawchat/clawchat-backend/internal/auth/middleware"
	authservice "github.com/clawchat/clawchat-backend/internal/auth/service"
	chatbiz "github.com/clawchat/clawchat-backend/internal/chat/biz"
	chatdata "github.com/clawchat/clawchat-backend/internal/chat/data"
	chatservice "github.com/clawchat/clawchat-backend/internal/chat/service"
	"github.com/clawchat/clawchat-backend/internal/conf"
	"github.com/clawchat/clawchat-backend/internal/data"
	"github.com/clawchat/clawchat-backend/internal/pkg/logger"
	"github.com/clawchat/clawchat-backend/internal/pkg/objstore"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"
	"github.com/clawchat/clawchat-backend/internal/pkg/workerpool"
	promptbiz "github.com/clawchat/clawchat-backend/internal/prompt/biz"
	promptservice "github.com/clawchat/clawchat-backend/internal/prompt/service"
	"github.com/clawchat/clawchat-backend/internal/server"
	widgetbiz "github.com/clawchat/clawchat-backend/internal/widget/biz"
	widgetdata "github.com/clawchat/clawchat-backend/internal/widget/data"
	widgetservice "github.com/clawchat/clawchat-backend/internal/widget/service"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	log, err := logger.New(&logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Event bus and notification workers
	hub := sse.NewHub()

	pool, err := workerpool.New(8, log.Logger)
	if err != nil {
		log.Fatal("failed to create worker pool", zap.Error(err))
	}
	defer pool.Shutdown()

	// Agent liveness monitor
	monitor := agentbiz.NewMonitor(
		config.Agent.URL,
		config.Agent.NotifyTimeout,
		config.Agent.ProbeTimeout,
		config.Agent.StopTimeout,
		hub,
		pool,
		log.Logger,
	)

	// Attachment storage
	store, err := objstore.New(context.Background(), d.MinIOClient, config.MinIO.Bucket)
	if err != nil {
		log.Fatal("failed to initialize object storage", zap.Error(err))
	}

	// Initialize repositories
	messageRepo := chatdata.NewMessageRepo(d.DB)
	appStateRepo := widgetdata.NewAppStateRepo(d.DB)
	inviteRepo := authdata.NewInviteRepo(d.RedisClient)
	sessionRepo := authdata.NewSessionRepo(d.RedisClient)

	// Initialize use cases
	messageUseCase := chatbiz.NewMessageUseCase(messageRepo, hub, monitor, store, config.Widget.MaxUploadBytes, log.Logger)
	appStateUseCase := widgetbiz.NewAppStateUseCase(appStateRepo, hub, monitor, messageUseCase, config.Widget.MaxStateBytes, log.Logger)
	authUseCase := authbiz.NewAuthUseCase(inviteRepo, sessionRepo, log.Logger)
	promptUseCase := promptbiz.NewPromptUseCase(config.Prompts.Dir, log.Logger)

	// Initialize services
	chatService := chatservice.NewChatService(messageUseCase, monitor, hub, log.Logger)
	widgetService := widgetservice.NewWidgetService(appStateUseCase, log.Logger)
	authService := authservice.NewAuthService(authUseCase, config.App.Name, log.Logger)
	promptService := promptservice.NewPromptService(promptUseCase, log.Logger)
	agentService := agentservice.NewAgentService(messageUseCase, monitor, hub, log.Logger)

	rateLimiter := middleware.NewRateLimiter(d.RedisClient, 10, time.Minute, log.Logger)

	// Initialize servers
	httpServer := server.NewHTTPServer(config, log.Logger, authUseCase, rateLimiter,
		authService, chatService, widgetService, promptService)
	agentServer := server.NewAgentServer(config, log.Logger, agentService)

	// Start servers in goroutines
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	go func() {
		if err := agentServer.Start(); err != nil {
			log.Fatal("failed to start agent API server", zap.Error(err))
		}
	}()

	log.Info("servers started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down servers...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := agentServer.Stop(ctx); err != nil {
		log.Error("agent API server forced to shutdown", zap.Error(err))
	}
	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("servers exited")
}

package service

import (
	"net/http"
	"strconv"
	"time"

	agentbiz "github.com/clawchat/clawchat-backend/internal/agent/biz"
	"github.com/clawchat/clawchat-backend/internal/chat/biz"
	"github.com/clawchat/clawchat-backend/internal/chat/types"
	"github.com/clawchat/clawchat-backend/internal/pkg/response"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatService exposes the user-facing chat API: the message feed, the
// SSE event stream, uploads and the agent control surface.
type ChatService struct {
	messages *biz.MessageUseCase
	monitor  *agentbiz.Monitor
	hub      *sse.Hub
	logger   *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(messages *biz.MessageUseCase, monitor *agentbiz.Monitor, hub *sse.Hub, logger *zap.Logger) *ChatService {
	return &ChatService{
		messages: messages,
		monitor:  monitor,
		hub:      hub,
		logger:   logger,
	}
}

// RegisterRoutes registers chat routes under /api
func (s *ChatService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/events", s.Events)
	r.GET("/messages", s.ListMessages)
	r.POST("/messages", s.CreateMessage)
	r.PATCH("/messages/:id", s.UpdateMessage)
	r.DELETE("/messages/:id", s.DeleteMessage)
	r.POST("/upload", s.Upload)
	r.POST("/stop", s.Stop)
	r.POST("/forget/from", s.ForgetFrom)

	for _, endpoint := range []string{"health", "state", "memory"} {
		r.GET("/agent/"+endpoint, s.agentInfoProxy(endpoint))
	}
}

// RegisterFileRoutes registers the attachment download route at the
// server root (outside /api).
func (s *ChatService) RegisterFileRoutes(r *gin.RouterGroup) {
	r.GET("/chat-public/:filename", s.DownloadAttachment)
}

// Events opens the SSE stream. A health probe runs once per fresh
// subscription so the client learns agent connectivity immediately.
func (s *ChatService) Events(c *gin.Context) {
	sse.NewStream(c, s.hub).
		OnConnect(func(client *sse.Client) {
			s.monitor.Probe(client)
		}).
		OnError(func(err error) {
			s.logger.Debug("sse write failed", zap.Error(err))
		}).
		Build().
		Run()
}

// ListMessages returns a window of messages ordered by createdAt
func (s *ChatService) ListMessages(c *gin.Context) {
	filter := &types.ListFilter{
		ConversationID: c.Query("conversationId"),
		Around:         c.Query("around"),
	}
	if before := c.Query("before"); before != "" {
		t, err := time.Parse(time.RFC3339Nano, before)
		if err != nil {
			response.BadRequest(c, "invalid before timestamp")
			return
		}
		filter.Before = &t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		filter.Limit = n
	}

	messages, hasMore, err := s.messages.List(c.Request.Context(), filter)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, gin.H{"messages": messages, "hasMore": hasMore})
}

// CreateMessageRequest is the body of POST /api/messages
type CreateMessageRequest struct {
	Content        string `json:"content" binding:"required"`
	ConversationID string `json:"conversationId"`
}

// CreateMessage appends a user message and notifies the agent
func (s *ChatService) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Content required")
		return
	}

	msg, err := s.messages.Append(c.Request.Context(), &biz.AppendRequest{
		ConversationID: req.ConversationID,
		Role:           types.RoleUser,
		Content:        req.Content,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, msg)
}

// UpdateMessageRequest is the body of PATCH /api/messages/:id
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateMessage edits a message's content
func (s *ChatService) UpdateMessage(c *gin.Context) {
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Content required")
		return
	}

	msg, err := s.messages.Update(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, msg)
}

// DeleteMessage removes a message
func (s *ChatService) DeleteMessage(c *gin.Context) {
	if err := s.messages.Delete(c.Request.Context(), c.Param("id"), true); err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c)
}

// Upload accepts a multipart message with an optional file attachment.
// One of file or content is required.
func (s *ChatService) Upload(c *gin.Context) {
	content := c.PostForm("content")
	file, err := c.FormFile("file")
	if err != nil && content == "" {
		response.BadRequest(c, "File or content required")
		return
	}

	if file == nil {
		msg, appendErr := s.messages.Append(c.Request.Context(), &biz.AppendRequest{
			ConversationID: c.PostForm("conversationId"),
			Role:           types.RoleUser,
			Content:        content,
		})
		if appendErr != nil {
			response.HandleError(c, appendErr)
			return
		}
		response.JSON(c, msg)
		return
	}

	src, err := file.Open()
	if err != nil {
		response.InternalError(c, "failed to read upload")
		return
	}
	defer src.Close()

	msg, err := s.messages.Upload(c.Request.Context(),
		c.PostForm("conversationId"), types.RoleUser, content,
		file.Filename, file.Header.Get("Content-Type"), file.Size, src)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, msg)
}

// DownloadAttachment streams a stored attachment
func (s *ChatService) DownloadAttachment(c *gin.Context) {
	reader, info, err := s.messages.OpenAttachment(c.Request.Context(), c.Param("filename"))
	if err != nil {
		response.NotFound(c, "file not found")
		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, reader, nil)
}

// Stop asks the agent to abort its current task, proxying the agent's
// reply verbatim.
func (s *ChatService) Stop(c *gin.Context) {
	status, body, err := s.monitor.Stop(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusBadGateway, "Agent unreachable")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	c.Data(status, "application/json", body)
}

// ForgetFromRequest is the body of POST /api/forget/from
type ForgetFromRequest struct {
	MessageID string `json:"messageId" binding:"required"`
}

// ForgetFrom tells the agent to drop context from a message onward
func (s *ChatService) ForgetFrom(c *gin.Context) {
	var req ForgetFromRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "messageId required")
		return
	}

	if err := s.messages.ForgetFrom(c.Request.Context(), req.MessageID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c)
}

// agentInfoProxy forwards read-only agent queries to its /info surface
func (s *ChatService) agentInfoProxy(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, body, err := s.monitor.ProxyInfo(c.Request.Context(), endpoint)
		if err != nil {
			response.Error(c, http.StatusBadGateway, "Agent unreachable")
			return
		}
		c.Data(status, "application/json", body)
	}
}

package service

import (
	chatbiz "github.com/clawchat/clawchat-backend/internal/chat/biz"
	chattypes "github.com/clawchat/clawchat-backend/internal/chat/types"

	"github.com/clawchat/clawchat-backend/internal/agent/biz"
	"github.com/clawchat/clawchat-backend/internal/pkg/response"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const agentListLimit = 500

// ScrollToMessageEvent tells open clients to scroll to a message
type ScrollToMessageEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

// AgentService is the loopback-bound HTTP surface the agent process
// talks to. It trusts its caller: the listener binds to localhost and
// carries no session auth.
type AgentService struct {
	messages *chatbiz.MessageUseCase
	monitor  *biz.Monitor
	hub      *sse.Hub
	logger   *zap.Logger
}

// NewAgentService creates a new agent service
func NewAgentService(messages *chatbiz.MessageUseCase, monitor *biz.Monitor, hub *sse.Hub, logger *zap.Logger) *AgentService {
	return &AgentService{
		messages: messages,
		monitor:  monitor,
		hub:      hub,
		logger:   logger,
	}
}

// RegisterRoutes registers the agent-facing routes at the listener root
func (s *AgentService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/send", s.Send)
	r.POST("/typing", s.Typing)
	r.POST("/state", s.State)
	r.POST("/scroll", s.Scroll)
	r.POST("/upload", s.Upload)
	r.GET("/messages", s.ListMessages)
	r.PATCH("/messages/:id", s.UpdateMessage)
	r.DELETE("/messages/:id", s.DeleteMessage)
	r.GET("/health", s.Health)
}

// SendRequest is the body of POST /send
type SendRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content" binding:"required"`
	Type           string `json:"type"`
	Name           string `json:"name"`
}

// Send appends an agent message. A plain message auto-clears the typing
// indicator; typed work records (thought, tool_call, tool_result) leave
// it alone.
func (s *AgentService) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Content required")
		return
	}

	if req.Type == "" || req.Type == chattypes.TypeMessage {
		s.monitor.SetTyping(false)
	}
	if req.Type == chattypes.TypeToolCall {
		s.logger.Debug("agent tool call",
			zap.String("tool", req.Name),
			zap.Bool("structuredArgs", gjson.Valid(req.Content)))
	}

	msg, err := s.messages.Append(c.Request.Context(), &chatbiz.AppendRequest{
		ConversationID: req.ConversationID,
		Role:           chattypes.RoleAgent,
		Type:           req.Type,
		Content:        req.Content,
		Name:           req.Name,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, gin.H{"messageId": msg.ID})
}

// TypingRequest is the body of POST /typing
type TypingRequest struct {
	Active bool `json:"active"`
}

// Typing sets the legacy typing indicator
func (s *AgentService) Typing(c *gin.Context) {
	var req TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "active required")
		return
	}
	s.monitor.SetTyping(req.Active)
	response.OK(c)
}

// StateRequest is the body of POST /state
type StateRequest struct {
	State string `json:"state" binding:"required"`
}

// State relays the agent's self-reported work state verbatim. Any label
// is accepted; only "idle" is treated specially by clients.
func (s *AgentService) State(c *gin.Context) {
	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "state required")
		return
	}
	s.monitor.SetState(req.State)
	response.OK(c)
}

// ScrollRequest is the body of POST /scroll
type ScrollRequest struct {
	MessageID string `json:"messageId" binding:"required"`
}

// Scroll asks open clients to scroll to a message
func (s *AgentService) Scroll(c *gin.Context) {
	var req ScrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "messageId required")
		return
	}

	if err := s.hub.Broadcast(ScrollToMessageEvent{
		Type:      sse.EventScrollToMessage,
		MessageID: req.MessageID,
	}); err != nil {
		s.logger.Warn("failed to broadcast scroll", zap.Error(err))
	}
	response.OK(c)
}

// Upload accepts an agent message with an optional file attachment
func (s *AgentService) Upload(c *gin.Context) {
	content := c.PostForm("content")
	file, err := c.FormFile("file")
	if err != nil && content == "" {
		response.BadRequest(c, "File or content required")
		return
	}

	if file == nil {
		msg, appendErr := s.messages.Append(c.Request.Context(), &chatbiz.AppendRequest{
			ConversationID: c.PostForm("conversationId"),
			Role:           chattypes.RoleAgent,
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
		c.PostForm("conversationId"), chattypes.RoleAgent, content,
		file.Filename, file.Header.Get("Content-Type"), file.Size, src)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, msg)
}

// ListMessages returns messages for the agent, optionally filtered by a
// content search term.
func (s *AgentService) ListMessages(c *gin.Context) {
	conversationID := c.Query("conversationId")

	if search := c.Query("search"); search != "" {
		messages, err := s.messages.Search(c.Request.Context(), conversationID, search, agentListLimit)
		if err != nil {
			response.HandleError(c, err)
			return
		}
		response.JSON(c, messages)
		return
	}

	messages, _, err := s.messages.List(c.Request.Context(), &chattypes.ListFilter{
		ConversationID: conversationID,
		Limit:          agentListLimit,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, messages)
}

// UpdateMessageRequest is the body of PATCH /messages/:id
type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateMessage edits a message's content
func (s *AgentService) UpdateMessage(c *gin.Context) {
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

// DeleteMessage removes a message without echoing the deletion back to
// the agent.
func (s *AgentService) DeleteMessage(c *gin.Context) {
	if err := s.messages.Delete(c.Request.Context(), c.Param("id"), false); err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c)
}

// Health reports listener liveness
func (s *AgentService) Health(c *gin.Context) {
	response.JSON(c, gin.H{"status": "ok", "api": "agent"})
}

package service

import (
	"github.com/clawchat/clawchat-backend/internal/pkg/response"
	"github.com/clawchat/clawchat-backend/internal/prompt/biz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PromptService exposes prompt file management endpoints
type PromptService struct {
	prompts *biz.PromptUseCase
	logger  *zap.Logger
}

// NewPromptService creates a new prompt service
func NewPromptService(prompts *biz.PromptUseCase, logger *zap.Logger) *PromptService {
	return &PromptService{prompts: prompts, logger: logger}
}

// RegisterRoutes registers prompt routes
func (s *PromptService) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api")
	{
		api.GET("/prompts", s.ListPrompts)
		api.GET("/prompts/:name", s.GetPrompt)
		api.PUT("/prompts/:name", s.SavePrompt)
	}
}

// ListPrompts returns all prompt files and their descriptions
func (s *PromptService) ListPrompts(c *gin.Context) {
	prompts, err := s.prompts.List()
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, gin.H{"prompts": prompts})
}

// GetPrompt returns the content of one prompt file
func (s *PromptService) GetPrompt(c *gin.Context) {
	content, err := s.prompts.Read(c.Param("name"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, gin.H{"name": c.Param("name"), "content": content})
}

// SavePromptRequest is the body for updating a prompt file
type SavePromptRequest struct {
	Content string `json:"content"`
}

// SavePrompt replaces the content of one prompt file
func (s *PromptService) SavePrompt(c *gin.Context) {
	var req SavePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := s.prompts.Write(c.Param("name"), req.Content); err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c)
}

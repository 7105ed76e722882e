package service

import (
	"encoding/json"

	"github.com/clawchat/clawchat-backend/internal/pkg/response"
	"github.com/clawchat/clawchat-backend/internal/widget/biz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WidgetService exposes the widget-facing HTTP surface: app state
// get/set, the generic action endpoint, error reporting and the
// standalone widget message lookup.
type WidgetService struct {
	appState *biz.AppStateUseCase
	logger   *zap.Logger
}

// NewWidgetService creates a new widget service
func NewWidgetService(appState *biz.AppStateUseCase, logger *zap.Logger) *WidgetService {
	return &WidgetService{appState: appState, logger: logger}
}

// RegisterRoutes registers widget routes under /api
func (s *WidgetService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/app-state/:conversationId/:appId", s.GetAppState)
	r.POST("/app-state/:conversationId/:appId", s.SetAppState)
	r.POST("/app-action/:conversationId/:appId", s.AppAction)
	r.POST("/widget-error/:conversationId", s.WidgetError)
	r.GET("/widget/:messageId", s.WidgetMessage)
}

// GetAppState returns the persisted state for (conversationId, appId)
func (s *WidgetService) GetAppState(c *gin.Context) {
	state, err := s.appState.Get(c.Request.Context(),
		c.Param("conversationId"), c.Param("appId"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, state)
}

// SetAppStateRequest is the body of POST /api/app-state/:conversationId/:appId
type SetAppStateRequest struct {
	State   json.RawMessage `json:"state"`
	Version int64           `json:"version"`
}

// SetAppState upserts widget state, last writer wins
func (s *WidgetService) SetAppState(c *gin.Context) {
	var req SetAppStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "State required")
		return
	}

	saved, err := s.appState.Set(c.Request.Context(),
		c.Param("conversationId"), c.Param("appId"), req.State, req.Version)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, saved)
}

// AppActionRequest is the body of POST /api/app-action/:conversationId/:appId
type AppActionRequest struct {
	Action  string          `json:"action" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// AppAction forwards a widget action to the agent
func (s *WidgetService) AppAction(c *gin.Context) {
	var req AppActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Action required")
		return
	}

	if err := s.appState.Action(c.Request.Context(),
		c.Param("conversationId"), c.Param("appId"), req.Action, req.Payload); err != nil {
		response.HandleError(c, err)
		return
	}
	response.OK(c)
}

// WidgetErrorRequest is the body of POST /api/widget-error/:conversationId
type WidgetErrorRequest struct {
	AppID string `json:"appId"`
	Error string `json:"error"`
	Stack string `json:"stack"`
}

// WidgetError accepts a widget fault report. Always answers ok: error
// reporting must never fail the reporter.
func (s *WidgetService) WidgetError(c *gin.Context) {
	var req WidgetErrorRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Error != "" {
		s.appState.ReportWidgetError(c.Param("conversationId"), req.AppID, req.Error, req.Stack)
	}
	response.OK(c)
}

// WidgetMessage returns the message backing a standalone widget tab.
// The message must contain exactly one widget block.
func (s *WidgetService) WidgetMessage(c *gin.Context) {
	msg, err := s.appState.WidgetMessage(c.Request.Context(), c.Param("messageId"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.JSON(c, msg)
}

package biz

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"
	chattypes "github.com/clawchat/clawchat-backend/internal/chat/types"
	"github.com/clawchat/clawchat-backend/internal/widget/types"
	"github.com/clawchat/clawchat-backend/internal/widget/wrapper"

	"go.uber.org/zap"
)

// AppStateRepo defines the repository interface for widget app state
type AppStateRepo interface {
	Get(ctx context.Context, conversationID, appID string) (*types.AppState, error)
	Upsert(ctx context.Context, state *types.AppState) error
}

// Broadcaster fans events out to all live subscriptions
type Broadcaster interface {
	Broadcast(event interface{}) error
}

// AgentNotifier delivers widget events to the external agent
type AgentNotifier interface {
	Notify(eventType string, payload interface{})
}

// MessageGetter looks up one message for the standalone widget surface
type MessageGetter interface {
	Get(ctx context.Context, id string) (*chattypes.Message, error)
}

// AppStateUpdatedEvent invalidates other widget instances watching the
// same (conversationId, appId) pair
type AppStateUpdatedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	AppID          string `json:"appId"`
}

// WidgetErrorEvent surfaces a widget fault to open clients
type WidgetErrorEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Error          string `json:"error"`
}

// AppStateUseCase contains business logic for widget state, actions and
// error reports
type AppStateUseCase struct {
	repo     AppStateRepo
	bus      Broadcaster
	notifier AgentNotifier
	messages MessageGetter
	logger   *zap.Logger

	maxStateBytes int
}

// NewAppStateUseCase creates a new app state use case
func NewAppStateUseCase(
	repo AppStateRepo,
	bus Broadcaster,
	notifier AgentNotifier,
	messages MessageGetter,
	maxStateBytes int,
	logger *zap.Logger,
) *AppStateUseCase {
	return &AppStateUseCase{
		repo:          repo,
		bus:           bus,
		notifier:      notifier,
		messages:      messages,
		maxStateBytes: maxStateBytes,
		logger:        logger,
	}
}

// Get retrieves the state for (conversationId, appId)
func (uc *AppStateUseCase) Get(ctx context.Context, conversationID, appID string) (*types.AppState, error) {
	return uc.repo.Get(ctx, conversationID, appID)
}

// Set upserts the state for (conversationId, appId) and broadcasts the
// change so other open widget instances can invalidate. Rejects
// payloads over the serialized size limit; the writer-supplied version
// is stored as advisory metadata, never checked against the previous
// value.
func (uc *AppStateUseCase) Set(ctx context.Context, conversationID, appID string, state json.RawMessage, version int64) (*types.AppState, error) {
	if len(state) == 0 {
		return nil, apperrors.New(apperrors.ErrStateRequired)
	}
	if len(state) > uc.maxStateBytes {
		return nil, apperrors.New(apperrors.ErrStateTooLarge)
	}
	if version <= 0 {
		version = 1
	}

	appState := &types.AppState{
		ConversationID: conversationID,
		AppID:          appID,
		State:          state,
		Version:        version,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := uc.repo.Upsert(ctx, appState); err != nil {
		return nil, err
	}

	if err := uc.bus.Broadcast(AppStateUpdatedEvent{
		Type:           sse.EventAppStateUpdated,
		ConversationID: conversationID,
		AppID:          appID,
	}); err != nil {
		uc.logger.Warn("failed to broadcast app state update",
			zap.String("appId", appID), zap.Error(err))
	}

	return appState, nil
}

// Action forwards a widget-initiated action to the agent
func (uc *AppStateUseCase) Action(ctx context.Context, conversationID, appID, action string, payload json.RawMessage) error {
	if action == "" {
		return apperrors.New(apperrors.ErrActionRequired)
	}

	body := map[string]interface{}{
		"conversationId": conversationID,
		"appId":          appID,
		"action":         action,
	}
	if len(payload) > 0 {
		body["payload"] = payload
	}
	uc.notifier.Notify("app_action", body)
	return nil
}

// ReportWidgetError logs a widget fault, surfaces it to open clients
// and forwards it to the agent. Fire and forget, nothing is stored.
func (uc *AppStateUseCase) ReportWidgetError(conversationID, appID, errMsg, stack string) {
	uc.logger.Warn("widget error",
		zap.String("conversationId", conversationID),
		zap.String("appId", appID),
		zap.String("error", errMsg),
		zap.String("stack", stack))

	if err := uc.bus.Broadcast(WidgetErrorEvent{
		Type:           sse.EventWidgetError,
		ConversationID: conversationID,
		Error:          errMsg,
	}); err != nil {
		uc.logger.Warn("failed to broadcast widget error", zap.Error(err))
	}

	body := map[string]interface{}{
		"conversationId": conversationID,
		"error":          errMsg,
	}
	if appID != "" {
		body["appId"] = appID
	}
	if stack != "" {
		body["stack"] = stack
	}
	uc.notifier.Notify("widget_error", body)
}

// WidgetMessage returns the message for the standalone widget surface.
// The message must hold exactly one widget block.
func (uc *AppStateUseCase) WidgetMessage(ctx context.Context, messageID string) (*chattypes.Message, error) {
	msg, err := uc.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if len(wrapper.ExtractWidgets(msg.Content)) != 1 {
		return nil, apperrors.New(apperrors.ErrWidgetNotFound, "message does not contain exactly one widget")
	}
	return msg, nil
}

// GetState adapts Get for a widget host: missing state maps to a JSON
// null instead of an error.
func (uc *AppStateUseCase) GetState(ctx context.Context, conversationID, appID string) (json.RawMessage, error) {
	state, err := uc.repo.Get(ctx, conversationID, appID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAppStateMissing) {
			return nil, nil
		}
		return nil, err
	}
	return state.State, nil
}

// SetState adapts Set for a widget host with the default version.
func (uc *AppStateUseCase) SetState(ctx context.Context, conversationID, appID string, state json.RawMessage) error {
	_, err := uc.Set(ctx, conversationID, appID, state, 1)
	return err
}

// Forward adapts Action for a widget host: the widget's request promise
// resolves with the action acknowledgement.
func (uc *AppStateUseCase) Forward(ctx context.Context, conversationID, appID, action string, payload json.RawMessage) (json.RawMessage, error) {
	if err := uc.Action(ctx, conversationID, appID, action, payload); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

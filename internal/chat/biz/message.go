package biz

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/clawchat/clawchat-backend/internal/chat/types"
	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"
	"github.com/clawchat/clawchat-backend/internal/pkg/objstore"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageRepo defines the repository interface for message persistence
type MessageRepo interface {
	Create(ctx context.Context, msg *types.Message) error
	GetByID(ctx context.Context, id string) (*types.Message, error)
	List(ctx context.Context, filter *types.ListFilter) ([]*types.Message, bool, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, conversationID, keyword string, limit int) ([]*types.Message, error)
	LatestCreatedAt(ctx context.Context) (time.Time, error)
}

// Broadcaster fans events out to all live subscriptions
type Broadcaster interface {
	Broadcast(event interface{}) error
}

// AgentNotifier delivers chat events to the external agent. Fire and
// forget: callers never wait on the agent.
type AgentNotifier interface {
	Notify(eventType string, payload interface{})
}

// AttachmentStore keeps uploaded file bytes
type AttachmentStore interface {
	Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, name string) (io.ReadCloser, *objstore.ObjectInfo, error)
}

// MessageEvent is the SSE envelope for new and updated messages
type MessageEvent struct {
	Type    string         `json:"type"`
	Message *types.Message `json:"message"`
}

// DeleteEvent is the SSE envelope for deletions
type DeleteEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// AppendRequest carries the fields of a message to create
type AppendRequest struct {
	ConversationID string
	Role           string
	Type           string
	Content        string
	Name           string
	Attachment     *types.Attachment
}

// MessageUseCase contains business logic for the message feed
type MessageUseCase struct {
	repo     MessageRepo
	bus      Broadcaster
	notifier AgentNotifier
	store    AttachmentStore
	logger   *zap.Logger

	mu     sync.Mutex
	lastAt time.Time

	maxUploadBytes int64
}

// NewMessageUseCase creates a new message use case. The timestamp
// watermark is primed from storage so ordering survives restarts.
func NewMessageUseCase(
	repo MessageRepo,
	bus Broadcaster,
	notifier AgentNotifier,
	store AttachmentStore,
	maxUploadBytes int64,
	logger *zap.Logger,
) *MessageUseCase {
	uc := &MessageUseCase{
		repo:           repo,
		bus:            bus,
		notifier:       notifier,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	if last, err := repo.LatestCreatedAt(context.Background()); err == nil {
		uc.lastAt = last
	}
	return uc
}

// nextCreatedAt assigns a strictly increasing timestamp. createdAt is
// the sole ordering key, so colliding clock reads get a 1ns bump.
func (uc *MessageUseCase) nextCreatedAt() time.Time {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(uc.lastAt) {
		now = uc.lastAt.Add(time.Nanosecond)
	}
	uc.lastAt = now
	return now
}

// Append persists a new message, broadcasts it, and, for user-authored
// messages, notifies the agent.
func (uc *MessageUseCase) Append(ctx context.Context, req *AppendRequest) (*types.Message, error) {
	if req.Content == "" && req.Attachment == nil {
		return nil, apperrors.New(apperrors.ErrContentRequired)
	}
	if req.Type == "" {
		req.Type = types.TypeMessage
	}
	if !types.ValidType(req.Type) {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "unknown message type: "+req.Type)
	}
	if req.Role == "" {
		req.Role = types.RoleUser
	}
	if req.ConversationID == "" {
		req.ConversationID = types.DefaultConversationID
	}

	msg := &types.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Role:           req.Role,
		Type:           req.Type,
		Content:        req.Content,
		Name:           req.Name,
		Attachment:     req.Attachment,
		CreatedAt:      uc.nextCreatedAt(),
	}

	if err := uc.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	if err := uc.bus.Broadcast(MessageEvent{Type: sse.EventMessage, Message: msg}); err != nil {
		uc.logger.Warn("failed to broadcast message", zap.String("id", msg.ID), zap.Error(err))
	}

	if msg.Role == types.RoleUser {
		payload := map[string]interface{}{
			"conversationId": msg.ConversationID,
			"messageId":      msg.ID,
			"content":        msg.Content,
		}
		if msg.Attachment != nil {
			payload["attachment"] = msg.Attachment
		}
		uc.notifier.Notify("user_message", payload)
	}

	return msg, nil
}

// Get retrieves a message by ID
func (uc *MessageUseCase) Get(ctx context.Context, id string) (*types.Message, error) {
	return uc.repo.GetByID(ctx, id)
}

// List returns a window of messages ordered by createdAt ascending
func (uc *MessageUseCase) List(ctx context.Context, filter *types.ListFilter) ([]*types.Message, bool, error) {
	if filter.ConversationID == "" {
		filter.ConversationID = types.DefaultConversationID
	}
	return uc.repo.List(ctx, filter)
}

// Search finds messages matching a keyword, newest first
func (uc *MessageUseCase) Search(ctx context.Context, conversationID, keyword string, limit int) ([]*types.Message, error) {
	if conversationID == "" {
		conversationID = types.DefaultConversationID
	}
	return uc.repo.Search(ctx, conversationID, keyword, limit)
}

// Update edits a message's content. Only plain messages are editable;
// agent-internal work records are immutable.
func (uc *MessageUseCase) Update(ctx context.Context, id, content string) (*types.Message, error) {
	if content == "" {
		return nil, apperrors.New(apperrors.ErrContentRequired)
	}

	msg, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !msg.Editable() {
		return nil, apperrors.New(apperrors.ErrMessageImmutable)
	}

	if err := uc.repo.UpdateContent(ctx, id, content); err != nil {
		return nil, err
	}
	msg.Content = content

	if err := uc.bus.Broadcast(MessageEvent{Type: sse.EventUpdate, Message: msg}); err != nil {
		uc.logger.Warn("failed to broadcast update", zap.String("id", id), zap.Error(err))
	}

	return msg, nil
}

// Delete removes a message and invalidates any further edits to it.
// notifyAgent is false when the agent itself asked for the deletion, so
// it never hears an echo of its own action.
func (uc *MessageUseCase) Delete(ctx context.Context, id string, notifyAgent bool) error {
	msg, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := uc.bus.Broadcast(DeleteEvent{Type: sse.EventDelete, ID: id}); err != nil {
		uc.logger.Warn("failed to broadcast delete", zap.String("id", id), zap.Error(err))
	}

	if notifyAgent {
		uc.notifier.Notify("message_deleted", map[string]string{
			"conversationId": msg.ConversationID,
			"messageId":      id,
		})
	}
	return nil
}

// ForgetFrom tells the agent to drop context from the given message
// onward. The message must exist; nothing is deleted server-side.
func (uc *MessageUseCase) ForgetFrom(ctx context.Context, id string) error {
	msg, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	uc.notifier.Notify("forget_from", map[string]string{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
	})
	return nil
}

// Upload stores an attachment and appends a message carrying its
// descriptor. The stored filename may gain a collision suffix.
func (uc *MessageUseCase) Upload(ctx context.Context, conversationID, role, content, filename, mimetype string, size int64, r io.Reader) (*types.Message, error) {
	if size > uc.maxUploadBytes {
		return nil, apperrors.New(apperrors.ErrAttachmentTooBig)
	}

	storedName, err := uc.store.Put(ctx, filename, r, size, mimetype)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAttachmentStorage)
	}

	return uc.Append(ctx, &AppendRequest{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Type:           types.TypeMessage,
		Attachment: &types.Attachment{
			Filename: storedName,
			Mimetype: mimetype,
			Size:     size,
		},
	})
}

// OpenAttachment streams a stored attachment by filename
func (uc *MessageUseCase) OpenAttachment(ctx context.Context, name string) (io.ReadCloser, *objstore.ObjectInfo, error) {
	return uc.store.Get(ctx, name)
}

package data

import (
	"context"
	"fmt"
	"time"

	"github.com/clawchat/clawchat-backend/internal/chat/models"
	"github.com/clawchat/clawchat-backend/internal/chat/types"
	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"

	"gorm.io/gorm"
)

const defaultListLimit = 50

// MessageRepo implements the message repository using GORM
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new message repository
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create persists a new message
func (r *MessageRepo) Create(ctx context.Context, msg *types.Message) error {
	model := r.toModel(msg)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepo) GetByID(ctx context.Context, id string) (*types.Message, error) {
	var model models.MessagePO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.ErrMessageNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return r.toDomain(&model), nil
}

// List returns a window of messages ordered by created_at ascending and
// reports whether older messages exist before the window.
func (r *MessageRepo) List(ctx context.Context, filter *types.ListFilter) ([]*types.Message, bool, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	if filter.Around != "" && filter.Before == nil {
		return r.listAround(ctx, filter.ConversationID, filter.Around, limit)
	}

	query := r.db.WithContext(ctx).Model(&models.MessagePO{}).
		Where("conversation_id = ?", filter.ConversationID)
	if filter.Before != nil {
		query = query.Where("created_at < ?", *filter.Before)
	}

	// Fetch one extra row to learn whether older history remains.
	var modelList []models.MessagePO
	if err := query.Order("created_at DESC").Limit(limit + 1).Find(&modelList).Error; err != nil {
		return nil, false, fmt.Errorf("failed to list messages: %w", err)
	}

	hasMore := len(modelList) > limit
	if hasMore {
		modelList = modelList[:limit]
	}

	// Reverse into ascending order.
	messages := make([]*types.Message, len(modelList))
	for i := range modelList {
		messages[len(modelList)-1-i] = r.toDomain(&modelList[i])
	}
	return messages, hasMore, nil
}

// listAround centers the window on one message, half before and half
// after it.
func (r *MessageRepo) listAround(ctx context.Context, conversationID, messageID string, limit int) ([]*types.Message, bool, error) {
	anchor, err := r.GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}

	half := limit / 2
	if half < 1 {
		half = 1
	}

	var beforeList []models.MessagePO
	if err := r.db.WithContext(ctx).Model(&models.MessagePO{}).
		Where("conversation_id = ? AND created_at < ?", conversationID, anchor.CreatedAt).
		Order("created_at DESC").Limit(half + 1).Find(&beforeList).Error; err != nil {
		return nil, false, fmt.Errorf("failed to list messages before anchor: %w", err)
	}

	hasMore := len(beforeList) > half
	if hasMore {
		beforeList = beforeList[:half]
	}

	var afterList []models.MessagePO
	if err := r.db.WithContext(ctx).Model(&models.MessagePO{}).
		Where("conversation_id = ? AND created_at >= ?", conversationID, anchor.CreatedAt).
		Order("created_at ASC").Limit(half + 1).Find(&afterList).Error; err != nil {
		return nil, false, fmt.Errorf("failed to list messages after anchor: %w", err)
	}

	messages := make([]*types.Message, 0, len(beforeList)+len(afterList))
	for i := len(beforeList) - 1; i >= 0; i-- {
		messages = append(messages, r.toDomain(&beforeList[i]))
	}
	for i := range afterList {
		messages = append(messages, r.toDomain(&afterList[i]))
	}
	return messages, hasMore, nil
}

// UpdateContent replaces a message's content
func (r *MessageRepo) UpdateContent(ctx context.Context, id, content string) error {
	result := r.db.WithContext(ctx).Model(&models.MessagePO{}).
		Where("id = ?", id).
		Update("content", content)
	if result.Error != nil {
		return fmt.Errorf("failed to update message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrMessageNotFound)
	}
	return nil
}

// Delete removes a message by ID
func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MessagePO{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrMessageNotFound)
	}
	return nil
}

// Search finds messages whose content matches the keyword, newest first.
func (r *MessageRepo) Search(ctx context.Context, conversationID, keyword string, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var modelList []models.MessagePO
	if err := r.db.WithContext(ctx).Model(&models.MessagePO{}).
		Where("conversation_id = ? AND content ILIKE ?", conversationID, "%"+keyword+"%").
		Order("created_at DESC").Limit(limit).Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	messages := make([]*types.Message, len(modelList))
	for i := range modelList {
		messages[i] = r.toDomain(&modelList[i])
	}
	return messages, nil
}

// LatestCreatedAt returns the newest created_at across all messages.
// Zero time when the table is empty.
func (r *MessageRepo) LatestCreatedAt(ctx context.Context) (time.Time, error) {
	var model models.MessagePO
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to query latest message: %w", err)
	}
	return model.CreatedAt, nil
}

// toModel converts domain message to GORM model
func (r *MessageRepo) toModel(msg *types.Message) *models.MessagePO {
	model := &models.MessagePO{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Type:           msg.Type,
		Content:        msg.Content,
		Name:           msg.Name,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.Attachment != nil {
		model.AttachmentFilename = &msg.Attachment.Filename
		model.AttachmentMimetype = &msg.Attachment.Mimetype
		model.AttachmentSize = &msg.Attachment.Size
	}
	return model
}

// toDomain converts GORM model to domain message
func (r *MessageRepo) toDomain(model *models.MessagePO) *types.Message {
	msg := &types.Message{
		ID:             model.ID,
		ConversationID: model.ConversationID,
		Role:           model.Role,
		Type:           model.Type,
		Content:        model.Content,
		Name:           model.Name,
		CreatedAt:      model.CreatedAt,
	}
	if model.AttachmentFilename != nil {
		msg.Attachment = &types.Attachment{
			Filename: *model.AttachmentFilename,
			Mimetype: derefString(model.AttachmentMimetype),
			Size:     derefInt64(model.AttachmentSize),
		}
	}
	return msg
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

package data

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"
	"github.com/clawchat/clawchat-backend/internal/widget/models"
	"github.com/clawchat/clawchat-backend/internal/widget/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppStateRepo implements the app state repository using GORM
type AppStateRepo struct {
	db *gorm.DB
}

// NewAppStateRepo creates a new app state repository
func NewAppStateRepo(db *gorm.DB) *AppStateRepo {
	return &AppStateRepo{db: db}
}

// Get retrieves the state for (conversationId, appId)
func (r *AppStateRepo) Get(ctx context.Context, conversationID, appID string) (*types.AppState, error) {
	var model models.AppStatePO
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND app_id = ?", conversationID, appID).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.ErrAppStateMissing)
		}
		return nil, fmt.Errorf("failed to get app state: %w", err)
	}
	return r.toDomain(&model), nil
}

// Upsert overwrites the state for (conversationId, appId). Last writer
// wins; no version check.
func (r *AppStateRepo) Upsert(ctx context.Context, state *types.AppState) error {
	model := r.toModel(state)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "version", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert app state: %w", err)
	}
	return nil
}

func (r *AppStateRepo) toModel(state *types.AppState) *models.AppStatePO {
	return &models.AppStatePO{
		ConversationID: state.ConversationID,
		AppID:          state.AppID,
		State:          string(state.State),
		Version:        state.Version,
		UpdatedAt:      state.UpdatedAt,
	}
}

func (r *AppStateRepo) toDomain(model *models.AppStatePO) *types.AppState {
	return &types.AppState{
		ConversationID: model.ConversationID,
		AppID:          model.AppID,
		State:          json.RawMessage(model.State),
		Version:        model.Version,
		UpdatedAt:      model.UpdatedAt,
	}
}

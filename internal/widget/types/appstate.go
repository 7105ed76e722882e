package types

import (
	"encoding/json"
	"time"
)

// AppState is the persisted state blob for one widget app inside one
// conversation. Keyed uniquely by (conversationId, appId); writes are
// last-writer-wins. Version is advisory metadata supplied by the
// writer, stored but never enforced.
type AppState struct {
	ConversationID string          `json:"conversationId"`
	AppID          string          `json:"appId"`
	State          json.RawMessage `json:"state"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

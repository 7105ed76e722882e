package biz

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/clawchat/clawchat-backend/internal/chat/types"
	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"
	"github.com/clawchat/clawchat-backend/internal/pkg/objstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	messages []*types.Message
}

func (r *fakeRepo) Create(_ context.Context, msg *types.Message) error {
	copied := *msg
	r.messages = append(r.messages, &copied)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*types.Message, error) {
	for _, m := range r.messages {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrMessageNotFound)
}

func (r *fakeRepo) List(_ context.Context, _ *types.ListFilter) ([]*types.Message, bool, error) {
	return r.messages, false, nil
}

func (r *fakeRepo) UpdateContent(_ context.Context, id, content string) error {
	for _, m := range r.messages {
		if m.ID == id {
			m.Content = content
			return nil
		}
	}
	return apperrors.New(apperrors.ErrMessageNotFound)
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	for i, m := range r.messages {
		if m.ID == id {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return apperrors.New(apperrors.ErrMessageNotFound)
}

func (r *fakeRepo) Search(_ context.Context, _, _ string, _ int) ([]*types.Message, error) {
	return nil, nil
}

func (r *fakeRepo) LatestCreatedAt(_ context.Context) (time.Time, error) {
	return time.Time{}, nil
}

type fakeBus struct {
	events []interface{}
}

func (b *fakeBus) Broadcast(event interface{}) error {
	b.events = append(b.events, event)
	return nil
}

type notification struct {
	eventType string
	payload   interface{}
}

type fakeNotifier struct {
	sent []notification
}

func (n *fakeNotifier) Notify(eventType string, payload interface{}) {
	n.sent = append(n.sent, notification{eventType, payload})
}

type fakeStore struct {
	stored map[string][]byte
}

func (s *fakeStore) Put(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	if s.stored == nil {
		s.stored = make(map[string][]byte)
	}
	name := filename
	if _, taken := s.stored[name]; taken {
		name = strings.TrimSuffix(filename, ".txt") + "(2).txt"
	}
	data, _ := io.ReadAll(r)
	s.stored[name] = data
	return name, nil
}

func (s *fakeStore) Get(_ context.Context, name string) (io.ReadCloser, *objstore.ObjectInfo, error) {
	data, ok := s.stored[name]
	if !ok {
		return nil, nil, apperrors.New(apperrors.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), &objstore.ObjectInfo{Name: name, Size: int64(len(data))}, nil
}

func newTestUseCase() (*MessageUseCase, *fakeRepo, *fakeBus, *fakeNotifier, *fakeStore) {
	repo := &fakeRepo{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	store := &fakeStore{}
	uc := NewMessageUseCase(repo, bus, notifier, store, 1024, zap.NewNop())
	return uc, repo, bus, notifier, store
}

func TestAppendAssignsMonotonicCreatedAt(t *testing.T) {
	uc, repo, _, _, _ := newTestUseCase()

	before := time.Now().UTC()
	for i := 0; i < 100; i++ {
		_, err := uc.Append(context.Background(), &AppendRequest{Content: "hello"})
		require.NoError(t, err)
	}

	require.Len(t, repo.messages, 100)
	assert.False(t, repo.messages[0].CreatedAt.Before(before))
	for i := 1; i < len(repo.messages); i++ {
		assert.True(t, repo.messages[i].CreatedAt.After(repo.messages[i-1].CreatedAt),
			"createdAt must be strictly increasing at index %d", i)
	}
}

func TestAppendValidation(t *testing.T) {
	tests := []struct {
		name     string
		req      *AppendRequest
		wantCode int
	}{
		{
			name:     "empty content without attachment",
			req:      &AppendRequest{},
			wantCode: apperrors.ErrContentRequired,
		},
		{
			name:     "unknown message type",
			req:      &AppendRequest{Content: "x", Type: "musing"},
			wantCode: apperrors.ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _, _, _, _ := newTestUseCase()
			_, err := uc.Append(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.wantCode))
		})
	}
}

func TestAppendDefaults(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase()

	msg, err := uc.Append(context.Background(), &AppendRequest{Content: "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, types.RoleUser, msg.Role)
	assert.Equal(t, types.TypeMessage, msg.Type)
	assert.Equal(t, types.DefaultConversationID, msg.ConversationID)
}

func TestAppendBroadcastsAndNotifiesAgent(t *testing.T) {
	uc, _, bus, notifier, _ := newTestUseCase()

	msg, err := uc.Append(context.Background(), &AppendRequest{Content: "hello"})
	require.NoError(t, err)

	require.Len(t, bus.events, 1)
	event, ok := bus.events[0].(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "message", event.Type)
	assert.Equal(t, msg.ID, event.Message.ID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "user_message", notifier.sent[0].eventType)
	payload := notifier.sent[0].payload.(map[string]interface{})
	assert.Equal(t, msg.ID, payload["messageId"])
	assert.Equal(t, "hello", payload["content"])
}

func TestAppendAgentMessageSkipsNotify(t *testing.T) {
	uc, _, bus, notifier, _ := newTestUseCase()

	_, err := uc.Append(context.Background(), &AppendRequest{
		Content: "result",
		Role:    types.RoleAgent,
		Type:    types.TypeToolResult,
		Name:    "search",
	})
	require.NoError(t, err)

	// The agent's own output is broadcast to clients but never echoed
	// back to the agent.
	assert.Len(t, bus.events, 1)
	assert.Empty(t, notifier.sent)
}

func TestUpdateOnlyPlainMessages(t *testing.T) {
	uc, _, bus, _, _ := newTestUseCase()

	plain, err := uc.Append(context.Background(), &AppendRequest{Content: "hello"})
	require.NoError(t, err)
	internal, err := uc.Append(context.Background(), &AppendRequest{
		Content: "{}", Role: types.RoleAgent, Type: types.TypeToolCall, Name: "search",
	})
	require.NoError(t, err)

	updated, err := uc.Update(context.Background(), plain.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	_, err = uc.Update(context.Background(), internal.ID, "edited")
	assert.True(t, apperrors.Is(err, apperrors.ErrMessageImmutable))

	last := bus.events[len(bus.events)-1].(MessageEvent)
	assert.Equal(t, "update", last.Type)
	assert.Equal(t, "edited", last.Message.Content)
}

func TestUpdateMissingMessage(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase()

	_, err := uc.Update(context.Background(), "nope", "edited")
	assert.True(t, apperrors.Is(err, apperrors.ErrMessageNotFound))
}

func TestDeleteInvalidatesFurtherEdits(t *testing.T) {
	uc, _, bus, notifier, _ := newTestUseCase()

	msg, err := uc.Append(context.Background(), &AppendRequest{Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, uc.Delete(context.Background(), msg.ID, true))

	last := bus.events[len(bus.events)-1].(DeleteEvent)
	assert.Equal(t, "delete", last.Type)
	assert.Equal(t, msg.ID, last.ID)
	assert.Equal(t, "message_deleted", notifier.sent[len(notifier.sent)-1].eventType)

	_, err = uc.Update(context.Background(), msg.ID, "edited")
	assert.True(t, apperrors.Is(err, apperrors.ErrMessageNotFound))
}

func TestForgetFrom(t *testing.T) {
	uc, _, _, notifier, _ := newTestUseCase()

	err := uc.ForgetFrom(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrMessageNotFound))

	msg, err := uc.Append(context.Background(), &AppendRequest{Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, uc.ForgetFrom(context.Background(), msg.ID))
	last := notifier.sent[len(notifier.sent)-1]
	assert.Equal(t, "forget_from", last.eventType)
	payload := last.payload.(map[string]string)
	assert.Equal(t, msg.ID, payload["messageId"])
}

func TestUploadRejectsOversize(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase()

	_, err := uc.Upload(context.Background(), "", types.RoleUser, "", "big.bin",
		"application/octet-stream", 2048, bytes.NewReader(nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrAttachmentTooBig))
}

func TestUploadSuffixesDuplicateFilenames(t *testing.T) {
	uc, _, _, _, _ := newTestUseCase()

	first, err := uc.Upload(context.Background(), "", types.RoleUser, "", "notes.txt",
		"text/plain", 5, strings.NewReader("hello"))
	require.NoError(t, err)
	require.NotNil(t, first.Attachment)
	assert.Equal(t, "notes.txt", first.Attachment.Filename)

	second, err := uc.Upload(context.Background(), "", types.RoleUser, "", "notes.txt",
		"text/plain", 5, strings.NewReader("world"))
	require.NoError(t, err)
	require.NotNil(t, second.Attachment)
	assert.Equal(t, "notes(2).txt", second.Attachment.Filename)
}

package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	chatbiz "github.com/clawchat/clawchat-backend/internal/chat/biz"
	chattypes "github.com/clawchat/clawchat-backend/internal/chat/types"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	window []*chattypes.Message
	calls  int
}

func (f *fakeFetcher) List(_ context.Context, _ string) ([]*chattypes.Message, error) {
	f.calls++
	return f.window, nil
}

type changeLog struct {
	calls   int
	scrolls int
}

func (l *changeLog) fn(scroll bool) {
	l.calls++
	if scroll {
		l.scrolls++
	}
}

func newController(fetcher *fakeFetcher) (*Controller, *changeLog) {
	log := &changeLog{}
	c := NewController(chattypes.DefaultConversationID, fetcher, log.fn, zap.NewNop())
	return c, log
}

func envelope(t *testing.T, event interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestRefreshLoadsAndMarksReady(t *testing.T) {
	base := time.Now().UTC()
	fetcher := &fakeFetcher{window: []*chattypes.Message{
		msg("a", "hello", base),
		msg("b", "world", base.Add(time.Second)),
	}}
	c, log := newController(fetcher)

	require.NoError(t, c.Refresh(context.Background()))

	assert.Len(t, c.Messages(), 2)
	assert.Equal(t, 1, log.scrolls, "initial load jumps to the bottom")
}

func TestMessageEventInsertsInOrder(t *testing.T) {
	base := time.Now().UTC()
	fetcher := &fakeFetcher{window: []*chattypes.Message{msg("a", "first", base)}}
	c, _ := newController(fetcher)
	require.NoError(t, c.Refresh(context.Background()))

	c.HandleEvent(envelope(t, chatbiz.MessageEvent{
		Type:    sse.EventMessage,
		Message: msg("c", "third", base.Add(2*time.Second)),
	}))
	c.HandleEvent(envelope(t, chatbiz.MessageEvent{
		Type:    sse.EventMessage,
		Message: msg("b", "second", base.Add(time.Second)),
	}))

	list := c.Messages()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestMessageEventDedupesLocalAppend(t *testing.T) {
	base := time.Now().UTC()
	c, _ := newController(&fakeFetcher{})
	require.NoError(t, c.Refresh(context.Background()))

	sent := msg("a", "hi", base)
	c.Append(sent)
	c.HandleEvent(envelope(t, chatbiz.MessageEvent{Type: sse.EventMessage, Message: msg("a", "hi", base)}))

	list := c.Messages()
	require.Len(t, list, 1)
	assert.Same(t, sent, list[0], "the SSE echo must not duplicate the local append")
}

func TestMessageEventIgnoresOtherConversations(t *testing.T) {
	c, _ := newController(&fakeFetcher{})
	require.NoError(t, c.Refresh(context.Background()))

	other := msg("x", "elsewhere", time.Now().UTC())
	other.ConversationID = "side-channel"
	c.HandleEvent(envelope(t, chatbiz.MessageEvent{Type: sse.EventMessage, Message: other}))

	assert.Empty(t, c.Messages())
}

func TestUpdateAndDeleteEvents(t *testing.T) {
	base := time.Now().UTC()
	fetcher := &fakeFetcher{window: []*chattypes.Message{
		msg("a", "original", base),
		msg("b", "doomed", base.Add(time.Second)),
	}}
	c, _ := newController(fetcher)
	require.NoError(t, c.Refresh(context.Background()))

	c.HandleEvent(envelope(t, chatbiz.MessageEvent{
		Type:    sse.EventUpdate,
		Message: msg("a", "edited", base),
	}))
	c.HandleEvent(envelope(t, chatbiz.DeleteEvent{Type: sse.EventDelete, ID: "b"}))

	list := c.Messages()
	require.Len(t, list, 1)
	assert.Equal(t, "edited", list[0].Content)
}

func TestBusyFlagTriggersChange(t *testing.T) {
	c, log := newController(&fakeFetcher{})
	require.NoError(t, c.Refresh(context.Background()))
	before := log.calls

	c.HandleEvent([]byte(`{"type":"agentState","state":"thinking"}`))
	assert.True(t, c.Busy())
	c.HandleEvent([]byte(`{"type":"agentState","state":"thinking"}`))
	assert.Equal(t, before+1, log.calls, "repeated identical busy state is not a change")

	c.HandleEvent([]byte(`{"type":"agentTyping","active":false}`))
	assert.False(t, c.Busy())
}

func TestAutoScrollSuppressedWhenScrolledUp(t *testing.T) {
	base := time.Now().UTC()
	c, log := newController(&fakeFetcher{})
	require.NoError(t, c.Refresh(context.Background()))

	c.ObserveScroll(0, 600, 3000)
	c.HandleEvent(envelope(t, chatbiz.MessageEvent{Type: sse.EventMessage, Message: msg("a", "new", base)}))
	assert.Equal(t, 1, log.scrolls, "only the initial load scrolled")

	c.Append(msg("b", "mine", base.Add(time.Second)))
	assert.Equal(t, 2, log.scrolls, "sending a message forces the jump")
}

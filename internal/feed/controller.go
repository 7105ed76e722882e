package feed

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	chattypes "github.com/clawchat/clawchat-backend/internal/chat/types"
	"github.com/clawchat/clawchat-backend/internal/pkg/sse"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Fetcher loads the message window from the REST API. Used for the
// initial load and for reconciliation after an SSE gap.
type Fetcher interface {
	List(ctx context.Context, conversationID string) ([]*chattypes.Message, error)
}

// Controller keeps one locally coherent, chronologically ordered view
// of a conversation, reconciling REST fetches, live SSE events, and
// user actions. Safe for concurrent use; the SSE client delivers events
// from its own goroutine.
type Controller struct {
	conversationID string
	fetcher        Fetcher
	scroller       *AutoScroller
	logger         *zap.Logger

	// onChange fires after every list or busy-flag mutation. The bool
	// says whether the view should jump to the bottom.
	onChange func(scrollToBottom bool)

	mu       sync.Mutex
	messages []*chattypes.Message
	busy     bool
}

// NewController creates a feed controller for one conversation.
func NewController(conversationID string, fetcher Fetcher, onChange func(bool), logger *zap.Logger) *Controller {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Controller{
		conversationID: conversationID,
		fetcher:        fetcher,
		scroller:       NewAutoScroller(),
		onChange:       onChange,
		logger:         logger,
	}
}

// Refresh re-fetches the message window and merges it into the held
// list. Called for the initial load and after every SSE reconnect,
// since a disconnected client sees no events from the gap.
func (c *Controller) Refresh(ctx context.Context) error {
	fetched, err := c.fetcher.List(ctx, c.conversationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.messages = Merge(c.messages, fetched)
	first := !c.scroller.Ready()
	c.scroller.MarkReady()
	c.mu.Unlock()

	c.onChange(c.shouldScroll(first))
	return nil
}

// HandleEvent applies one serialized SSE envelope.
func (c *Controller) HandleEvent(data []byte) {
	switch gjson.GetBytes(data, "type").String() {
	case sse.EventMessage:
		c.applyMessage(data)
	case sse.EventUpdate:
		c.applyUpdate(data)
	case sse.EventDelete:
		c.applyDelete(data)
	case sse.EventAgentState:
		c.applyBusy(gjson.GetBytes(data, "state").String() != "idle")
	case sse.EventAgentTyping:
		c.applyBusy(gjson.GetBytes(data, "active").Bool())
	default:
		// agentStatus, appStateUpdated and friends belong to other
		// subsystems.
	}
}

func (c *Controller) applyMessage(data []byte) {
	var event struct {
		Message *chattypes.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &event); err != nil || event.Message == nil {
		c.logger.Warn("malformed message event", zap.Error(err))
		return
	}
	msg := event.Message
	if msg.ConversationID != c.conversationID {
		return
	}

	c.mu.Lock()
	if existing, ok := containsID(c.messages, msg.ID); ok {
		existing.Content = msg.Content
	} else {
		c.messages = append(c.messages, msg)
		sort.SliceStable(c.messages, func(i, j int) bool {
			return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
		})
	}
	c.mu.Unlock()

	c.onChange(c.shouldScroll(false))
}

func (c *Controller) applyUpdate(data []byte) {
	var event struct {
		Message *chattypes.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &event); err != nil || event.Message == nil {
		return
	}

	c.mu.Lock()
	changed := false
	for i, m := range c.messages {
		if m.ID == event.Message.ID {
			c.messages[i] = event.Message
			changed = true
			break
		}
	}
	c.mu.Unlock()

	if changed {
		c.onChange(false)
	}
}

func (c *Controller) applyDelete(data []byte) {
	id := gjson.GetBytes(data, "id").String()
	if id == "" {
		return
	}

	c.mu.Lock()
	changed := false
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			changed = true
			break
		}
	}
	c.mu.Unlock()

	if changed {
		c.onChange(false)
	}
}

func (c *Controller) applyBusy(busy bool) {
	c.mu.Lock()
	changed := c.busy != busy
	c.busy = busy
	c.mu.Unlock()

	if changed {
		c.onChange(c.shouldScroll(false))
	}
}

// Append inserts a message the local user just sent, ahead of the SSE
// echo. The follow-up broadcast dedupes by id.
func (c *Controller) Append(msg *chattypes.Message) {
	c.mu.Lock()
	if _, ok := containsID(c.messages, msg.ID); !ok {
		c.messages = append(c.messages, msg)
	}
	c.mu.Unlock()

	c.onChange(c.shouldScroll(true))
}

// ObserveScroll records the viewport position before a mutation.
func (c *Controller) ObserveScroll(scrollTop, viewportHeight, contentHeight float64) {
	c.mu.Lock()
	c.scroller.ObserveScroll(scrollTop, viewportHeight, contentHeight)
	c.mu.Unlock()
}

// Messages returns a snapshot of the current ordered list.
func (c *Controller) Messages() []*chattypes.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chattypes.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Busy reports whether the agent is currently working.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) shouldScroll(force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scroller.ShouldScroll(force)
}

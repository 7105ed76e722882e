package host

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/clawchat/clawchat-backend/internal/widget/protocol"

	"go.uber.org/zap"
)

// StateStore persists widget app state keyed by (conversation, appId)
type StateStore interface {
	GetState(ctx context.Context, conversationID, appID string) (json.RawMessage, error)
	SetState(ctx context.Context, conversationID, appID string, state json.RawMessage) error
}

// ActionForwarder performs a server action on the widget's behalf
type ActionForwarder interface {
	Forward(ctx context.Context, conversationID, appID, action string, payload json.RawMessage) (json.RawMessage, error)
}

// ErrorReporter receives widget error reports
type ErrorReporter interface {
	ReportWidgetError(conversationID, appID, errMsg, stack string)
}

// Sender posts a host-to-widget message into the widget's frame
type Sender interface {
	Send(msg interface{})
}

// ViewportFunc snapshots the scroll container when a resize arrives
type ViewportFunc func() Viewport

// ResizeApplier applies a clamped height and scroll adjustment
type ResizeApplier func(height int, adjust ScrollAdjustment)

// Host is the trusted side of the widget messaging protocol. It owns
// one sandboxed frame: it validates every inbound message, ignores
// traffic from any other source, and mediates all state, request and
// resize operations. A widget fault never propagates past the reporter.
type Host struct {
	conversationID string
	frameSource    string

	store    StateStore
	actions  ActionForwarder
	reporter ErrorReporter
	sender   Sender
	pending  *protocol.PendingTracker
	logger   *zap.Logger

	viewport ViewportFunc
	resize   ResizeApplier

	mu         sync.Mutex
	prevHeight float64
	tracked    map[string]struct{}
}

// NewHost creates a host for one widget frame. frameSource identifies
// the frame's content window; messages from any other source are
// ignored.
func NewHost(
	conversationID, frameSource string,
	store StateStore,
	actions ActionForwarder,
	reporter ErrorReporter,
	sender Sender,
	pending *protocol.PendingTracker,
	viewport ViewportFunc,
	resize ResizeApplier,
	logger *zap.Logger,
) *Host {
	return &Host{
		conversationID: conversationID,
		frameSource:    frameSource,
		store:          store,
		actions:        actions,
		reporter:       reporter,
		sender:         sender,
		pending:        pending,
		logger:         logger,
		viewport:       viewport,
		resize:         resize,
		prevHeight:     DefaultHeight,
		tracked:        make(map[string]struct{}),
	}
}

// HandleMessage processes one inbound postMessage payload. source is
// the sending window's identity; anything but the tracked frame is
// dropped without side effects.
func (h *Host) HandleMessage(ctx context.Context, source string, data []byte) {
	if source != h.frameSource {
		return
	}

	msg, err := protocol.Parse(data)
	if err != nil {
		h.handleMalformed(err)
		return
	}

	switch m := msg.(type) {
	case *protocol.GetState:
		h.handleGetState(ctx, m)
	case *protocol.SetState:
		h.handleSetState(ctx, m)
	case *protocol.Resize:
		h.handleResize(m)
	case *protocol.Request:
		h.handleRequest(ctx, m)
	case *protocol.ErrorReport:
		h.reporter.ReportWidgetError(h.conversationID, "", m.Error, m.Stack)
	}
}

// HandleStateUpdated relays an app-state invalidation to the widget if
// it is tracking that appId.
func (h *Host) HandleStateUpdated(conversationID, appID string) {
	if conversationID != h.conversationID {
		return
	}
	if !h.Tracking(appID) {
		return
	}
	h.sender.Send(protocol.StateUpdated{Type: protocol.TypeStateUpdated, AppID: appID})
}

// Tracking reports whether the widget has requested state for appId.
func (h *Host) Tracking(appID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.tracked[appID]
	return ok
}

// handleMalformed answers a broken message with a typed failure and
// reports it, so the caller fails fast and the operator learns the
// widget is misbehaving.
func (h *Host) handleMalformed(err error) {
	var malformed *protocol.MalformedError
	if !errors.As(err, &malformed) {
		return
	}
	if malformed.HasID {
		h.sender.Send(protocol.Response{
			Type:  protocol.TypeResponse,
			ID:    malformed.RequestID,
			Error: "Invalid request",
		})
	}
	h.reporter.ReportWidgetError(h.conversationID, "", malformed.Reason, "")
}

func (h *Host) handleGetState(ctx context.Context, m *protocol.GetState) {
	h.mu.Lock()
	h.tracked[m.AppID] = struct{}{}
	h.mu.Unlock()

	state, err := h.store.GetState(ctx, h.conversationID, m.AppID)
	if err != nil || state == nil {
		// Missing state is not an error to the widget.
		h.sender.Send(protocol.State{Type: protocol.TypeState, State: json.RawMessage("null")})
		return
	}
	h.sender.Send(protocol.State{Type: protocol.TypeState, State: state})
}

func (h *Host) handleSetState(ctx context.Context, m *protocol.SetState) {
	// Best-effort, no reply.
	if err := h.store.SetState(ctx, h.conversationID, m.AppID, m.State); err != nil {
		h.logger.Warn("widget setState failed",
			zap.String("appId", m.AppID), zap.Error(err))
	}
}

func (h *Host) handleResize(m *protocol.Resize) {
	height, err := ClampHeight(m.Height)
	if err != nil {
		h.reporter.ReportWidgetError(h.conversationID, "", err.Error(), "")
		return
	}

	h.mu.Lock()
	delta := float64(height) - h.prevHeight
	h.prevHeight = float64(height)
	h.mu.Unlock()

	adjust := ScrollAdjustment{}
	if h.viewport != nil {
		adjust = CompensateScroll(h.viewport(), delta)
	}
	if h.resize != nil {
		h.resize(height, adjust)
	}
}

// handleRequest forwards the action and answers with the same id. The
// wait runs through the pending tracker so a hung forwarder turns into
// a local timeout rejection instead of a silently dropped reply.
func (h *Host) handleRequest(ctx context.Context, m *protocol.Request) {
	ch := h.pending.Track(m.ID)

	go func() {
		data, err := h.actions.Forward(ctx, h.conversationID, m.AppID, m.Action, m.Payload)
		resp := protocol.Response{Type: protocol.TypeResponse, ID: m.ID}
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Data = data
		}
		h.pending.Resolve(m.ID, resp)
	}()

	go func() {
		h.sender.Send(<-ch)
	}()
}

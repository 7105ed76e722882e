package sse

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHeartbeat = 30 * time.Second

// Stream pumps one client's frames onto a gin response writer until the
// connection closes. Heartbeats use the SSE comment form so they never
// surface as events on the client side.
type Stream struct {
	client    *Client
	ctx       *gin.Context
	hub       *Hub
	heartbeat time.Duration

	onConnect func(*Client)
	onError   func(error)
}

// StreamBuilder configures a Stream before it starts.
type StreamBuilder struct {
	ginCtx    *gin.Context
	hub       *Hub
	buffer    int
	heartbeat time.Duration
	onConnect func(*Client)
	onError   func(error)
}

// NewStream starts building a stream bound to a gin request.
func NewStream(c *gin.Context, hub *Hub) *StreamBuilder {
	return &StreamBuilder{
		ginCtx:    c,
		hub:       hub,
		buffer:    16,
		heartbeat: defaultHeartbeat,
	}
}

// WithBufferSize sets the per-client frame buffer.
func (b *StreamBuilder) WithBufferSize(size int) *StreamBuilder {
	b.buffer = size
	return b
}

// WithHeartbeat sets the heartbeat interval (0 disables heartbeats).
func (b *StreamBuilder) WithHeartbeat(interval time.Duration) *StreamBuilder {
	b.heartbeat = interval
	return b
}

// OnConnect sets a hook invoked once the subscription is registered.
func (b *StreamBuilder) OnConnect(fn func(*Client)) *StreamBuilder {
	b.onConnect = fn
	return b
}

// OnError sets a hook for write failures.
func (b *StreamBuilder) OnError(fn func(error)) *StreamBuilder {
	b.onError = fn
	return b
}

// Build registers the subscription and returns the stream.
func (b *StreamBuilder) Build() *Stream {
	return &Stream{
		client:    b.hub.Subscribe(b.buffer),
		ctx:       b.ginCtx,
		hub:       b.hub,
		heartbeat: b.heartbeat,
		onConnect: b.onConnect,
		onError:   b.onError,
	}
}

// Run writes frames until the client disconnects. Blocking.
func (s *Stream) Run() {
	s.ctx.Header("Content-Type", "text/event-stream")
	s.ctx.Header("Cache-Control", "no-cache")
	s.ctx.Header("Connection", "keep-alive")
	s.ctx.Header("X-Accel-Buffering", "no")
	s.ctx.Writer.Flush()

	defer s.hub.Unsubscribe(s.client)

	if s.onConnect != nil {
		s.onConnect(s.client)
	}

	var heartbeat <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	clientGone := s.ctx.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return

		case <-heartbeat:
			if _, err := fmt.Fprint(s.ctx.Writer, ": heartbeat\n\n"); err != nil {
				s.fail(err)
				return
			}
			s.ctx.Writer.Flush()

		case payload, ok := <-s.client.Events():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(s.ctx.Writer, "data: %s\n\n", payload); err != nil {
				s.fail(err)
				return
			}
			s.ctx.Writer.Flush()
		}
	}
}

// fail reports a write error. The deferred Unsubscribe is the implicit
// unsubscribe for a broken sink: no retry, no buffering.
func (s *Stream) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// ClientID returns the subscription id.
func (s *Stream) ClientID() string {
	return s.client.ID
}
